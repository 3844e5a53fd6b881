package odds_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/model"
	"github.com/oddsworks/book-engine/internal/odds"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func testEngine() *odds.Engine {
	return odds.NewEngine(odds.DefaultConfig())
}

// testEvent builds an event with one selection carrying the given odds and
// volume, stamped so the rate-limit window has already elapsed.
func testEvent(selOdds, volume, totalWagered float64, lastUpdate time.Time) (*model.Event, *model.Selection) {
	ev := &model.Event{
		ID:              "ev1",
		Name:            "Street Race - North Side",
		Status:          model.EventUpcoming,
		TotalWagered:    d(totalWagered),
		SelectionVolume: map[string]decimal.Decimal{"s1": d(volume)},
		LastOddsUpdate:  lastUpdate,
		Selections: []model.Selection{{
			ID:          "s1",
			Name:        "May Maple",
			Odds:        d(selOdds),
			InitialOdds: d(selOdds),
			Volume:      d(volume),
			Status:      model.SelectionPending,
		}},
	}
	return ev, &ev.Selections[0]
}

func TestQuote_WithinIntervalUnchanged(t *testing.T) {
	e := testEngine()
	now := time.Now()
	ev, sel := testEvent(2.5, 1000, 1000, now.Add(-time.Minute))

	quote := e.Quote(ev, sel, now)
	if !quote.Equal(d(2.5)) {
		t.Errorf("quote inside rate-limit window should be unchanged, got %s", quote)
	}
}

func TestQuote_ZeroVolumeKeepsInitialOdds(t *testing.T) {
	e := testEngine()
	now := time.Now()
	ev, sel := testEvent(2.5, 0, 0, now.Add(-10*time.Minute))

	quote := e.Quote(ev, sel, now)
	if !quote.Equal(d(2.5)) {
		t.Errorf("quote with no volume should equal initial odds, got %s", quote)
	}
}

func TestQuote_OverBackedSelection(t *testing.T) {
	// $1000 wagered entirely on one selection at 2.5:
	// volumeRatio = 1.0 → volumeAdj = 0.5 * 20 = 10
	// liability = 1000*2.5 - 1000 = 1500, riskRatio = 1.5 → riskAdj = 24
	// total capped at 20 → 2.5 * 0.80 = 2.00
	e := testEngine()
	now := time.Now()
	ev, sel := testEvent(2.5, 1000, 1000, now.Add(-10*time.Minute))

	quote := e.Quote(ev, sel, now)
	if !quote.Equal(d(2.00)) {
		t.Errorf("expected quote 2.00, got %s", quote)
	}
	if quote.LessThan(e.MinOdds()) {
		t.Errorf("quote %s below clamp floor %s", quote, e.MinOdds())
	}
}

func TestQuote_ClampFloor(t *testing.T) {
	// Short initial odds shortened by the full 20% would quote below the
	// 1.05 minimum; the clamp must hold.
	e := testEngine()
	now := time.Now()
	ev, sel := testEvent(1.10, 1000, 1000, now.Add(-10*time.Minute))

	quote := e.Quote(ev, sel, now)
	if !quote.Equal(d(1.05)) {
		t.Errorf("expected clamped quote 1.05, got %s", quote)
	}
}

func TestQuote_NeverExceedsInitialOdds(t *testing.T) {
	e := testEngine()
	now := time.Now()

	for _, volume := range []float64{0, 100, 600, 1000} {
		ev, sel := testEvent(3.2, volume, 1000, now.Add(-10*time.Minute))
		quote := e.Quote(ev, sel, now)
		if quote.GreaterThan(sel.InitialOdds) {
			t.Errorf("volume %v: quote %s exceeds initial odds %s", volume, quote, sel.InitialOdds)
		}
		if quote.LessThan(e.MinOdds()) {
			t.Errorf("volume %v: quote %s below floor %s", volume, quote, e.MinOdds())
		}
	}
}

func TestQuote_IsPure(t *testing.T) {
	e := testEngine()
	now := time.Now()
	before := now.Add(-10 * time.Minute)
	ev, sel := testEvent(2.5, 1000, 1000, before)

	e.Quote(ev, sel, now)
	if !sel.Odds.Equal(d(2.5)) {
		t.Errorf("Quote must not write selection odds, got %s", sel.Odds)
	}
	if !ev.LastOddsUpdate.Equal(before) {
		t.Error("Quote must not stamp LastOddsUpdate")
	}
}

func TestRepriceEvent_SkipsWithinInterval(t *testing.T) {
	e := testEngine()
	now := time.Now()
	stamp := now.Add(-time.Minute)
	ev, sel := testEvent(2.5, 1000, 1000, stamp)

	if e.RepriceEvent(ev, now) {
		t.Error("repricing pass should be skipped inside the interval")
	}
	if !sel.Odds.Equal(d(2.5)) {
		t.Errorf("odds should be unchanged, got %s", sel.Odds)
	}
	if !ev.LastOddsUpdate.Equal(stamp) {
		t.Error("LastOddsUpdate should be unchanged when the pass is skipped")
	}
}

func TestRepriceEvent_StampsEvenWhenUnchanged(t *testing.T) {
	e := testEngine()
	now := time.Now()
	ev, sel := testEvent(2.5, 0, 0, now.Add(-10*time.Minute))

	if !e.RepriceEvent(ev, now) {
		t.Fatal("repricing pass should run after the interval")
	}
	if !sel.Odds.Equal(d(2.5)) {
		t.Errorf("odds should be numerically unchanged, got %s", sel.Odds)
	}
	if !ev.LastOddsUpdate.Equal(now) {
		t.Error("LastOddsUpdate should be stamped when the pass runs")
	}
}

func TestRepriceEvent_DoesNotCompound(t *testing.T) {
	// Repricing derives from initial odds, so repeated passes over the same
	// volumes land on the same quote instead of drifting downward.
	e := testEngine()
	now := time.Now()
	ev, sel := testEvent(2.5, 1000, 1000, now.Add(-10*time.Minute))

	e.RepriceEvent(ev, now)
	first := sel.Odds

	later := now.Add(10 * time.Minute)
	e.RepriceEvent(ev, later)

	if !sel.Odds.Equal(first) {
		t.Errorf("second pass drifted: %s → %s", first, sel.Odds)
	}
}

func TestComputePayout_Single(t *testing.T) {
	legs := []model.BetLeg{{Odds: d(1.5)}}
	payout, err := odds.ComputePayout(d(500), legs, model.BetSingle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payout.Equal(d(750.00)) {
		t.Errorf("expected payout 750.00, got %s", payout)
	}
}

func TestComputePayout_Parlay(t *testing.T) {
	legs := []model.BetLeg{{Odds: d(1.4)}, {Odds: d(3.0)}}
	payout, err := odds.ComputePayout(d(1000), legs, model.BetParlay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payout.Equal(d(4200.00)) {
		t.Errorf("expected payout 4200.00, got %s", payout)
	}
}

func TestComputePayout_LegOrderIrrelevant(t *testing.T) {
	legs := []model.BetLeg{{Odds: d(1.73)}, {Odds: d(2.41)}, {Odds: d(1.08)}}
	reversed := []model.BetLeg{legs[2], legs[1], legs[0]}

	a, err := odds.ComputePayout(d(250), legs, model.BetParlay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := odds.ComputePayout(d(250), reversed, model.BetParlay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(b) {
		t.Errorf("payout depends on leg order: %s vs %s", a, b)
	}
}

func TestComputePayout_RoundsHalfUp(t *testing.T) {
	// 10 * 1.11 * 1.35 = 14.985 → 14.99
	legs := []model.BetLeg{{Odds: d(1.11)}, {Odds: d(1.35)}}
	payout, err := odds.ComputePayout(d(10), legs, model.BetParlay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !payout.Equal(d(14.99)) {
		t.Errorf("expected half-up rounding to 14.99, got %s", payout)
	}
}

func TestComputePayout_EmptySelections(t *testing.T) {
	payout, err := odds.ComputePayout(d(100), nil, model.BetSingle)
	if err == nil {
		t.Fatal("expected error for empty selections")
	}
	if !payout.IsZero() {
		t.Errorf("expected zero payout, got %s", payout)
	}
}

func TestMinOdds(t *testing.T) {
	e := testEngine()
	if !e.MinOdds().Equal(d(1.05)) {
		t.Errorf("expected min odds 1.05 at 5%% house edge, got %s", e.MinOdds())
	}
}

func TestImpliedProbability(t *testing.T) {
	p := odds.ImpliedProbability(d(2.0))
	if !p.Equal(d(50)) {
		t.Errorf("expected 50%%, got %s", p)
	}
}
