// Package odds implements the dynamic odds engine for the book: a
// feedback-driven repricing formula that shortens a selection's quote as
// wagered volume and house liability concentrate on it.
//
// Repricing is always computed from InitialOdds, never from the previous
// quote, so repeated passes do not compound. Quotes are clamped so the house
// never offers odds below 1 + houseEdge/100.
//
// All monetary values use shopspring/decimal — never float64 for money.
package odds

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/model"
)

var (
	// ErrNoSelections is returned when a payout is requested for a bet with
	// no legs.
	ErrNoSelections = errors.New("odds: bet has no selections")

	// ErrUnknownBetType is returned for a bet type other than SINGLE or PARLAY.
	ErrUnknownBetType = errors.New("odds: unknown bet type")
)

// CentScale is the number of decimal places for odds and payout rounding.
const CentScale int32 = 2

// Config holds the repricing parameters. Percentages are whole numbers
// (20 means 20%).
type Config struct {
	// VolumeThreshold is the wagered amount that marks a selection as
	// heavily backed for reporting purposes.
	VolumeThreshold decimal.Decimal

	// MaxAdjustment is the largest percentage by which a quote may be
	// shortened from its initial odds.
	MaxAdjustment decimal.Decimal

	// AdjustmentInterval is the minimum time between repricing passes on
	// one event.
	AdjustmentInterval time.Duration

	// HouseEdge is the target minimum profit margin; quotes are clamped
	// at 1 + HouseEdge/100.
	HouseEdge decimal.Decimal
}

// DefaultConfig returns the book's standard repricing parameters:
// $1000 volume threshold, 20% max adjustment, 5 minutes between passes,
// 5% house edge.
func DefaultConfig() Config {
	return Config{
		VolumeThreshold:    decimal.NewFromInt(1000),
		MaxAdjustment:      decimal.NewFromInt(20),
		AdjustmentInterval: 5 * time.Minute,
		HouseEdge:          decimal.NewFromInt(5),
	}
}

// Engine computes quotes from event and selection state. It is stateless —
// event state is passed as arguments, not stored.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine's repricing parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// MinOdds returns the clamp floor: 1 + houseEdge/100.
func (e *Engine) MinOdds() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return decimal.NewFromInt(1).Add(e.cfg.HouseEdge.Div(hundred))
}

// Quote returns the selection's current quoted odds.
//
// If the event was repriced within AdjustmentInterval of now, the standing
// quote is returned unchanged. Otherwise the quote is recomputed:
//
//	volumeRatio = selection.volume / event.totalWagered
//	volumeAdj   = (volumeRatio - 0.5) * maxAdjustment   if volumeRatio > 0.5
//	liability   = selection.volume * selection.odds - selection.volume
//	riskRatio   = liability / event.totalWagered
//	riskAdj     = (riskRatio - 0.3) * maxAdjustment     if riskRatio > 0.3
//	newOdds     = initialOdds * (1 - min(volumeAdj+riskAdj, maxAdjustment)/100)
//
// rounded to 2 decimal places and clamped at MinOdds. Both ratios are 0 when
// the event has no wagered volume. Quote is pure; it never writes event state.
func (e *Engine) Quote(event *model.Event, sel *model.Selection, now time.Time) decimal.Decimal {
	if now.Sub(event.LastOddsUpdate) < e.cfg.AdjustmentInterval {
		return sel.Odds
	}
	return e.reprice(event, sel)
}

// reprice computes a fresh quote, ignoring the rate-limit window.
func (e *Engine) reprice(event *model.Event, sel *model.Selection) decimal.Decimal {
	hundred := decimal.NewFromInt(100)

	var volumeAdj, riskAdj decimal.Decimal
	if event.TotalWagered.IsPositive() {
		volumeRatio := sel.Volume.Div(event.TotalWagered)
		if knee := decimal.NewFromFloat(0.5); volumeRatio.GreaterThan(knee) {
			volumeAdj = volumeRatio.Sub(knee).Mul(e.cfg.MaxAdjustment)
		}

		// Liability: what the house pays beyond the stake if this
		// selection wins at its current quote.
		liability := sel.Volume.Mul(sel.Odds).Sub(sel.Volume)
		riskRatio := liability.Div(event.TotalWagered)
		if knee := decimal.NewFromFloat(0.3); riskRatio.GreaterThan(knee) {
			riskAdj = riskRatio.Sub(knee).Mul(e.cfg.MaxAdjustment)
		}
	}

	totalAdj := volumeAdj.Add(riskAdj)
	if totalAdj.GreaterThan(e.cfg.MaxAdjustment) {
		totalAdj = e.cfg.MaxAdjustment
	}

	factor := decimal.NewFromInt(1).Sub(totalAdj.Div(hundred))
	newOdds := sel.InitialOdds.Mul(factor).Round(CentScale)

	if minOdds := e.MinOdds(); newOdds.LessThan(minOdds) {
		return minOdds
	}
	return newOdds
}

// RepriceEvent runs a full repricing pass over every selection of the event,
// writing fresh quotes and stamping LastOddsUpdate with now. The pass is
// skipped entirely (no state written) when the event was repriced within
// AdjustmentInterval. A single clock read covers all selections so legs of
// the same event never see skewed windows.
//
// Returns true when the pass ran.
func (e *Engine) RepriceEvent(event *model.Event, now time.Time) bool {
	if now.Sub(event.LastOddsUpdate) < e.cfg.AdjustmentInterval {
		return false
	}
	for i := range event.Selections {
		event.Selections[i].Odds = e.reprice(event, &event.Selections[i])
	}
	event.LastOddsUpdate = now
	return true
}

// ComputePayout returns the potential payout for a wager at the given leg
// odds: wager * odds for singles, wager * product of all leg odds for
// parlays, rounded to 2 decimal places. Decimal multiplication is exact, so
// leg ordering does not affect the result.
func ComputePayout(wager decimal.Decimal, legs []model.BetLeg, betType model.BetType) (decimal.Decimal, error) {
	if len(legs) == 0 {
		return decimal.Zero, ErrNoSelections
	}

	switch betType {
	case model.BetSingle:
		return wager.Mul(legs[0].Odds).Round(CentScale), nil
	case model.BetParlay:
		total := decimal.NewFromInt(1)
		for _, leg := range legs {
			total = total.Mul(leg.Odds)
		}
		return wager.Mul(total).Round(CentScale), nil
	default:
		return decimal.Zero, ErrUnknownBetType
	}
}

// ImpliedProbability converts decimal odds to the implied win probability
// as a percentage: 100 / odds.
func ImpliedProbability(quote decimal.Decimal) decimal.Decimal {
	if !quote.IsPositive() {
		return decimal.Zero
	}
	return decimal.NewFromInt(100).Div(quote).Round(CentScale)
}

// RoundCents rounds a monetary amount to 2 decimal places, half up.
func RoundCents(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CentScale)
}
