package ledger

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/model"
	"github.com/oddsworks/book-engine/internal/odds"
)

// BetSelectionInput names one leg of a new bet by event and selection id.
type BetSelectionInput struct {
	EventID     string `json:"event_id"`
	SelectionID string `json:"selection_id"`
}

// CreateBetInput is the full request for CreateBet.
type CreateBetInput struct {
	CustomerID  string              `json:"customer_id"`
	EmployeeID  string              `json:"employee_id"`
	Type        model.BetType       `json:"type"`
	WagerAmount decimal.Decimal     `json:"wager_amount"`
	Selections  []BetSelectionInput `json:"selections"`
	Notes       string              `json:"notes,omitempty"`
}

// CreateBet validates and records a new bet as a single transactional unit:
// the potential payout is computed from the odds currently quoted and frozen
// into the bet's leg snapshot, wager volume is recorded against every touched
// event (triggering a repricing pass), and the customer balance is debited by
// the wager. Validation runs before any state is touched, so a failure never
// leaves a partial mutation behind.
func (l *Ledger) CreateBet(in CreateBetInput) (*model.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !in.WagerAmount.IsPositive() {
		return nil, fmt.Errorf("%w: wager amount must be positive", ErrValidation)
	}
	if len(in.Selections) == 0 {
		return nil, fmt.Errorf("%w: bet needs at least one selection", ErrValidation)
	}

	switch in.Type {
	case model.BetSingle:
		if len(in.Selections) != 1 {
			return nil, fmt.Errorf("%w: single bet must have exactly one selection", ErrValidation)
		}
	case model.BetParlay:
		if len(in.Selections) < 2 {
			return nil, fmt.Errorf("%w: parlay needs at least two selections", ErrValidation)
		}
		seen := make(map[string]bool, len(in.Selections))
		for _, s := range in.Selections {
			if seen[s.EventID] {
				return nil, fmt.Errorf("%w: parlay legs must come from distinct events", ErrValidation)
			}
			seen[s.EventID] = true
		}
	default:
		return nil, fmt.Errorf("%w: unknown bet type %q", ErrValidation, in.Type)
	}

	customer, ok := l.customers[in.CustomerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, in.CustomerID)
	}

	// Resolve every leg against live event state before mutating anything.
	legs := make([]model.BetLeg, 0, len(in.Selections))
	for _, s := range in.Selections {
		ev, ok := l.events[s.EventID]
		if !ok {
			return nil, fmt.Errorf("%w: event %s", ErrNotFound, s.EventID)
		}
		sel := findSelection(ev, s.SelectionID)
		if sel == nil {
			return nil, fmt.Errorf("%w: selection %s on event %s", ErrNotFound, s.SelectionID, s.EventID)
		}
		legs = append(legs, model.BetLeg{
			ID:            uuid.New().String(),
			EventID:       ev.ID,
			EventName:     ev.Name,
			SelectionID:   sel.ID,
			SelectionName: sel.Name,
			Odds:          sel.Odds,
			Status:        model.SelectionPending,
		})
	}

	payout, err := odds.ComputePayout(in.WagerAmount, legs, in.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// Validation complete; mutate.
	now := l.now()
	for _, leg := range legs {
		ev := l.events[leg.EventID]
		ev.TotalWagered = ev.TotalWagered.Add(in.WagerAmount)
		ev.SelectionVolume[leg.SelectionID] = ev.SelectionVolume[leg.SelectionID].Add(in.WagerAmount)
		sel := findSelection(ev, leg.SelectionID)
		sel.Volume = sel.Volume.Add(in.WagerAmount)
		l.engine.RepriceEvent(ev, now)
	}

	customer.Balance = customer.Balance.Sub(in.WagerAmount)

	bet := &model.Bet{
		ID:              uuid.New().String(),
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		EmployeeID:      in.EmployeeID,
		CreatedAt:       now,
		UpdatedAt:       now,
		Status:          model.BetOpen,
		Type:            in.Type,
		WagerAmount:     in.WagerAmount,
		PotentialPayout: payout,
		Legs:            legs,
		Notes:           in.Notes,
	}
	l.bets[bet.ID] = bet

	slog.Info("bet created",
		"id", bet.ID,
		"customer", customer.ID,
		"employee", in.EmployeeID,
		"type", in.Type,
		"wager", in.WagerAmount.String(),
		"payout", payout.String(),
		"legs", len(legs),
	)
	return copyBet(bet), nil
}

// GetBet returns a snapshot of a bet.
func (l *Ledger) GetBet(id string) (*model.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bets[id]
	if !ok {
		return nil, fmt.Errorf("%w: bet %s", ErrNotFound, id)
	}
	return copyBet(b), nil
}

// ListBets returns snapshots of bets created within [from, to], ordered by
// creation time (descending by default, ascending when asc is set). Zero
// bounds are unbounded. Ties break on id so the order is stable.
func (l *Ledger) ListBets(from, to time.Time, asc bool) []model.Bet {
	l.mu.Lock()
	defer l.mu.Unlock()

	bets := make([]model.Bet, 0, len(l.bets))
	for _, b := range l.bets {
		if !from.IsZero() && b.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && b.CreatedAt.After(to) {
			continue
		}
		bets = append(bets, *copyBet(b))
	}
	sort.Slice(bets, func(i, j int) bool {
		if !bets[i].CreatedAt.Equal(bets[j].CreatedAt) {
			if asc {
				return bets[i].CreatedAt.Before(bets[j].CreatedAt)
			}
			return bets[i].CreatedAt.After(bets[j].CreatedAt)
		}
		return bets[i].ID < bets[j].ID
	})
	return bets
}

// UpdateSelectionOutcome marks one leg of an OPEN bet as won, lost, or
// voided ahead of overall settlement. Legs of settled bets are immutable.
func (l *Ledger) UpdateSelectionOutcome(betID, selectionID string, status model.SelectionStatus) (*model.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch status {
	case model.SelectionPending, model.SelectionWon, model.SelectionLost, model.SelectionVoided:
	default:
		return nil, fmt.Errorf("%w: unknown selection status %q", ErrValidation, status)
	}

	b, ok := l.bets[betID]
	if !ok {
		return nil, fmt.Errorf("%w: bet %s", ErrNotFound, betID)
	}
	if b.Status != model.BetOpen {
		return nil, fmt.Errorf("%w: bet %s is %s", ErrInvalidState, betID, b.Status)
	}

	for i := range b.Legs {
		if b.Legs[i].SelectionID == selectionID {
			b.Legs[i].Status = status
			b.UpdatedAt = l.now()
			return copyBet(b), nil
		}
	}
	return nil, fmt.Errorf("%w: selection %s on bet %s", ErrNotFound, selectionID, betID)
}

// Settle transitions an OPEN bet to WON, LOST, or VOIDED.
//
// WON and LOST update the customer's aggregate counters; a WON settlement
// additionally credits the frozen potential payout to the customer's balance
// when creditToBalance is set (otherwise the payout is handled by a separate
// manual balance adjustment). VOIDED closes the bet with no customer change:
// the wager debited at creation is not refunded.
//
// Settling a bet twice fails with ErrInvalidState and performs no mutation.
func (l *Ledger) Settle(betID string, finalStatus model.BetStatus, creditToBalance bool) (*model.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch finalStatus {
	case model.BetWon, model.BetLost, model.BetVoided:
	default:
		return nil, fmt.Errorf("%w: cannot settle to %q", ErrValidation, finalStatus)
	}

	b, ok := l.bets[betID]
	if !ok {
		return nil, fmt.Errorf("%w: bet %s", ErrNotFound, betID)
	}
	if b.Status != model.BetOpen {
		return nil, fmt.Errorf("%w: bet %s is %s", ErrInvalidState, betID, b.Status)
	}

	customer, ok := l.customers[b.CustomerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, b.CustomerID)
	}

	now := l.now()
	b.Status = finalStatus
	b.UpdatedAt = now

	if finalStatus == model.BetWon || finalStatus == model.BetLost {
		win := decimal.Zero
		if finalStatus == model.BetWon {
			win = b.PotentialPayout
		}
		l.recordOutcome(customer, b.WagerAmount, win, now)

		if finalStatus == model.BetWon && creditToBalance {
			customer.Balance = customer.Balance.Add(b.PotentialPayout)
		}
	}

	slog.Info("bet settled",
		"id", betID,
		"status", finalStatus,
		"customer", b.CustomerID,
		"payout", b.PotentialPayout.String(),
		"credited", finalStatus == model.BetWon && creditToBalance,
	)
	return copyBet(b), nil
}

// SetNotes replaces a bet's audit notes. Notes stay mutable after
// settlement; they are the one field exempt from terminal immutability.
func (l *Ledger) SetNotes(betID, notes string) (*model.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bets[betID]
	if !ok {
		return nil, fmt.Errorf("%w: bet %s", ErrNotFound, betID)
	}
	b.Notes = notes
	return copyBet(b), nil
}

// DeleteBet removes an OPEN bet and fully reverses its effects: the wager is
// credited back to the customer and the touched events' volume counters are
// decremented (floored at zero when the event has been edited since). No
// repricing pass runs on reversal; the next wager reprices from the corrected
// volumes. Settled bets are audit records and cannot be deleted.
func (l *Ledger) DeleteBet(betID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bets[betID]
	if !ok {
		return fmt.Errorf("%w: bet %s", ErrNotFound, betID)
	}
	if b.Status != model.BetOpen {
		return fmt.Errorf("%w: bet %s is %s", ErrInvalidState, betID, b.Status)
	}

	if c, ok := l.customers[b.CustomerID]; ok {
		c.Balance = c.Balance.Add(b.WagerAmount)
	}

	for _, leg := range b.Legs {
		ev, ok := l.events[leg.EventID]
		if !ok {
			continue // event deleted since placement
		}
		ev.TotalWagered = floorZero(ev.TotalWagered.Sub(b.WagerAmount))
		ev.SelectionVolume[leg.SelectionID] = floorZero(ev.SelectionVolume[leg.SelectionID].Sub(b.WagerAmount))
		if sel := findSelection(ev, leg.SelectionID); sel != nil {
			sel.Volume = floorZero(sel.Volume.Sub(b.WagerAmount))
		}
	}

	delete(l.bets, betID)
	slog.Info("bet deleted and reversed", "id", betID, "customer", b.CustomerID, "wager", b.WagerAmount.String())
	return nil
}

// Receipt returns the printable receipt view for a bet.
func (l *Ledger) Receipt(betID string) (*model.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bets[betID]
	if !ok {
		return nil, fmt.Errorf("%w: bet %s", ErrNotFound, betID)
	}
	return &model.Receipt{
		BetID:           b.ID,
		Timestamp:       b.CreatedAt,
		CustomerID:      b.CustomerID,
		CustomerName:    b.CustomerName,
		EmployeeID:      b.EmployeeID,
		Type:            b.Type,
		Legs:            append([]model.BetLeg(nil), b.Legs...),
		WagerAmount:     b.WagerAmount,
		PotentialPayout: b.PotentialPayout,
	}, nil
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
