// Package ledger implements the authoritative betting ledger: events and
// their selections, bets with frozen selection snapshots, and customer
// accounts. All state lives in memory behind a single mutex; every operation
// either fully succeeds or returns an error with no mutation performed.
//
// The ledger is constructed with an injected clock and odds engine so the
// rate-limited repricing window is deterministically testable.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/model"
	"github.com/oddsworks/book-engine/internal/odds"
)

var (
	// ErrValidation marks rejected input: non-positive wager, empty
	// selections, mismatched parlay composition.
	ErrValidation = errors.New("ledger: invalid input")

	// ErrNotFound marks an unknown bet/event/customer/selection id.
	ErrNotFound = errors.New("ledger: not found")

	// ErrInvalidState marks an operation against a bet that has left OPEN.
	ErrInvalidState = errors.New("ledger: invalid state")
)

// Ledger owns the in-memory event/bet/customer collections. Mutations are
// serialized by a mutex; the single-writer model matches the back-office
// terminal deployment.
type Ledger struct {
	mu        sync.Mutex
	engine    *odds.Engine
	now       func() time.Time
	events    map[string]*model.Event
	bets      map[string]*model.Bet
	customers map[string]*model.Customer
}

// New creates an empty ledger. Pass nil for clock to use time.Now.
func New(engine *odds.Engine, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{
		engine:    engine,
		now:       clock,
		events:    make(map[string]*model.Event),
		bets:      make(map[string]*model.Bet),
		customers: make(map[string]*model.Customer),
	}
}

// Engine returns the odds engine the ledger prices with.
func (l *Ledger) Engine() *odds.Engine {
	return l.engine
}

// --- Event operations ---

// SelectionInput describes one selection of a new event.
type SelectionInput struct {
	Name string          `json:"name"`
	Odds decimal.Decimal `json:"odds"`
}

// CreateEvent registers a new event. Each selection's initial odds are fixed
// from its opening quote; volume starts at zero.
func (l *Ledger) CreateEvent(name, category string, startTime time.Time, sels []SelectionInput) (*model.Event, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: event name is required", ErrValidation)
	}
	if len(sels) == 0 {
		return nil, fmt.Errorf("%w: event needs at least one selection", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	minOdds := l.engine.MinOdds()
	now := l.now()

	ev := &model.Event{
		ID:              uuid.New().String(),
		Name:            name,
		Category:        category,
		StartTime:       startTime,
		Status:          model.EventUpcoming,
		TotalWagered:    decimal.Zero,
		SelectionVolume: make(map[string]decimal.Decimal),
		LastOddsUpdate:  now,
	}

	for _, in := range sels {
		if in.Name == "" {
			return nil, fmt.Errorf("%w: selection name is required", ErrValidation)
		}
		if in.Odds.LessThan(minOdds) {
			return nil, fmt.Errorf("%w: odds %s below minimum quote %s", ErrValidation, in.Odds, minOdds)
		}
		ev.Selections = append(ev.Selections, model.Selection{
			ID:          uuid.New().String(),
			Name:        in.Name,
			Odds:        in.Odds,
			InitialOdds: in.Odds,
			Volume:      decimal.Zero,
			Status:      model.SelectionPending,
		})
	}

	l.events[ev.ID] = ev
	slog.Info("event created", "id", ev.ID, "name", name, "selections", len(ev.Selections))
	return copyEvent(ev), nil
}

// GetEvent returns a snapshot of an event.
func (l *Ledger) GetEvent(id string) (*model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev, ok := l.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return copyEvent(ev), nil
}

// ListEvents returns snapshots of all events ordered by start time.
func (l *Ledger) ListEvents() []model.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]model.Event, 0, len(l.events))
	for _, ev := range l.events {
		events = append(events, *copyEvent(ev))
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
	return events
}

// EventUpdate is a partial update to an event; nil fields are left unchanged.
type EventUpdate struct {
	Name      *string            `json:"name,omitempty"`
	Category  *string            `json:"category,omitempty"`
	Status    *model.EventStatus `json:"status,omitempty"`
	StartTime *time.Time         `json:"start_time,omitempty"`
}

// UpdateEvent applies administrative changes to an event.
func (l *Ledger) UpdateEvent(id string, upd EventUpdate) (*model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev, ok := l.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}

	if upd.Name != nil {
		if *upd.Name == "" {
			return nil, fmt.Errorf("%w: event name is required", ErrValidation)
		}
		ev.Name = *upd.Name
	}
	if upd.Category != nil {
		ev.Category = *upd.Category
	}
	if upd.Status != nil {
		switch *upd.Status {
		case model.EventUpcoming, model.EventLive, model.EventCompleted, model.EventCancelled:
			ev.Status = *upd.Status
		default:
			return nil, fmt.Errorf("%w: unknown event status %q", ErrValidation, *upd.Status)
		}
	}
	if upd.StartTime != nil {
		ev.StartTime = *upd.StartTime
	}

	return copyEvent(ev), nil
}

// SelectionUpdate is a partial update to an event selection. Setting Odds
// rebaselines the selection: both the current quote and the initial odds move,
// since quotes are otherwise derived and never set directly.
type SelectionUpdate struct {
	Name   *string                `json:"name,omitempty"`
	Status *model.SelectionStatus `json:"status,omitempty"`
	Odds   *decimal.Decimal       `json:"odds,omitempty"`
}

// UpdateSelection applies administrative changes to one selection of an event.
func (l *Ledger) UpdateSelection(eventID, selectionID string, upd SelectionUpdate) (*model.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev, ok := l.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}

	sel := findSelection(ev, selectionID)
	if sel == nil {
		return nil, fmt.Errorf("%w: selection %s on event %s", ErrNotFound, selectionID, eventID)
	}

	if upd.Odds != nil {
		if minOdds := l.engine.MinOdds(); upd.Odds.LessThan(minOdds) {
			return nil, fmt.Errorf("%w: odds %s below minimum quote %s", ErrValidation, upd.Odds, minOdds)
		}
	}
	if upd.Status != nil {
		switch *upd.Status {
		case model.SelectionPending, model.SelectionWon, model.SelectionLost, model.SelectionVoided:
		default:
			return nil, fmt.Errorf("%w: unknown selection status %q", ErrValidation, *upd.Status)
		}
	}

	if upd.Name != nil {
		sel.Name = *upd.Name
	}
	if upd.Status != nil {
		sel.Status = *upd.Status
	}
	if upd.Odds != nil {
		sel.Odds = *upd.Odds
		sel.InitialOdds = *upd.Odds
	}

	return copyEvent(ev), nil
}

// DeleteEvent removes an event. Bets referencing the event keep their frozen
// snapshots and keep reporting correctly, but the event's volume totals are
// orphaned; a warning is logged with the number of referencing bets.
func (l *Ledger) DeleteEvent(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev, ok := l.events[id]
	if !ok {
		return fmt.Errorf("%w: event %s", ErrNotFound, id)
	}

	var referencing, open int
	for _, b := range l.bets {
		for _, leg := range b.Legs {
			if leg.EventID == id {
				referencing++
				if b.Status == model.BetOpen {
					open++
				}
				break
			}
		}
	}

	delete(l.events, id)
	if referencing > 0 {
		slog.Warn("event deleted with referencing bets; wagered totals orphaned",
			"id", id,
			"name", ev.Name,
			"referencing_bets", referencing,
			"open_bets", open,
			"total_wagered", ev.TotalWagered.String(),
		)
	} else {
		slog.Info("event deleted", "id", id, "name", ev.Name)
	}
	return nil
}

// Quote returns the current quoted odds for a selection, as a pure query:
// the standing quote inside the rate-limit window, a fresh computation
// outside it. Event state is never written.
func (l *Ledger) Quote(eventID, selectionID string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev, ok := l.events[eventID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	sel := findSelection(ev, selectionID)
	if sel == nil {
		return decimal.Zero, fmt.Errorf("%w: selection %s on event %s", ErrNotFound, selectionID, eventID)
	}
	return l.engine.Quote(ev, sel, l.now()), nil
}

// --- Customer operations ---

// CreateCustomer registers a customer with a zero balance and zero counters.
func (l *Ledger) CreateCustomer(name string) (*model.Customer, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := &model.Customer{
		ID:           uuid.New().String(),
		Name:         name,
		TotalWagered: decimal.Zero,
		TotalWon:     decimal.Zero,
		NetProfit:    decimal.Zero,
		Balance:      decimal.Zero,
	}
	l.customers[c.ID] = c
	slog.Info("customer created", "id", c.ID, "name", name)

	cp := *c
	return &cp, nil
}

// GetCustomer returns a snapshot of a customer.
func (l *Ledger) GetCustomer(id string) (*model.Customer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
	}
	cp := *c
	return &cp, nil
}

// ListCustomers returns snapshots of all customers ordered by name.
func (l *Ledger) ListCustomers() []model.Customer {
	l.mu.Lock()
	defer l.mu.Unlock()

	customers := make([]model.Customer, 0, len(l.customers))
	for _, c := range l.customers {
		customers = append(customers, *c)
	}
	sort.Slice(customers, func(i, j int) bool {
		if customers[i].Name != customers[j].Name {
			return customers[i].Name < customers[j].Name
		}
		return customers[i].ID < customers[j].ID
	})
	return customers
}

// AdjustBalance applies a signed delta to a customer's cash balance. This is
// the single balance primitive: deposits and manual payouts are positive,
// withdrawals negative. Balances may go negative; no credit limit applies.
func (l *Ledger) AdjustBalance(id string, delta decimal.Decimal) (*model.Customer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
	}

	c.Balance = c.Balance.Add(delta)
	slog.Info("balance adjusted", "customer", id, "delta", delta.String(), "balance", c.Balance.String())

	cp := *c
	return &cp, nil
}

// recordOutcome updates a customer's aggregate counters after a WON or LOST
// settlement. NetProfit is recomputed, never incrementally adjusted.
// Caller holds l.mu.
func (l *Ledger) recordOutcome(c *model.Customer, wager, win decimal.Decimal, now time.Time) {
	c.TotalBets++
	c.TotalWagered = c.TotalWagered.Add(wager)
	c.TotalWon = c.TotalWon.Add(win)
	c.NetProfit = c.TotalWon.Sub(c.TotalWagered)
	c.LastBet = now
}

// --- Internal helpers ---

func findSelection(ev *model.Event, selectionID string) *model.Selection {
	for i := range ev.Selections {
		if ev.Selections[i].ID == selectionID {
			return &ev.Selections[i]
		}
	}
	return nil
}

func copyEvent(ev *model.Event) *model.Event {
	cp := *ev
	cp.Selections = append([]model.Selection(nil), ev.Selections...)
	cp.SelectionVolume = make(map[string]decimal.Decimal, len(ev.SelectionVolume))
	for k, v := range ev.SelectionVolume {
		cp.SelectionVolume[k] = v
	}
	return &cp
}

func copyBet(b *model.Bet) *model.Bet {
	cp := *b
	cp.Legs = append([]model.BetLeg(nil), b.Legs...)
	return &cp
}
