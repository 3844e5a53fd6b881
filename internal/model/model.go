// Package model defines the core domain types shared across the book engine.
// All monetary values and odds use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "UPCOMING"
	EventLive      EventStatus = "LIVE"
	EventCompleted EventStatus = "COMPLETED"
	EventCancelled EventStatus = "CANCELLED"
)

// BetStatus is the lifecycle state of a bet. OPEN is the only non-terminal
// state. CLOSED is declared for wire compatibility but no operation produces it.
type BetStatus string

const (
	BetOpen   BetStatus = "OPEN"
	BetClosed BetStatus = "CLOSED"
	BetWon    BetStatus = "WON"
	BetLost   BetStatus = "LOST"
	BetVoided BetStatus = "VOIDED"
)

// Terminal reports whether s is a terminal bet status.
func (s BetStatus) Terminal() bool {
	return s == BetWon || s == BetLost || s == BetVoided || s == BetClosed
}

// BetType distinguishes single-selection bets from multi-leg parlays.
type BetType string

const (
	BetSingle BetType = "SINGLE"
	BetParlay BetType = "PARLAY"
)

// SelectionStatus is the outcome state of a selection or bet leg.
type SelectionStatus string

const (
	SelectionPending SelectionStatus = "PENDING"
	SelectionWon     SelectionStatus = "WON"
	SelectionLost    SelectionStatus = "LOST"
	SelectionVoided  SelectionStatus = "VOIDED"
)

// Selection is one outcome option within an event that can be wagered on.
// InitialOdds is fixed at creation; Odds is the current quote and is only
// ever written by the odds engine's repricing pass.
type Selection struct {
	ID          string          `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Odds        decimal.Decimal `json:"odds" db:"odds"`
	InitialOdds decimal.Decimal `json:"initial_odds" db:"initial_odds"`
	Volume      decimal.Decimal `json:"volume" db:"volume"` // cumulative wagered amount
	Status      SelectionStatus `json:"status" db:"status"`
}

// Event owns an ordered set of selections and tracks aggregate wager volume.
// Invariant: TotalWagered equals the sum of SelectionVolume values.
type Event struct {
	ID              string                     `json:"id" db:"id"`
	Name            string                     `json:"name" db:"name"`
	Category        string                     `json:"category" db:"category"`
	StartTime       time.Time                  `json:"start_time" db:"start_time"`
	Status          EventStatus                `json:"status" db:"status"`
	Selections      []Selection                `json:"selections"`
	TotalWagered    decimal.Decimal            `json:"total_wagered" db:"total_wagered"`
	SelectionVolume map[string]decimal.Decimal `json:"selection_volume"` // selectionID → wagered
	LastOddsUpdate  time.Time                  `json:"last_odds_update" db:"last_odds_update"`
}

// BetLeg is a deep, immutable copy of a selection at the moment a bet was
// placed. Odds are frozen here — later repricing of the live selection never
// touches an existing leg.
type BetLeg struct {
	ID            string          `json:"id" db:"id"`
	EventID       string          `json:"event_id" db:"event_id"`
	EventName     string          `json:"event_name" db:"event_name"`
	SelectionID   string          `json:"selection_id" db:"selection_id"`
	SelectionName string          `json:"selection_name" db:"selection_name"`
	Odds          decimal.Decimal `json:"odds" db:"odds"`
	Status        SelectionStatus `json:"status" db:"status"`
}

// Bet is a wager record. PotentialPayout is computed once at creation and
// frozen. Once Status leaves OPEN the bet is immutable except for Notes.
type Bet struct {
	ID              string          `json:"id" db:"id"`
	CustomerID      string          `json:"customer_id" db:"customer_id"`
	CustomerName    string          `json:"customer_name" db:"customer_name"`
	EmployeeID      string          `json:"employee_id" db:"employee_id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Status          BetStatus       `json:"status" db:"status"`
	Type            BetType         `json:"type" db:"type"`
	WagerAmount     decimal.Decimal `json:"wager_amount" db:"wager_amount"`
	PotentialPayout decimal.Decimal `json:"potential_payout" db:"potential_payout"`
	Legs            []BetLeg        `json:"selections"`
	Notes           string          `json:"notes,omitempty" db:"notes"`
}

// Customer is a standalone aggregate referenced by ID from bets.
// NetProfit is always recomputed as TotalWon - TotalWagered, never mutated
// independently. Balance may go negative; no credit limit is enforced here.
type Customer struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	TotalBets    int             `json:"total_bets" db:"total_bets"`
	TotalWagered decimal.Decimal `json:"total_wagered" db:"total_wagered"`
	TotalWon     decimal.Decimal `json:"total_won" db:"total_won"`
	NetProfit    decimal.Decimal `json:"net_profit" db:"net_profit"`
	Balance      decimal.Decimal `json:"balance" db:"balance"`
	LastBet      time.Time       `json:"last_bet,omitempty" db:"last_bet"`
}

// Receipt is the printable view of a bet handed to the customer at the
// counter. It carries the frozen terms, not live event state.
type Receipt struct {
	BetID           string          `json:"bet_id"`
	Timestamp       time.Time       `json:"timestamp"`
	CustomerID      string          `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	EmployeeID      string          `json:"employee_id"`
	Type            BetType         `json:"type"`
	Legs            []BetLeg        `json:"selections"`
	WagerAmount     decimal.Decimal `json:"wager_amount"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
}

// StatusCount is one row of the per-status report breakdown.
type StatusCount struct {
	Status BetStatus       `json:"status"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// DailyStat is one day's bucket in the report.
type DailyStat struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	BetsPlaced  int             `json:"bets_placed"`
	WagerAmount decimal.Decimal `json:"wager_amount"`
	PaidOut     decimal.Decimal `json:"paid_out"`
	Profit      decimal.Decimal `json:"profit"`
}

// Report aggregates ledger activity over a date range for the reporting UI.
type Report struct {
	TotalBets             int             `json:"total_bets"`
	TotalWagered          decimal.Decimal `json:"total_wagered"`
	TotalPaidOut          decimal.Decimal `json:"total_paid_out"`
	HouseProfit           decimal.Decimal `json:"house_profit"`
	HouseProfitPercentage decimal.Decimal `json:"house_profit_percentage"`
	AvgBetAmount          decimal.Decimal `json:"avg_bet_amount"`
	TopCustomers          []Customer      `json:"top_customers"`
	BetsByStatus          []StatusCount   `json:"bets_by_status"`
	DailyStats            []DailyStat     `json:"daily_stats"`
}
