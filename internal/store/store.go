// Package store defines the durable archive behind the in-memory ledger.
// The ledger is the source of truth at runtime; the archive receives
// write-behind snapshots of every mutated entity and is read once at boot to
// rehydrate state. Implementations include PostgreSQL (durable), Redis
// (read-through cache wrapper), and in-memory (for testing).
package store

import (
	"context"

	"github.com/oddsworks/book-engine/internal/model"
)

// Archive persists ledger entity snapshots. Save operations are upserts;
// bet snapshots carry their legs with odds frozen at placement time.
type Archive interface {
	// --- Write-behind snapshots ---

	// SaveEvent upserts an event snapshot with its selections and volumes.
	SaveEvent(ctx context.Context, ev *model.Event) error

	// SaveBet upserts a bet snapshot with its frozen legs.
	SaveBet(ctx context.Context, b *model.Bet) error

	// SaveCustomer upserts a customer snapshot.
	SaveCustomer(ctx context.Context, c *model.Customer) error

	// DeleteEvent removes an archived event.
	DeleteEvent(ctx context.Context, id string) error

	// DeleteBet removes an archived bet.
	DeleteBet(ctx context.Context, id string) error

	// --- Boot rehydration ---

	// LoadEvents returns all archived events.
	LoadEvents(ctx context.Context) ([]model.Event, error)

	// LoadBets returns all archived bets, legs intact.
	LoadBets(ctx context.Context) ([]model.Bet, error)

	// LoadCustomers returns all archived customers.
	LoadCustomers(ctx context.Context) ([]model.Customer, error)

	// --- Point reads (served from cache when wrapped) ---

	// GetBet returns one archived bet.
	GetBet(ctx context.Context, id string) (*model.Bet, error)

	// GetCustomer returns one archived customer.
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
}
