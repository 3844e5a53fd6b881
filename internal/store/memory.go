package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/oddsworks/book-engine/internal/model"
)

// MemoryArchive implements Archive with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryArchive struct {
	mu        sync.RWMutex
	events    map[string]model.Event
	bets      map[string]model.Bet
	customers map[string]model.Customer
}

// NewMemoryArchive creates a new in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{
		events:    make(map[string]model.Event),
		bets:      make(map[string]model.Bet),
		customers: make(map[string]model.Customer),
	}
}

func (s *MemoryArchive) SaveEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = *ev
	return nil
}

func (s *MemoryArchive) SaveBet(_ context.Context, b *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets[b.ID] = *b
	return nil
}

func (s *MemoryArchive) SaveCustomer(_ context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = *c
	return nil
}

func (s *MemoryArchive) DeleteEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	return nil
}

func (s *MemoryArchive) DeleteBet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bets, id)
	return nil
}

func (s *MemoryArchive) LoadEvents(_ context.Context) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.Event, 0, len(s.events))
	for _, ev := range s.events {
		events = append(events, ev)
	}
	return events, nil
}

func (s *MemoryArchive) LoadBets(_ context.Context) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bets := make([]model.Bet, 0, len(s.bets))
	for _, b := range s.bets {
		bets = append(bets, b)
	}
	return bets, nil
}

func (s *MemoryArchive) LoadCustomers(_ context.Context) ([]model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]model.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, c)
	}
	return customers, nil
}

func (s *MemoryArchive) GetBet(_ context.Context, id string) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bets[id]
	if !ok {
		return nil, fmt.Errorf("bet %s not found", id)
	}
	return &b, nil
}

func (s *MemoryArchive) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s not found", id)
	}
	return &c, nil
}
