package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddsworks/book-engine/internal/model"
)

// CachedArchive wraps a primary Archive (PostgreSQL) with a Redis
// read-through cache for point reads. Writes go to the primary and refresh
// or invalidate the cached entry; bulk loads pass through uncached.
type CachedArchive struct {
	primary Archive
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedArchive creates a cached wrapper around a primary archive.
func NewCachedArchive(primary Archive, rdb *redis.Client, ttl time.Duration) *CachedArchive {
	return &CachedArchive{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh cache) ---

func (s *CachedArchive) SaveEvent(ctx context.Context, ev *model.Event) error {
	return s.primary.SaveEvent(ctx, ev)
}

func (s *CachedArchive) SaveBet(ctx context.Context, b *model.Bet) error {
	if err := s.primary.SaveBet(ctx, b); err != nil {
		return err
	}
	s.cacheJSON(ctx, betKey(b.ID), b)
	return nil
}

func (s *CachedArchive) SaveCustomer(ctx context.Context, c *model.Customer) error {
	if err := s.primary.SaveCustomer(ctx, c); err != nil {
		return err
	}
	s.cacheJSON(ctx, customerKey(c.ID), c)
	return nil
}

func (s *CachedArchive) DeleteEvent(ctx context.Context, id string) error {
	return s.primary.DeleteEvent(ctx, id)
}

func (s *CachedArchive) DeleteBet(ctx context.Context, id string) error {
	if err := s.primary.DeleteBet(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, betKey(id))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedArchive) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	data, err := s.rdb.Get(ctx, betKey(id)).Bytes()
	if err == nil {
		var b model.Bet
		if json.Unmarshal(data, &b) == nil {
			return &b, nil
		}
	}

	b, err := s.primary.GetBet(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, betKey(id), b)
	return b, nil
}

func (s *CachedArchive) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	data, err := s.rdb.Get(ctx, customerKey(id)).Bytes()
	if err == nil {
		var c model.Customer
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	c, err := s.primary.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheJSON(ctx, customerKey(id), c)
	return c, nil
}

// --- Passthrough (not cached) ---

func (s *CachedArchive) LoadEvents(ctx context.Context) ([]model.Event, error) {
	return s.primary.LoadEvents(ctx)
}

func (s *CachedArchive) LoadBets(ctx context.Context) ([]model.Bet, error) {
	return s.primary.LoadBets(ctx)
}

func (s *CachedArchive) LoadCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.primary.LoadCustomers(ctx)
}

// --- Cache helpers ---

func (s *CachedArchive) cacheJSON(ctx context.Context, key string, v interface{}) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func betKey(id string) string      { return fmt.Sprintf("bet:%s", id) }
func customerKey(id string) string { return fmt.Sprintf("customer:%s", id) }
