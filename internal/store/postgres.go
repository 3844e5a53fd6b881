package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/model"
)

// PostgresArchive implements Archive using PostgreSQL. Monetary scalars are
// stored as NUMERIC for exact decimal precision; selections, per-selection
// volumes, and bet legs are stored as JSONB documents so leg odds round-trip
// exactly as frozen at placement time.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive creates a new PostgreSQL-backed archive.
func NewPostgresArchive(pool *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{pool: pool}
}

func (s *PostgresArchive) SaveEvent(ctx context.Context, ev *model.Event) error {
	selections, err := json.Marshal(ev.Selections)
	if err != nil {
		return fmt.Errorf("marshal selections: %w", err)
	}
	volumes, err := json.Marshal(ev.SelectionVolume)
	if err != nil {
		return fmt.Errorf("marshal selection volumes: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO events (id, name, category, start_time, status, selections, total_wagered, selection_volume, last_odds_update)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, category = EXCLUDED.category,
		   start_time = EXCLUDED.start_time, status = EXCLUDED.status,
		   selections = EXCLUDED.selections, total_wagered = EXCLUDED.total_wagered,
		   selection_volume = EXCLUDED.selection_volume, last_odds_update = EXCLUDED.last_odds_update`,
		ev.ID, ev.Name, ev.Category, ev.StartTime, ev.Status,
		selections, ev.TotalWagered.String(), volumes, ev.LastOddsUpdate,
	)
	return err
}

func (s *PostgresArchive) SaveBet(ctx context.Context, b *model.Bet) error {
	legs, err := json.Marshal(b.Legs)
	if err != nil {
		return fmt.Errorf("marshal legs: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO bets (id, customer_id, customer_name, employee_id, created_at, updated_at, status, type, wager_amount, potential_payout, legs, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10::NUMERIC, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   updated_at = EXCLUDED.updated_at, status = EXCLUDED.status,
		   legs = EXCLUDED.legs, notes = EXCLUDED.notes`,
		b.ID, b.CustomerID, b.CustomerName, b.EmployeeID,
		b.CreatedAt, b.UpdatedAt, b.Status, b.Type,
		b.WagerAmount.String(), b.PotentialPayout.String(), legs, b.Notes,
	)
	return err
}

func (s *PostgresArchive) SaveCustomer(ctx context.Context, c *model.Customer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO customers (id, name, total_bets, total_wagered, total_won, net_profit, balance, last_bet)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name, total_bets = EXCLUDED.total_bets,
		   total_wagered = EXCLUDED.total_wagered, total_won = EXCLUDED.total_won,
		   net_profit = EXCLUDED.net_profit, balance = EXCLUDED.balance,
		   last_bet = EXCLUDED.last_bet`,
		c.ID, c.Name, c.TotalBets,
		c.TotalWagered.String(), c.TotalWon.String(), c.NetProfit.String(), c.Balance.String(),
		c.LastBet,
	)
	return err
}

func (s *PostgresArchive) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

func (s *PostgresArchive) DeleteBet(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM bets WHERE id = $1`, id)
	return err
}

func (s *PostgresArchive) LoadEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, start_time, status,
		        selections, total_wagered::TEXT, selection_volume, last_odds_update
		 FROM events ORDER BY start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var ev model.Event
		var selections, volumes []byte
		var totalWagered string

		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Category, &ev.StartTime, &ev.Status,
			&selections, &totalWagered, &volumes, &ev.LastOddsUpdate); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(selections, &ev.Selections); err != nil {
			return nil, fmt.Errorf("unmarshal selections for event %s: %w", ev.ID, err)
		}
		if err := json.Unmarshal(volumes, &ev.SelectionVolume); err != nil {
			return nil, fmt.Errorf("unmarshal selection volumes for event %s: %w", ev.ID, err)
		}
		ev.TotalWagered, _ = decimal.NewFromString(totalWagered)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresArchive) LoadBets(ctx context.Context) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, customer_id, customer_name, employee_id, created_at, updated_at,
		        status, type, wager_amount::TEXT, potential_payout::TEXT, legs, notes
		 FROM bets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []model.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

func (s *PostgresArchive) LoadCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, total_bets,
		        total_wagered::TEXT, total_won::TEXT, net_profit::TEXT, balance::TEXT, last_bet
		 FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		var totalWagered, totalWon, netProfit, balance string

		if err := rows.Scan(&c.ID, &c.Name, &c.TotalBets,
			&totalWagered, &totalWon, &netProfit, &balance, &c.LastBet); err != nil {
			return nil, err
		}
		c.TotalWagered, _ = decimal.NewFromString(totalWagered)
		c.TotalWon, _ = decimal.NewFromString(totalWon)
		c.NetProfit, _ = decimal.NewFromString(netProfit)
		c.Balance, _ = decimal.NewFromString(balance)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *PostgresArchive) GetBet(ctx context.Context, id string) (*model.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, customer_id, customer_name, employee_id, created_at, updated_at,
		        status, type, wager_amount::TEXT, potential_payout::TEXT, legs, notes
		 FROM bets WHERE id = $1`, id)

	b, err := scanBet(row)
	if err != nil {
		return nil, fmt.Errorf("get bet %s: %w", id, err)
	}
	return b, nil
}

func (s *PostgresArchive) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	var totalWagered, totalWon, netProfit, balance string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, total_bets,
		        total_wagered::TEXT, total_won::TEXT, net_profit::TEXT, balance::TEXT, last_bet
		 FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.TotalBets,
			&totalWagered, &totalWon, &netProfit, &balance, &c.LastBet)
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, err)
	}

	c.TotalWagered, _ = decimal.NewFromString(totalWagered)
	c.TotalWon, _ = decimal.NewFromString(totalWon)
	c.NetProfit, _ = decimal.NewFromString(netProfit)
	c.Balance, _ = decimal.NewFromString(balance)
	return &c, nil
}

// pgxRow covers both pgx.Row and pgx.Rows for shared scanning.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanBet(row pgxRow) (*model.Bet, error) {
	var b model.Bet
	var wager, payout string
	var legs []byte

	if err := row.Scan(&b.ID, &b.CustomerID, &b.CustomerName, &b.EmployeeID,
		&b.CreatedAt, &b.UpdatedAt, &b.Status, &b.Type,
		&wager, &payout, &legs, &b.Notes); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(legs, &b.Legs); err != nil {
		return nil, fmt.Errorf("unmarshal legs for bet %s: %w", b.ID, err)
	}
	b.WagerAmount, _ = decimal.NewFromString(wager)
	b.PotentialPayout, _ = decimal.NewFromString(payout)
	return &b, nil
}
