// Package book provides the HTTP handlers wiring the back-office API to the
// betting ledger: event and customer management, bet creation and settlement,
// quotes, receipts, and reports.
//
// The ledger is the in-memory source of truth; every successful mutation is
// archived write-behind to the durable store when one is configured.
package book

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/ledger"
	"github.com/oddsworks/book-engine/internal/metrics"
	"github.com/oddsworks/book-engine/internal/model"
	"github.com/oddsworks/book-engine/internal/store"
)

// reportCacheTTL bounds how stale a cached report may be.
const reportCacheTTL = 30 * time.Second

// Service handles back-office operations against the ledger.
// archive and reports may be nil: archiving and report caching are then
// skipped.
type Service struct {
	ledger  *ledger.Ledger
	archive store.Archive
	reports *redis.Client
	wsHub   *WSHub
}

// NewService creates a new book service. Pass nil for archive, reports, or
// hub when the corresponding backend is not configured.
func NewService(l *ledger.Ledger, archive store.Archive, reports *redis.Client, hub *WSHub) *Service {
	return &Service{
		ledger:  l,
		archive: archive,
		reports: reports,
		wsHub:   hub,
	}
}

// Restore rehydrates the ledger from the archive. Called once at startup.
func (s *Service) Restore(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	events, err := s.archive.LoadEvents(ctx)
	if err != nil {
		return err
	}
	bets, err := s.archive.LoadBets(ctx)
	if err != nil {
		return err
	}
	customers, err := s.archive.LoadCustomers(ctx)
	if err != nil {
		return err
	}
	s.ledger.Restore(events, bets, customers)

	open := 0
	for _, b := range bets {
		if b.Status == model.BetOpen {
			open++
		}
	}
	metrics.OpenBets.Set(float64(open))

	slog.Info("ledger restored from archive",
		"events", len(events), "bets", len(bets), "customers", len(customers))
	return nil
}

// --- Event handlers ---

// CreateEventRequest is the JSON body for POST /api/v1/events.
type CreateEventRequest struct {
	Name       string                  `json:"name"`
	Category   string                  `json:"category"`
	StartTime  time.Time               `json:"start_time"`
	Selections []ledger.SelectionInput `json:"selections"`
}

// CreateEvent handles POST /api/v1/events
func (s *Service) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev, err := s.ledger.CreateEvent(req.Name, req.Category, req.StartTime, req.Selections)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.archiveEvent(r.Context(), ev.ID)
	writeJSON(w, http.StatusCreated, ev)
}

// ListEvents handles GET /api/v1/events
func (s *Service) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.ListEvents())
}

// GetEvent handles GET /api/v1/events/{eventID}
func (s *Service) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.ledger.GetEvent(chi.URLParam(r, "eventID"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// UpdateEvent handles PUT /api/v1/events/{eventID}
func (s *Service) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var upd ledger.EventUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev, err := s.ledger.UpdateEvent(chi.URLParam(r, "eventID"), upd)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.archiveEvent(r.Context(), ev.ID)
	writeJSON(w, http.StatusOK, ev)
}

// UpdateSelection handles PUT /api/v1/events/{eventID}/selections/{selectionID}
func (s *Service) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	var upd ledger.SelectionUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ev, err := s.ledger.UpdateSelection(chi.URLParam(r, "eventID"), chi.URLParam(r, "selectionID"), upd)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.archiveEvent(r.Context(), ev.ID)
	s.broadcastOdds(ev)
	writeJSON(w, http.StatusOK, ev)
}

// DeleteEvent handles DELETE /api/v1/events/{eventID}
func (s *Service) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")
	if err := s.ledger.DeleteEvent(id); err != nil {
		writeLedgerError(w, err)
		return
	}

	if s.archive != nil {
		if err := s.archive.DeleteEvent(r.Context(), id); err != nil {
			slog.Error("archive delete event failed", "id", id, "err", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Customer handlers ---

// CreateCustomerRequest is the JSON body for POST /api/v1/customers.
type CreateCustomerRequest struct {
	Name string `json:"name"`
}

// CreateCustomer handles POST /api/v1/customers
func (s *Service) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := s.ledger.CreateCustomer(req.Name)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.archiveCustomer(r.Context(), c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// ListCustomers handles GET /api/v1/customers
func (s *Service) ListCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.ListCustomers())
}

// GetCustomer handles GET /api/v1/customers/{customerID}
func (s *Service) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.GetCustomer(chi.URLParam(r, "customerID"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AdjustBalanceRequest is the JSON body for balance adjustments. Amount is
// signed: positive for deposits and manual payouts, negative for withdrawals.
type AdjustBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// AdjustBalance handles POST /api/v1/customers/{customerID}/balance
func (s *Service) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	c, err := s.ledger.AdjustBalance(chi.URLParam(r, "customerID"), req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.archiveCustomer(r.Context(), c.ID)
	writeJSON(w, http.StatusOK, c)
}

// --- Archiving and broadcast helpers ---

// archiveEvent writes the ledger's current snapshot of an event to the
// archive. Archive failures are logged, not surfaced: the ledger already
// committed and stays authoritative.
func (s *Service) archiveEvent(ctx context.Context, id string) {
	if s.archive == nil {
		return
	}
	ev, err := s.ledger.GetEvent(id)
	if err != nil {
		return
	}
	if err := s.archive.SaveEvent(ctx, ev); err != nil {
		slog.Error("archive event failed", "id", id, "err", err)
	}
}

func (s *Service) archiveCustomer(ctx context.Context, id string) {
	if s.archive == nil {
		return
	}
	c, err := s.ledger.GetCustomer(id)
	if err != nil {
		return
	}
	if err := s.archive.SaveCustomer(ctx, c); err != nil {
		slog.Error("archive customer failed", "id", id, "err", err)
	}
}

func (s *Service) archiveBet(ctx context.Context, id string) {
	if s.archive == nil {
		return
	}
	b, err := s.ledger.GetBet(id)
	if err != nil {
		return
	}
	if err := s.archive.SaveBet(ctx, b); err != nil {
		slog.Error("archive bet failed", "id", id, "err", err)
	}
}

// broadcastOdds pushes an event's current quotes to connected terminals.
func (s *Service) broadcastOdds(ev *model.Event) {
	if s.wsHub == nil {
		return
	}
	msg := WSMessage{
		Type:      "odds_update",
		EventID:   ev.ID,
		EventName: ev.Name,
	}
	for _, sel := range ev.Selections {
		msg.Selections = append(msg.Selections, WSQuote{
			SelectionID: sel.ID,
			Name:        sel.Name,
			Odds:        sel.Odds.String(),
		})
	}
	s.wsHub.Broadcast(msg)
}

// --- Response helpers ---

// writeLedgerError maps the ledger error taxonomy onto HTTP statuses:
// validation 400, not found 404, invalid state 409.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrInvalidState):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
