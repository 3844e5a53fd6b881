package book

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/ledger"
	"github.com/oddsworks/book-engine/internal/metrics"
	"github.com/oddsworks/book-engine/internal/model"
	"github.com/oddsworks/book-engine/internal/odds"
)

// CreateBet handles POST /api/v1/bets
// Creates the bet as one transactional unit: payout frozen at current quotes,
// event volume recorded and repriced, customer balance debited.
func (s *Service) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateBetInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	bet, err := s.ledger.CreateBet(req)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	metrics.BetsTotal.WithLabelValues(string(bet.Type)).Inc()
	metrics.WageredTotal.Add(bet.WagerAmount.InexactFloat64())
	metrics.OpenBets.Inc()

	ctx := r.Context()
	s.archiveBet(ctx, bet.ID)
	s.archiveCustomer(ctx, bet.CustomerID)
	for _, leg := range bet.Legs {
		s.archiveEvent(ctx, leg.EventID)

		ev, err := s.ledger.GetEvent(leg.EventID)
		if err != nil {
			continue
		}
		// RepriceEvent stamps the bet's creation instant when it runs;
		// an older stamp means the pass was inside the rate-limit window.
		if ev.LastOddsUpdate.Equal(bet.CreatedAt) {
			metrics.RepricingPasses.Inc()
			s.broadcastOdds(ev)
		}
	}

	writeJSON(w, http.StatusCreated, bet)
}

// ListBets handles GET /api/v1/bets?start=&end=&order=asc|desc
// Bounds are RFC 3339 timestamps; order defaults to newest first.
func (s *Service) ListBets(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseDateRange(w, r)
	if !ok {
		return
	}
	asc := r.URL.Query().Get("order") == "asc"
	writeJSON(w, http.StatusOK, s.ledger.ListBets(from, to, asc))
}

// GetBet handles GET /api/v1/bets/{betID}
func (s *Service) GetBet(w http.ResponseWriter, r *http.Request) {
	bet, err := s.ledger.GetBet(chi.URLParam(r, "betID"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// GetReceipt handles GET /api/v1/bets/{betID}/receipt
func (s *Service) GetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.ledger.Receipt(chi.URLParam(r, "betID"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// SettleRequest is the JSON body for POST /api/v1/bets/{betID}/settle.
type SettleRequest struct {
	Status          model.BetStatus `json:"status"`
	CreditToBalance bool            `json:"credit_to_balance"`
}

// SettleBet handles POST /api/v1/bets/{betID}/settle
func (s *Service) SettleBet(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	bet, err := s.ledger.Settle(chi.URLParam(r, "betID"), req.Status, req.CreditToBalance)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	metrics.SettlementsTotal.WithLabelValues(string(bet.Status)).Inc()
	metrics.OpenBets.Dec()
	if bet.Status == model.BetWon && req.CreditToBalance {
		metrics.PaidOutTotal.Add(bet.PotentialPayout.InexactFloat64())
	}

	ctx := r.Context()
	s.archiveBet(ctx, bet.ID)
	s.archiveCustomer(ctx, bet.CustomerID)

	writeJSON(w, http.StatusOK, bet)
}

// UpdateNotesRequest is the JSON body for replacing a bet's audit notes.
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// UpdateNotes handles PUT /api/v1/bets/{betID}/notes
// Notes stay editable after settlement; they are the one mutable field on a
// terminal bet.
func (s *Service) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req UpdateNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	bet, err := s.ledger.SetNotes(chi.URLParam(r, "betID"), req.Notes)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.archiveBet(r.Context(), bet.ID)
	writeJSON(w, http.StatusOK, bet)
}

// UpdateBetSelectionRequest is the JSON body for marking one leg's outcome.
type UpdateBetSelectionRequest struct {
	Status model.SelectionStatus `json:"status"`
}

// UpdateBetSelection handles PUT /api/v1/bets/{betID}/selections/{selectionID}
func (s *Service) UpdateBetSelection(w http.ResponseWriter, r *http.Request) {
	var req UpdateBetSelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	bet, err := s.ledger.UpdateSelectionOutcome(chi.URLParam(r, "betID"), chi.URLParam(r, "selectionID"), req.Status)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.archiveBet(r.Context(), bet.ID)
	writeJSON(w, http.StatusOK, bet)
}

// DeleteBet handles DELETE /api/v1/bets/{betID}
// Deleting an OPEN bet reverses its wager debit and event volume.
func (s *Service) DeleteBet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "betID")

	// Snapshot before deletion so the reversal can be archived.
	bet, err := s.ledger.GetBet(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	if err := s.ledger.DeleteBet(id); err != nil {
		writeLedgerError(w, err)
		return
	}

	metrics.OpenBets.Dec()

	ctx := r.Context()
	if s.archive != nil {
		if err := s.archive.DeleteBet(ctx, id); err != nil {
			slog.Error("archive delete bet failed", "id", id, "err", err)
		}
	}
	s.archiveCustomer(ctx, bet.CustomerID)
	for _, leg := range bet.Legs {
		s.archiveEvent(ctx, leg.EventID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// QuoteRequest is the JSON body for POST /api/v1/quote. Selections are
// quoted at their current odds; when WagerAmount is positive the potential
// payout is computed for the given bet type. Nothing is recorded.
type QuoteRequest struct {
	WagerAmount decimal.Decimal            `json:"wager_amount"`
	Type        model.BetType              `json:"type"`
	Selections  []ledger.BetSelectionInput `json:"selections"`
}

// QuoteResponse is the JSON body returned from POST /api/v1/quote.
type QuoteResponse struct {
	Selections      []QuotedSelection `json:"selections"`
	PotentialPayout decimal.Decimal   `json:"potential_payout"`
}

// QuotedSelection carries one selection's current quote and implied
// probability.
type QuotedSelection struct {
	EventID            string          `json:"event_id"`
	SelectionID        string          `json:"selection_id"`
	Odds               decimal.Decimal `json:"odds"`
	ImpliedProbability decimal.Decimal `json:"implied_probability"`
}

// Quote handles POST /api/v1/quote — a pure query used by the bet slip UI.
func (s *Service) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Selections) == 0 {
		writeError(w, "at least one selection is required", http.StatusBadRequest)
		return
	}

	resp := QuoteResponse{PotentialPayout: decimal.Zero}
	legs := make([]model.BetLeg, 0, len(req.Selections))

	for _, sel := range req.Selections {
		quote, err := s.ledger.Quote(sel.EventID, sel.SelectionID)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		resp.Selections = append(resp.Selections, QuotedSelection{
			EventID:            sel.EventID,
			SelectionID:        sel.SelectionID,
			Odds:               quote,
			ImpliedProbability: odds.ImpliedProbability(quote),
		})
		legs = append(legs, model.BetLeg{
			EventID:     sel.EventID,
			SelectionID: sel.SelectionID,
			Odds:        quote,
		})
	}

	if req.WagerAmount.IsPositive() && req.Type != "" {
		payout, err := odds.ComputePayout(req.WagerAmount, legs, req.Type)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp.PotentialPayout = payout
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetReport handles GET /api/v1/reports?start=&end=
// The aggregation walks every bet in range, so results are cached briefly in
// Redis when a cache is configured.
func (s *Service) GetReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseDateRange(w, r)
	if !ok {
		return
	}
	if from.IsZero() || to.IsZero() {
		writeError(w, "start and end are required", http.StatusBadRequest)
		return
	}

	cacheKey := "report:" + from.Format(time.RFC3339) + ":" + to.Format(time.RFC3339)
	if s.reports != nil {
		if data, err := s.reports.Get(r.Context(), cacheKey).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
			return
		}
	}

	report := s.ledger.Report(from, to)

	if s.reports != nil {
		if data, err := json.Marshal(report); err == nil {
			s.reports.Set(r.Context(), cacheKey, data, reportCacheTTL)
		}
	}

	writeJSON(w, http.StatusOK, report)
}

// parseDateRange reads optional start/end RFC 3339 query parameters. On a
// malformed bound it writes a 400 and returns ok=false.
func parseDateRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, "start must be RFC 3339", http.StatusBadRequest)
			return from, to, false
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, "end must be RFC 3339", http.StatusBadRequest)
			return from, to, false
		}
	}
	return from, to, true
}
