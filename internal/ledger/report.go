package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/model"
)

// reportStatuses fixes the row order of the per-status breakdown.
var reportStatuses = []model.BetStatus{
	model.BetOpen,
	model.BetClosed,
	model.BetWon,
	model.BetLost,
	model.BetVoided,
}

// Report aggregates bets created within [from, to] into the reporting view:
// wagered/paid-out totals, house profit, per-status counts, one bucket per
// day across the whole range, and the top five customers by total wagered.
func (l *Ledger) Report(from, to time.Time) model.Report {
	bets := l.ListBets(from, to, true)
	customers := l.ListCustomers()

	report := model.Report{
		TotalBets:             len(bets),
		TotalWagered:          decimal.Zero,
		TotalPaidOut:          decimal.Zero,
		HouseProfit:           decimal.Zero,
		HouseProfitPercentage: decimal.Zero,
		AvgBetAmount:          decimal.Zero,
	}

	for _, b := range bets {
		report.TotalWagered = report.TotalWagered.Add(b.WagerAmount)
		if b.Status == model.BetWon {
			report.TotalPaidOut = report.TotalPaidOut.Add(b.PotentialPayout)
		}
	}

	report.HouseProfit = report.TotalWagered.Sub(report.TotalPaidOut)
	if report.TotalWagered.IsPositive() {
		report.HouseProfitPercentage = report.HouseProfit.
			Div(report.TotalWagered).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	if report.TotalBets > 0 {
		report.AvgBetAmount = report.TotalWagered.
			Div(decimal.NewFromInt(int64(report.TotalBets))).
			Round(2)
	}

	for _, status := range reportStatuses {
		row := model.StatusCount{Status: status, Amount: decimal.Zero}
		for _, b := range bets {
			if b.Status == status {
				row.Count++
				row.Amount = row.Amount.Add(b.WagerAmount)
			}
		}
		report.BetsByStatus = append(report.BetsByStatus, row)
	}

	// Top five customers by lifetime wagered amount.
	sort.Slice(customers, func(i, j int) bool {
		return customers[i].TotalWagered.GreaterThan(customers[j].TotalWagered)
	})
	if len(customers) > 5 {
		customers = customers[:5]
	}
	report.TopCustomers = customers

	report.DailyStats = dailyBuckets(bets, from, to)
	return report
}

// dailyBuckets fills one stat row per calendar day in [from, to], zero-valued
// days included, so charts render a continuous range.
func dailyBuckets(bets []model.Bet, from, to time.Time) []model.DailyStat {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil
	}

	const layout = "2006-01-02"
	buckets := make(map[string]*model.DailyStat)
	var order []string

	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for day := start; !day.After(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(layout)
		buckets[key] = &model.DailyStat{
			Date:        key,
			WagerAmount: decimal.Zero,
			PaidOut:     decimal.Zero,
			Profit:      decimal.Zero,
		}
		order = append(order, key)
	}

	for _, b := range bets {
		stat, ok := buckets[b.CreatedAt.Format(layout)]
		if !ok {
			continue
		}
		stat.BetsPlaced++
		stat.WagerAmount = stat.WagerAmount.Add(b.WagerAmount)
		if b.Status == model.BetWon {
			stat.PaidOut = stat.PaidOut.Add(b.PotentialPayout)
		}
		stat.Profit = stat.WagerAmount.Sub(stat.PaidOut)
	}

	stats := make([]model.DailyStat, 0, len(order))
	for _, key := range order {
		stats = append(stats, *buckets[key])
	}
	return stats
}

// Restore replaces the ledger's state with archived snapshots, used at boot
// to rehydrate from the durable store. Bet legs arrive with their odds still
// frozen at placement time.
func (l *Ledger) Restore(events []model.Event, bets []model.Bet, customers []model.Customer) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = make(map[string]*model.Event, len(events))
	for i := range events {
		ev := events[i]
		if ev.SelectionVolume == nil {
			ev.SelectionVolume = make(map[string]decimal.Decimal)
		}
		l.events[ev.ID] = copyEvent(&ev)
	}

	l.bets = make(map[string]*model.Bet, len(bets))
	for i := range bets {
		b := bets[i]
		l.bets[b.ID] = copyBet(&b)
	}

	l.customers = make(map[string]*model.Customer, len(customers))
	for i := range customers {
		c := customers[i]
		l.customers[c.ID] = &c
	}
}
