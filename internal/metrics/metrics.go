// Package metrics provides Prometheus instrumentation for the book engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsTotal counts bets created, partitioned by type.
	BetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "book_bets_total",
		Help: "Total number of bets created",
	}, []string{"type"})

	// SettlementsTotal counts settlements, partitioned by final status.
	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "book_settlements_total",
		Help: "Total number of bet settlements",
	}, []string{"status"})

	// WageredTotal accumulates wagered amounts in account currency.
	WageredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "book_wagered_total",
		Help: "Cumulative wagered amount",
	})

	// PaidOutTotal accumulates credited payouts in account currency.
	PaidOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "book_paid_out_total",
		Help: "Cumulative payouts credited to customer balances",
	})

	// RepricingPasses counts odds engine repricing passes that ran.
	RepricingPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "book_repricing_passes_total",
		Help: "Odds repricing passes executed",
	})

	// OpenBets tracks the number of currently open bets.
	OpenBets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "book_open_bets",
		Help: "Number of currently open bets",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "book_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "book_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "book_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
