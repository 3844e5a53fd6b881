package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/oddsworks/book-engine/internal/book"
	"github.com/oddsworks/book-engine/internal/ledger"
	"github.com/oddsworks/book-engine/internal/metrics"
	"github.com/oddsworks/book-engine/internal/odds"
	"github.com/oddsworks/book-engine/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Odds engine configuration ---
	cfg := odds.DefaultConfig()
	if v := os.Getenv("ODDS_VOLUME_THRESHOLD"); v != "" {
		cfg.VolumeThreshold = envDecimal("ODDS_VOLUME_THRESHOLD", v)
	}
	if v := os.Getenv("ODDS_MAX_ADJUSTMENT"); v != "" {
		cfg.MaxAdjustment = envDecimal("ODDS_MAX_ADJUSTMENT", v)
	}
	if v := os.Getenv("ODDS_HOUSE_EDGE"); v != "" {
		cfg.HouseEdge = envDecimal("ODDS_HOUSE_EDGE", v)
	}
	if v := os.Getenv("ODDS_ADJUSTMENT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid ODDS_ADJUSTMENT_INTERVAL", "value", v, "err", err)
			os.Exit(1)
		}
		cfg.AdjustmentInterval = d
	}

	engine := odds.NewEngine(cfg)
	ldg := ledger.New(engine, nil)

	// --- Archive and report cache ---
	var archive store.Archive
	var reports *redis.Client
	var cleanup []func()

	var rdb *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		reports = rdb
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		archive = store.NewPostgresArchive(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			archive = store.NewCachedArchive(archive, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, ledger will not survive restarts")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	wsHub := book.NewWSHub()
	go wsHub.Run()

	// --- Book service ---
	svc := book.NewService(ldg, archive, reports, wsHub)
	if err := svc.Restore(context.Background()); err != nil {
		slog.Error("restore from archive failed", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for the back-office frontend.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"book-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time odds updates.
		r.Get("/ws", wsHub.HandleWS)

		// Event management.
		r.Get("/events", svc.ListEvents)
		r.Post("/events", svc.CreateEvent)
		r.Get("/events/{eventID}", svc.GetEvent)
		r.Put("/events/{eventID}", svc.UpdateEvent)
		r.Delete("/events/{eventID}", svc.DeleteEvent)
		r.Put("/events/{eventID}/selections/{selectionID}", svc.UpdateSelection)

		// Bet lifecycle.
		r.Get("/bets", svc.ListBets)
		r.Post("/bets", svc.CreateBet)
		r.Get("/bets/{betID}", svc.GetBet)
		r.Delete("/bets/{betID}", svc.DeleteBet)
		r.Get("/bets/{betID}/receipt", svc.GetReceipt)
		r.Put("/bets/{betID}/notes", svc.UpdateNotes)
		r.Post("/bets/{betID}/settle", svc.SettleBet)
		r.Put("/bets/{betID}/selections/{selectionID}", svc.UpdateBetSelection)

		// Customer accounts.
		r.Get("/customers", svc.ListCustomers)
		r.Post("/customers", svc.CreateCustomer)
		r.Get("/customers/{customerID}", svc.GetCustomer)
		r.Post("/customers/{customerID}/balance", svc.AdjustBalance)

		// Pure queries.
		r.Post("/quote", svc.Quote)
		r.Get("/reports", svc.GetReport)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("book-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down book-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("book-engine stopped")
}

func envDecimal(name, value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		slog.Error("invalid "+name, "value", value, "err", err)
		os.Exit(1)
	}
	return d
}
