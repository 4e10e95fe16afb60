package main

import (
	"context"
	"errors"
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

	"github.com/flit/fantasy-engine/internal/auth"
	"github.com/flit/fantasy-engine/internal/config"
	"github.com/flit/fantasy-engine/internal/fantasy"
	"github.com/flit/fantasy-engine/internal/market"
	"github.com/flit/fantasy-engine/internal/metrics"
	"github.com/flit/fantasy-engine/internal/scheduler"
	"github.com/flit/fantasy-engine/internal/seed"
	"github.com/flit/fantasy-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		if err := store.Migrate(pool); err != nil {
			slog.Error("migrations failed", "err", err)
			os.Exit(1)
		}
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL.String())
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Draft push hub ---
	hub := fantasy.NewWSHub()
	go hub.Run(ctx)

	// --- Fantasy service ---
	opts := []fantasy.Option{fantasy.WithLessonReward(cfg.LessonReward)}
	var tokens *auth.Manager
	if cfg.AuthSecret != "" {
		tokens = auth.NewManager(cfg.AuthSecret, cfg.TokenTTL)
		opts = append(opts, fantasy.WithAuth(tokens))
		slog.Info("bearer auth enabled", "token_ttl", cfg.TokenTTL.String())
	}
	svc := fantasy.NewService(st, hub, opts...)

	if cfg.SeedDemoData {
		if err := seed.Load(ctx, st, svc); err != nil {
			slog.Error("demo seed failed", "err", err)
			os.Exit(1)
		}
	}

	// --- Background jobs ---
	jobs, err := scheduler.New()
	if err != nil {
		slog.Error("scheduler", "err", err)
		os.Exit(1)
	}
	if err := registerJobs(jobs, cfg, svc); err != nil {
		slog.Error("scheduler", "err", err)
		os.Exit(1)
	}
	jobs.Start()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
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
	if tokens != nil {
		r.Use(tokens.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"fantasy-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.RegisterRoutes)

	// --- Server ---
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("fantasy-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down fantasy-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	if err := jobs.Stop(); err != nil {
		slog.Error("scheduler shutdown error", "err", err)
	}
	// Ends open draft sockets.
	svc.Broker().Close()
	fmt.Println("fantasy-engine stopped")
}

// registerJobs schedules the draft clock, price refreshes and waiver runs.
func registerJobs(jobs *scheduler.Scheduler, cfg *config.Config, svc *fantasy.Service) error {
	tick := cfg.Jobs.DraftClockInterval
	if err := jobs.Every("draft-clock", tick, func(ctx context.Context) error {
		return svc.TickDrafts(ctx, int(tick/time.Second))
	}, false); err != nil {
		return err
	}

	var feed market.Feed = market.NewSimulatedFeed(nil, 0)
	if cfg.QuoteAPI.URL != "" {
		feed = market.FallbackFeed{
			Primary:  market.NewHTTPFeed(cfg.QuoteAPI.URL, cfg.QuoteAPI.Key, cfg.QuoteAPI.Timeout),
			Fallback: feed,
		}
		slog.Info("quote API enabled", "url", cfg.QuoteAPI.URL)
	}
	if err := jobs.Every("price-refresh", cfg.Jobs.PriceRefreshInterval, func(ctx context.Context) error {
		return svc.RefreshPrices(ctx, feed)
	}, true); err != nil {
		return err
	}

	return jobs.Every("waiver-processing", cfg.Jobs.WaiverInterval, svc.ProcessAllWaivers, false)
}
