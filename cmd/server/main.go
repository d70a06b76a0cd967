package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tradequest/level-engine/internal/clock"
	"github.com/tradequest/level-engine/internal/config"
	"github.com/tradequest/level-engine/internal/game"
	"github.com/tradequest/level-engine/internal/metrics"
	"github.com/tradequest/level-engine/internal/quote"
	"github.com/tradequest/level-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}
	lvl, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	st, closeStore, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		slog.Error("store init failed", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	// --- Quote source ---
	var src quote.Source
	switch cfg.Quotes.Provider {
	case config.ProviderYahoo:
		src = quote.NewYahooSource(cfg.Quotes.Proxy)
	default:
		src = quote.NewSyntheticSource(cfg.Quotes.Seed, 0)
	}
	slog.Info("quote source ready", "provider", src.Name())

	// --- WebSocket hub ---
	hub := game.NewHub()
	go hub.Run(ctx)

	// --- Session ---
	levels, err := cfg.Levels()
	if err != nil {
		slog.Error("load levels", "err", err)
		os.Exit(1)
	}
	svc := game.NewService(st, src, game.WithHub(hub), game.WithLevels(levels))
	if err := svc.Open(ctx); err != nil {
		slog.Error("open session", "err", err)
		os.Exit(1)
	}

	// --- Simulation clock ---
	sim, err := clock.NewSimulator(ctx, cfg.Simulation.Tick, time.Now(), svc)
	if err != nil {
		slog.Error("simulation clock", "err", err)
		os.Exit(1)
	}
	svc.SetStepper(sim.Step)
	if cfg.Simulation.Enabled {
		sim.Start()
		defer sim.Stop()
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"level-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", svc.Routes)

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("level-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down level-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("level-engine stopped")
}
