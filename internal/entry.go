// Package internal provides the main application initialization and runtime logic.
package internal

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
	"golang.org/x/sync/errgroup"

	"github.com/starford/ftmemo/internal/api"
	"github.com/starford/ftmemo/internal/history"
	"github.com/starford/ftmemo/internal/memo"
	"github.com/starford/ftmemo/internal/sse"
	"github.com/starford/ftmemo/internal/store"
	"github.com/starford/ftmemo/internal/watch"
)

// Run starts the daemon with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Memo.StorePath),
		slog.Bool("memo_enabled", cfg.Memo.Enabled),
		slog.Bool("history_enabled", cfg.History.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize the mapping store (creates the parent directory).
	st, err := store.New(cfg.Memo.StorePath)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	// Optional SQLite change log.
	var rec history.Recorder
	if cfg.History.Enabled {
		db, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("init history: %w", err)
		}
		defer db.Close()
		rec = db
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	// refreshCh nudges the watcher to rebuild its watch set after a
	// mapping mutation. Buffered so the service never blocks on it.
	refreshCh := make(chan struct{}, 1)

	svcOpts := []memo.ServiceOption{
		memo.WithLogger(logger),
		memo.WithEnabled(cfg.Memo.Enabled),
		memo.WithEventFunc(func(kind, path string) {
			broker.PublishMappingEvent(kind, path)
			select {
			case refreshCh <- struct{}{}:
			default:
			}
		}),
	}
	if rec != nil {
		svcOpts = append(svcOpts, memo.WithRecorder(rec))
	}

	svc, err := memo.New(st, svcOpts...)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}

	// Startup cleanup: drop entries for files that vanished while we
	// were not running.
	if removed, err := svc.Cleanup(); err != nil {
		logger.Warn("startup cleanup failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("startup cleanup", slog.Int("removed", removed))
	}

	// Build API router.
	apiRouter := api.NewRouter(svc, rec, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the live stale-entry sweep.
	if cfg.Watch.Enabled {
		g.Go(func() error {
			return watch.Run(gCtx, svc, logger, cfg.Watch.Debounce(), refreshCh)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
