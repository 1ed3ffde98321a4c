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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kelseyhightower/envconfig"
	"github.com/riandyrn/otelchi"

	"github.com/vintbound/clubsync/internal/adapter/commerce7"
	"github.com/vintbound/clubsync/internal/adapter/fsm"
	"github.com/vintbound/clubsync/internal/adapter/otel"
	riveradapter "github.com/vintbound/clubsync/internal/adapter/river"
	"github.com/vintbound/clubsync/internal/adapter/sqlite"
	"github.com/vintbound/clubsync/internal/app"
	"github.com/vintbound/clubsync/internal/domain"

	handler "github.com/vintbound/clubsync/internal/adapter/http"
)

// Config holds the process-level settings. Adapter-specific settings live
// in each adapter's own Config.
type Config struct {
	Port         string `envconfig:"PORT" default:"8080"`
	DatabasePath string `envconfig:"DATABASE_PATH" default:"clubsync.db"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	ctx := context.Background()

	// --- Observability ---
	providers, err := otel.Setup(ctx, otel.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otel.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	queue := sqlite.NewSyncQueue(db)

	riverClient, err := riveradapter.Setup(ctx, db, &logMessenger{})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			slog.Error("river stop", "error", err)
		}
	}()

	crmCfg, err := commerce7.ConfigFromEnv()
	if err != nil {
		return fmt.Errorf("crm: %w", err)
	}
	gateway := otel.NewTracingGateway(commerce7.New(crmCfg))
	dispatcher := otel.NewTracingDispatcher(riveradapter.NewDispatcher(riverClient))

	// --- Application ---
	tiers := app.NewTierService(repo, app.NewProvisioner(gateway), dispatcher)
	sync := app.NewSyncProcessor(queue, gateway, dispatcher, fsm.New(), app.DefaultRetryPolicy())

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("clubsync", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("clubsync", "0.1.0"))
	handler.Register(api, tiers, sync)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("clubsync listening", "port", cfg.Port)
		slog.Info("API docs", "url", "http://localhost:"+cfg.Port+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}

	slog.Info("stopped")
	return nil
}

// logMessenger delivers notifications to the structured log. A real email
// or SMS provider plugs in behind domain.Messenger without touching the
// dispatch pipeline.
type logMessenger struct{}

func (m *logMessenger) Send(ctx context.Context, msg domain.Message) error {
	slog.InfoContext(ctx, "notification",
		"kind", msg.Kind,
		"client_ref", msg.ClientRef,
		"customer_ref", msg.CustomerRef,
		"tier_ref", msg.TierRef,
		"old_tier_ref", msg.OldTierRef,
	)
	return nil
}
