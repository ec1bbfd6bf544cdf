package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"inventory-view-sync/internal/client"
	"inventory-view-sync/internal/config"
	"inventory-view-sync/internal/handlers"
	"inventory-view-sync/internal/middleware"
	"inventory-view-sync/internal/session"
	"inventory-view-sync/internal/telemetry"
	"inventory-view-sync/internal/view"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg := config.LoadConfig()

	slog.Info("Starting Inventory View Sync", "version", "1.0.0")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelTelemetry, err := telemetry.InitMetrics(ctx, cfg.MetricsExporter, "inventory-view-sync", cfg.MetricsPort)
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	slog.Info("OpenTelemetry telemetry initialized", "exporter", otelTelemetry.Exporter())

	viewTelemetry, err := telemetry.NewViewTelemetry(otelTelemetry.Meter())
	if err != nil {
		slog.Error("Failed to initialize view telemetry", "error", err)
		os.Exit(1)
	}

	// Views outlive the request that mounted them
	registry := view.NewRegistry(ctx, func(sess *session.Session) view.API {
		return client.NewInventoryClient(cfg.InventoryAPIURL, cfg.InventoryAPITimeout, sess)
	}, view.Options{
		PageSize:                     cfg.DefaultPageSize,
		NotificationBuffer:           cfg.NotificationBuffer,
		MovementCacheTTL:             cfg.MovementCacheTTL,
		MovementCacheCleanupInterval: cfg.MovementCacheCleanupInterval,
		Recorder:                     viewTelemetry,
	}, cfg.ViewIdleTimeout)

	// Initialize handlers
	viewHandler := handlers.NewViewHandler(registry)
	authHandler := handlers.NewAuthHandler(client.NewInventoryClient(cfg.InventoryAPIURL, cfg.InventoryAPITimeout, nil))
	healthHandler := handlers.NewHealthHandler(registry)
	slog.Debug("HTTP handlers initialized")

	r := mux.NewRouter()
	r.Use(telemetry.NewTelemetryMiddleware(viewTelemetry).Middleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.BearerAuthMiddleware)
	viewHandler.Register(v1)

	// Unauthenticated routes
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server ready to accept connections", "address", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(otelTelemetry.ServeMetrics)

	g.Go(func() error {
		return registry.RunReaper(gctx, reapInterval(cfg.ViewIdleTimeout))
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		// Give outstanding requests a deadline for completion
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}

		registry.Close()
		slog.Info("All views unmounted")

		if err := otelTelemetry.Shutdown(shutdownCtx); err != nil {
			slog.Error("Telemetry shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server exited")
}

func reapInterval(idle time.Duration) time.Duration {
	interval := idle / 4
	if interval < time.Second {
		return time.Second
	}
	return interval
}
