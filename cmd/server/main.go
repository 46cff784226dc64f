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

	"github.com/go-chi/httplog/v2"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-media/pkg/simplemedia/api"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simple-media: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := cfg.BuildService(ctx, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			logger.Warn("shutdown cleanup failed", "error", err)
		}
	}()

	requestLogger := httplog.NewLogger("simple-media", httplog.Options{
		LogLevel:        cfg.Level(),
		JSON:            cfg.IsProduction(),
		Concise:         true,
		QuietDownRoutes: []string{"/health", "/metrics"},
		QuietDownPeriod: 10 * time.Second,
	})

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithRequestLogger(requestLogger),
		api.WithMetricsHandler(rt.Metrics.Handler()),
		api.WithJWTSecret(cfg.JWTSecret),
		api.WithMaxUploadBytes(cfg.MaxSourceBytes),
	}
	if rt.Signer != nil {
		opts = append(opts, api.WithBlobStore(rt.Store, rt.Signer))
	}
	if len(cfg.CORSOrigins) > 0 {
		opts = append(opts, api.WithCORSOrigins(cfg.CORSOrigins))
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, admin routes are unauthenticated")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.New(rt.Service, opts...).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("simple-media server starting",
			"port", cfg.Port,
			"env", cfg.Environment,
			"storage", cfg.StorageURL,
			"public_base", cfg.BaseURL())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exiting")
	return nil
}
