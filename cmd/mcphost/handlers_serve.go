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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/mcphost/internal/config"
	"github.com/haasonsaas/mcphost/internal/mcpauth"
	"github.com/haasonsaas/mcphost/internal/mcpserver"
	"github.com/haasonsaas/mcphost/internal/toolreg"
)

// runServe implements the serve command: load configuration, build the
// registry and server core, and run the HTTP connection manager until a
// shutdown signal arrives.
func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	slog.Info("starting mcphost server", "version", version, "commit", commit, "config", configPath, "debug", debug)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	tools := toolreg.NewRegistry()
	server := mcpserver.New(mcpserver.Info{
		Name:    "mcphost",
		Version: version,
	}, tools, slog.Default())

	auth, err := buildAuthenticator(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to build authenticator: %w", err)
	}
	cm := mcpserver.NewConnectionManager(server, auth, slog.Default())

	mux := http.NewServeMux()
	mux.Handle("/", cm.Handler())
	mux.Handle(metricsPathOrDefault(cfg.Server.MetricsPath), promhttp.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcphost server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cm.Shutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("mcphost server stopped gracefully")
	return nil
}

func metricsPathOrDefault(path string) string {
	if path == "" {
		return "/metrics"
	}
	return path
}

func buildAuthenticator(cfg config.AuthConfig) (mcpauth.Authenticator, error) {
	switch cfg.Mode {
	case "", "none":
		return mcpauth.None{}, nil
	case "api_key":
		validator := mcpauth.NewInMemoryKeyValidator(cfg.Keys)
		auth := mcpauth.NewAPIKey(validator, cfg.ProtectedPaths...)
		if cfg.Header != "" {
			auth.Header = cfg.Header
		}
		if cfg.QueryParam != "" {
			auth.QueryParam = cfg.QueryParam
		}
		return auth, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
