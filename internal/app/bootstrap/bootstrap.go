// Package bootstrap is the composition root: it loads configuration,
// constructs the gateway module and its adapters, and assembles the HTTP
// server. Keep wiring here so gateway code stays framework-agnostic.
package bootstrap

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ngotraders/kopitra/internal/gateway"
	"github.com/ngotraders/kopitra/internal/gateway/adapters/memory"
	"github.com/ngotraders/kopitra/internal/gateway/adapters/system"
	"github.com/ngotraders/kopitra/internal/platform/config"
	"github.com/ngotraders/kopitra/internal/platform/httpserver"
	"github.com/ngotraders/kopitra/internal/platform/logging"
	"github.com/ngotraders/kopitra/internal/platform/metrics"
)

// App wraps the running HTTP server and the gateway module behind it.
type App struct {
	Server *httpserver.Server
	Module gateway.Module
	Logger *slog.Logger
}

// BuildServer loads configuration and wires the gateway module into an
// HTTP server ready to Start.
func BuildServer() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel)

	registry := prometheus.NewRegistry()
	gatewayMetrics := metrics.New(registry)

	clock := system.Clock{}
	ids := system.IDGenerator{}
	store := memory.NewStore(clock, ids, gatewayMetrics)

	module := gateway.NewModule(gateway.Dependencies{
		Store:       store,
		Clock:       clock,
		IDGenerator: ids,
		Metrics:     gatewayMetrics,
		Logger:      logger,
	})

	server := httpserver.New(module.Handler, logger, cfg.Addr(), registry)

	return &App{Server: server, Module: module, Logger: logger}, nil
}

// Run starts the HTTP server and blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Server.Start()
	}()

	select {
	case <-ctx.Done():
		return a.Server.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
