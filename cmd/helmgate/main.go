package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/helmgate/helmgate/internal/analyze"
	"github.com/helmgate/helmgate/internal/config"
	"github.com/helmgate/helmgate/internal/dispatch"
	"github.com/helmgate/helmgate/internal/ledger"
	"github.com/helmgate/helmgate/internal/metrics"
	"github.com/helmgate/helmgate/internal/route"
	"github.com/helmgate/helmgate/internal/server"
	"github.com/helmgate/helmgate/internal/telemetry"
	"github.com/helmgate/helmgate/internal/tokens"
	"github.com/helmgate/helmgate/internal/transform"
	"github.com/helmgate/helmgate/internal/translate"
	"github.com/helmgate/helmgate/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("helmgate", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	engine, err := route.NewEngine(cfg)
	if err != nil {
		log.Fatalf("Failed to compile routing table: %v", err)
	}

	led, err := ledger.Open(cfg.Ledger.Path, logger)
	if err != nil {
		log.Fatalf("Failed to open ledger: %v", err)
	}
	defer led.Close()

	analyzer := analyze.New(tokens.NewCounter(), &cfg.Router)
	translator := translate.New(&cfg.Router)
	registry := transform.DefaultRegistry()
	m := metrics.New()
	notifier := webhook.NewNotifier(cfg.Webhook, logger)

	dispatcher := dispatch.New(cfg, translator, registry, m, logger,
		dispatch.WithNotifier(notifier),
	)

	gw := server.NewGateway(cfg, engine, analyzer, dispatcher, m, led, notifier, logger)

	// Give the HTTP layer headroom over the dispatch timeout so streams
	// finish before the connection context is cancelled.
	srv := server.New(cfg.Server.Port, cfg.Router.Timeout+30*time.Second, gw, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case <-sigCh:
	}

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
