// Command layerd consumes rendered-chart events from Kafka, reorganizes each
// SVG into named layers and publishes a layered-chart event.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/psychro-chart-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/psychro-chart-etl/internal/adapter/kafka"
	"github.com/couchcryptid/psychro-chart-etl/internal/adapter/ledger"
	"github.com/couchcryptid/psychro-chart-etl/internal/config"
	"github.com/couchcryptid/psychro-chart-etl/internal/observability"
	"github.com/couchcryptid/psychro-chart-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	bolt, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		logger.Error("failed to open ledger", "error", err, "path", cfg.LedgerPath)
		os.Exit(1)
	}
	defer func() {
		if err := bolt.Close(); err != nil {
			logger.Error("ledger close error", "error", err)
		}
	}()
	l := ledger.NewCachedLedger(bolt, cfg.LedgerCacheSize)
	logger.Info("ledger opened", "path", cfg.LedgerPath, "cache_size", cfg.LedgerCacheSize)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewLayerTransformer(l, cfg.SVGRoot, metrics, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return p.Run(gctx)
	})

	// Stops the server once a signal arrives or either goroutine above fails.
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service error", "error", err)
	}

	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
