package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/floodwatch/imagery-pipeline/internal/adapter/copernicus"
	httpadapter "github.com/floodwatch/imagery-pipeline/internal/adapter/http"
	kafkaadapter "github.com/floodwatch/imagery-pipeline/internal/adapter/kafka"
	"github.com/floodwatch/imagery-pipeline/internal/adapter/storage"
	"github.com/floodwatch/imagery-pipeline/internal/config"
	"github.com/floodwatch/imagery-pipeline/internal/contour"
	"github.com/floodwatch/imagery-pipeline/internal/observability"
	"github.com/floodwatch/imagery-pipeline/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := newStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	logger.Info("storage initialized", "backend", cfg.StorageBackend)

	if !cfg.HasCredentials() {
		logger.Warn("no provider credentials configured, acquisition will degrade to placeholders")
	}

	source := copernicus.NewClient(cfg, logger, metrics)
	engine := contour.NewEngine(logger, metrics)

	// Result publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var kafkaPub *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPub = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPub
		logger.Info("kafka result publishing enabled", "topic", cfg.KafkaResultTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka result publishing disabled")
	}

	p := pipeline.New(pipeline.Options{
		Source:     source,
		Store:      store,
		Engine:     engine,
		Publisher:  publisher,
		CacheTTL:   cfg.CacheTTL,
		Confidence: cfg.Confidence,
		Logger:     logger,
		Metrics:    metrics,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func newStore(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return storage.NewS3Store(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3Region, logger)
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil
	default:
		return storage.NewLocalStore(cfg.ArtifactDir)
	}
}
