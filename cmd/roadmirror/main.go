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

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"roadmirror/internal/admin"
	"roadmirror/internal/config"
	"roadmirror/internal/delivery"
	deliverynats "roadmirror/internal/delivery/nats"
	"roadmirror/internal/enrich"
	"roadmirror/internal/logging"
	"roadmirror/internal/producer"
	"roadmirror/internal/producer/progress"
	"roadmirror/internal/registry"
)

func main() {
	configDir := flag.String("config", "config", "Configuration directory")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.Load(*configDir)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("Logging error: %v", err)
	}
	defer logging.Shutdown()
	logger := slog.Default()

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer initCancel()

	// 2. Connect collaborators
	mongoClient, err := mongo.Connect(initCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	if err := mongoClient.Ping(initCtx, nil); err != nil {
		logger.Error("Failed to ping MongoDB", "error", err)
		os.Exit(1)
	}
	store := progress.NewMongoStore(mongoClient.Database(cfg.Mongo.Database))

	sink, err := deliverynats.NewSink(initCtx, cfg.Nats.URL, delivery.Options{
		AckTimeout: cfg.Nats.AckTimeout,
	}, logger)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}

	gateway := registry.NewClient(registry.Options{
		BaseURL:       cfg.Registry.BaseURL,
		Timeout:       cfg.Registry.Timeout,
		RetryAttempts: cfg.Registry.RetryAttempts,
	}, logger)

	// 3. Wire the producer
	var enricher producer.Enricher
	if cfg.Producer.EnrichGeometry {
		enricher = enrich.New(gateway, logger)
	}

	prod := producer.New(producer.Config{
		BackfillBatchSize: cfg.Producer.BackfillBatchSize,
		UpdatesBatchSize:  cfg.Producer.UpdatesBatchSize,
	}, gateway, sink, store, enricher, logger)

	scheduler := producer.NewScheduler(prod, cfg.Producer.Types, cfg.Producer.TickInterval, logger)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if err := scheduler.Start(bgCtx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	adminServer := admin.NewServer(cfg.Admin.Addr, prod, scheduler, cfg.Producer.Types, logger)
	adminServer.Start()

	logger.Info("roadmirror started", "types", cfg.Producer.Types)

	// 4. Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	bgCancel()
	if err := adminServer.Stop(shutdownCtx); err != nil {
		logger.Error("Admin server shutdown failed", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("Scheduler shutdown failed", "error", err)
	}
	if err := sink.Close(); err != nil {
		logger.Error("Sink close failed", "error", err)
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error("MongoDB disconnect failed", "error", err)
	}

	logger.Info("Stopped.")
}
