package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/simaogato/settleflow/internal/adapter/events/kafka"
	"github.com/simaogato/settleflow/internal/adapter/repository/postgres"
	"github.com/simaogato/settleflow/internal/config"
	"github.com/simaogato/settleflow/internal/logging"
	"github.com/simaogato/settleflow/internal/usecase/settlement"
	"github.com/simaogato/settleflow/internal/usecase/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("SETTLEFLOW_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.ServiceName+"-worker", cfg.Env)

	if cfg.SingleProcess {
		logger.Info("single-process mode is enabled: the worker runs embedded in the API server; " +
			"disable single-process mode to run the worker separately")
		return
	}

	db, err := postgres.NewDB(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db.LogLatency(ctx, logger)

	store := postgres.NewStore(db)

	var notifier settlement.Notifier
	if cfg.Kafka.Enabled {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		notifier = publisher
		logger.Info("settlement notifications enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	engine := settlement.NewEngine(store, logger, notifier)
	coordinator := worker.NewCoordinator(store, engine, logger, worker.Config{
		WorkerID:     cfg.Worker.ID,
		BatchSize:    cfg.Worker.BatchSize,
		StartEventID: cfg.Worker.StartEventID,
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigChan
		logger.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	coordinator.Run(ctx, cfg.Worker.CooldownStandalone)
}
