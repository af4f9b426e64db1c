package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/simaogato/settleflow/internal/adapter/api"
	"github.com/simaogato/settleflow/internal/adapter/events/kafka"
	"github.com/simaogato/settleflow/internal/adapter/repository/postgres"
	"github.com/simaogato/settleflow/internal/config"
	"github.com/simaogato/settleflow/internal/logging"
	"github.com/simaogato/settleflow/internal/metrics"
	"github.com/simaogato/settleflow/internal/usecase/intake"
	"github.com/simaogato/settleflow/internal/usecase/settlement"
	"github.com/simaogato/settleflow/internal/usecase/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv("SETTLEFLOW_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Env)

	// 1. Setup database
	db, err := postgres.NewDB(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := postgres.NewStore(db)

	// 2. Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics.Register(registry)

	// 3. Optional settlement outcome publisher
	var notifier settlement.Notifier
	if cfg.Kafka.Enabled {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		notifier = publisher
		logger.Info("settlement notifications enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	// 4. Services
	intakeService := intake.NewService(store, logger, cfg.SeedBalanceCap)
	engine := settlement.NewEngine(store, logger, notifier)

	// 5. HTTP intake API
	handler := api.NewHandler(intakeService, logger)
	router := api.NewRouter(handler, registry, logger)

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr(),
		Handler: router,
	}

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	go func() {
		logger.Info("intake API listening", "addr", cfg.HTTP.Addr())

		// The embedded worker starts only once the listener is bound.
		if cfg.SingleProcess {
			logger.Info("single-process mode: starting embedded settlement worker")
			coordinator := worker.NewCoordinator(store, engine, logger, worker.Config{
				WorkerID:     cfg.Worker.ID,
				BatchSize:    cfg.Worker.BatchSize,
				StartEventID: cfg.Worker.StartEventID,
			})
			go coordinator.Run(workerCtx, cfg.Worker.CooldownEmbedded)
		}

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	waitForShutdown(srv, stopWorker, logger.Info)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the
// server and the embedded worker.
func waitForShutdown(srv *http.Server, stopWorker context.CancelFunc, logInfo func(string, ...any)) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logInfo("shutting down", "signal", sig.String())

	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	logInfo("server stopped")
}
