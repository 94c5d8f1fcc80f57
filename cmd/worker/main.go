package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/physiodesk/clinic-api/internal/config"
	"github.com/physiodesk/clinic-api/internal/notify"
	"github.com/physiodesk/clinic-api/internal/repository/postgres"
	"github.com/physiodesk/clinic-api/pkg/logger"
	"github.com/physiodesk/clinic-api/pkg/metrics"
	redisbroker "github.com/physiodesk/clinic-api/pkg/messaging/redis"
	"github.com/physiodesk/clinic-api/pkg/worker"
)

const outboxRetention = 7 * 24 * time.Hour

func main() {
	l := logger.NewLogger(nil)

	cfg, err := config.LoadConfig()
	if err != nil {
		l.Fatal(err, "failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		l.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, l.Zerolog())
	if err != nil {
		l.Fatal(err, "failed to connect to redis")
	}
	defer broker.Close()

	m := metrics.NewMetrics("physiodesk", "worker")

	txManager := postgres.NewTxManager(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	patientRepo := postgres.NewPatientRepository(db)

	processor := worker.NewOutboxProcessor(outboxRepo, txManager, broker, worker.OutboxProcessorConfig{
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
		MaxRetries:   cfg.Worker.MaxRetries,
	}, l, m)

	mailer := notify.NewMailer(cfg.SMTP, l)
	consumer := notify.NewConsumer(broker, patientRepo, mailer, l, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Start(ctx)

	go func() {
		if err := consumer.Run(ctx); err != nil && err != context.Canceled {
			l.Error(err, "notification consumer stopped")
		}
	}()

	// Daily sweep of processed outbox rows past retention.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := processor.Cleanup(ctx, outboxRetention)
				if err != nil {
					l.Error(err, "outbox cleanup failed")
					continue
				}
				l.Info("outbox cleanup complete", "deleted", deleted)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("shutting down worker")
	cancel()
	time.Sleep(time.Second)
	l.Info("worker stopped")
}
