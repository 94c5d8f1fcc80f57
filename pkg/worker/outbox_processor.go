package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/physiodesk/clinic-api/internal/model"
	"github.com/physiodesk/clinic-api/internal/repository"
	"github.com/physiodesk/clinic-api/pkg/logger"
	"github.com/physiodesk/clinic-api/pkg/messaging"
	"github.com/physiodesk/clinic-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxRetries   int
	Channel      string
}

// OutboxProcessor drains committed lifecycle events to the broker. Events
// past MaxRetries move to DEAD_LETTER instead of being retried forever.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	tx      repository.TxManager
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	tx repository.TxManager,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	l *logger.Logger,
	m *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.Channel == "" {
		config.Channel = "clinic.lifecycle"
	}

	return &OutboxProcessor{
		repo:    repo,
		tx:      tx,
		broker:  broker,
		config:  config,
		logger:  l,
		metrics: m,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox batch")
			}
		}
	}
}

func (p *OutboxProcessor) processBatch(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	return p.tx.WithinTx(ctx, func(ctx context.Context) error {
		events, err := p.repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}

		for _, event := range events {
			if err := p.processEvent(ctx, event); err != nil {
				p.logger.Error(err, "failed to process event",
					"event_id", event.ID.String(),
					"event_type", event.EventType)
			}
		}
		return nil
	})
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	message := map[string]interface{}{
		"id":         event.ID,
		"event_type": event.EventType,
		"payload":    json.RawMessage(event.Payload),
		"created_at": event.CreatedAt,
	}

	if err := p.broker.Publish(ctx, p.config.Channel, message); err != nil {
		p.metrics.OutboxEventsFailed.Inc()

		errMsg := err.Error()
		status := model.OutboxStatusFailed
		if event.RetryCount+1 >= p.config.MaxRetries {
			status = model.OutboxStatusDeadLetter
			p.logger.Warn("outbox event moved to dead letter",
				"event_id", event.ID.String(),
				"retries", event.RetryCount)
		}
		return p.repo.UpdateStatus(ctx, event.ID, status, &errMsg)
	}

	p.metrics.OutboxEventsProcessed.Inc()
	return p.repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil)
}

// Cleanup deletes processed events older than the retention window.
func (p *OutboxProcessor) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return p.repo.DeleteProcessedBefore(ctx, time.Now().Add(-retention))
}
