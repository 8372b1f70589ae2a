// Package audit records sync lifecycle events: per-task results to Kafka
// for downstream consumers, and per-run bookkeeping rows to the store.
// Both sinks are optional; a disabled sink never blocks the pipeline.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/logger"
)

// EventProducer publishes sync task results.
type EventProducer interface {
	PublishResult(ctx context.Context, result models.SyncResult) error
	Close() error
}

// KafkaProducer is a Kafka-backed implementation of EventProducer.
type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

// syncEvent is the wire shape published per completed task.
type syncEvent struct {
	Timestamp string            `json:"timestamp"`
	Event     string            `json:"event"`
	Result    models.SyncResult `json:"result"`
}

// NewKafkaProducer creates a new KafkaProducer.
func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.SyncTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: cfg.WriteTimeout,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
	}
	return &KafkaProducer{
		writer: writer,
		logger: log.WithComponent("KafkaProducer"),
	}
}

// PublishResult sends one task result to the sync topic. Failures are logged
// and returned but never fail the sync run itself.
func (p *KafkaProducer) PublishResult(ctx context.Context, result models.SyncResult) error {
	event := syncEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Event:     "tenant_sync_completed",
		Result:    result,
	}
	bytes, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal sync event", err)
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(result.TenantID),
		Value: bytes,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to write sync event to kafka", err,
			logger.String("tenant_id", result.TenantID))
	}
	return err
}

// Close closes the underlying Kafka writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

var _ EventProducer = (*KafkaProducer)(nil)
