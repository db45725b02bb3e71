// Package events streams security events to Kafka alongside the event log.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
	"github.com/mikey/mail-threat-engine/internal/metrics"
)

// messageWriter is the part of kafka-go's Writer used for publishing
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewKafkaWriter creates a writer for the given brokers and topic
func NewKafkaWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafkago.RequireAll,
	}
}

// PublishingEventLog decorates an EventLog and publishes each appended
// event as JSON. The wrapped log stays the system of record; publishing
// is best effort.
type PublishingEventLog struct {
	log     core.EventLog
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewPublishingEventLog creates a new publishing decorator
func NewPublishingEventLog(log core.EventLog, writer messageWriter, timeout time.Duration, logger *zap.Logger) *PublishingEventLog {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &PublishingEventLog{
		log:     log,
		writer:  writer,
		timeout: timeout,
		logger:  logger,
	}
}

// Append stores the event and then publishes it
func (p *PublishingEventLog) Append(ctx context.Context, event *core.SecurityEvent) error {
	if err := p.log.Append(ctx, event); err != nil {
		return err
	}

	if err := p.publish(ctx, event); err != nil {
		metrics.EventPublishFailures.Inc()
		p.logger.Warn("Failed to publish security event",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.Error(err))
	}
	return nil
}

// Query reads from the wrapped log
func (p *PublishingEventLog) Query(ctx context.Context, q core.EventQuery) ([]*core.SecurityEvent, error) {
	return p.log.Query(ctx, q)
}

// Close closes the writer
func (p *PublishingEventLog) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}

func (p *PublishingEventLog) publish(ctx context.Context, event *core.SecurityEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.TenantID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "type", Value: []byte(event.Type)},
			{Key: "severity", Value: []byte(event.Severity)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
