package factory

import (
	"fmt"

	"github.com/mikey/mail-threat-engine/internal/adapters/events"
	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/core"
	"go.uber.org/zap"
)

// EventsFactory creates the event log decorators based on configuration
type EventsFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewEventsFactory creates a new events factory
func NewEventsFactory(cfg *config.Config, logger *zap.Logger) *EventsFactory {
	return &EventsFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateEventLog returns base, wrapped in a Kafka publisher when
// event streaming is enabled
func (f *EventsFactory) CreateEventLog(base core.EventLog) (core.EventLog, error) {
	kafkaCfg := f.cfg.GetKafka()
	if !kafkaCfg.Enabled {
		return base, nil
	}
	if len(kafkaCfg.Brokers) == 0 {
		return nil, fmt.Errorf("event streaming enabled without brokers")
	}
	if kafkaCfg.Topic == "" {
		return nil, fmt.Errorf("event streaming enabled without a topic")
	}

	f.logger.Info("Publishing security events to Kafka",
		zap.Strings("brokers", kafkaCfg.Brokers),
		zap.String("topic", kafkaCfg.Topic))

	writer := events.NewKafkaWriter(kafkaCfg.Brokers, kafkaCfg.Topic)
	return events.NewPublishingEventLog(base, writer, kafkaCfg.PublishTimeout, f.logger), nil
}
