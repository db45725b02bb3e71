package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/adapters/memory"
	"github.com/mikey/mail-threat-engine/internal/core"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type failingLog struct {
	core.EventLog
}

func (failingLog) Append(context.Context, *core.SecurityEvent) error {
	return errors.New("disk full")
}

func sampleEvent() *core.SecurityEvent {
	return &core.SecurityEvent{
		ID:        "e1",
		TenantID:  "t1",
		EventType: core.EventTypeEmailSecurity,
		Type:      core.EventInboundScan,
		Action:    "block",
		Severity:  core.SeverityHigh,
		Details:   map[string]any{"sender": "a@bad.com"},
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestAppendStoresAndPublishes(t *testing.T) {
	ctx := context.Background()
	log := memory.NewEventLog()
	writer := &fakeWriter{}
	p := NewPublishingEventLog(log, writer, time.Second, zap.NewNop())

	require.NoError(t, p.Append(ctx, sampleEvent()))
	assert.Equal(t, 1, log.Len())

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "t1", string(msg.Key))

	var decoded core.SecurityEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "e1", decoded.ID)
	assert.Equal(t, "a@bad.com", decoded.Details["sender"])

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, core.EventInboundScan, headers["type"])
	assert.Equal(t, core.SeverityHigh, headers["severity"])

	events, err := p.Query(ctx, core.EventQuery{TenantID: "t1"})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	require.NoError(t, p.Close())
	assert.True(t, writer.closed)
}

func TestPublishFailureDoesNotFailAppend(t *testing.T) {
	log := memory.NewEventLog()
	p := NewPublishingEventLog(log, &fakeWriter{err: errors.New("broker down")}, time.Second, zap.NewNop())

	require.NoError(t, p.Append(context.Background(), sampleEvent()))
	assert.Equal(t, 1, log.Len())
}

func TestStoreFailureSkipsPublish(t *testing.T) {
	writer := &fakeWriter{}
	p := NewPublishingEventLog(failingLog{}, writer, 0, zap.NewNop())

	err := p.Append(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.Empty(t, writer.messages)
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "security-events")
	assert.Equal(t, "security-events", w.Topic)
	assert.Equal(t, kafkago.RequireAll, w.RequiredAcks)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}
