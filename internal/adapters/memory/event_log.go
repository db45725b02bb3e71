package memory

import (
	"context"
	"sync"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// EventLog is an in-memory append-only core.EventLog
type EventLog struct {
	mu     sync.RWMutex
	events []*core.SecurityEvent
}

// NewEventLog creates a new in-memory event log
func NewEventLog() *EventLog {
	return &EventLog{}
}

// Append stores a copy of the event
func (l *EventLog) Append(_ context.Context, event *core.SecurityEvent) error {
	c := *event
	l.mu.Lock()
	l.events = append(l.events, &c)
	l.mu.Unlock()
	return nil
}

// Query returns the matching events in insertion order
func (l *EventLog) Query(_ context.Context, q core.EventQuery) ([]*core.SecurityEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*core.SecurityEvent
	for _, e := range l.events {
		if q.Matches(e) {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// Len returns the number of stored events
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}
