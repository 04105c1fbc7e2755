// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/fakturo/fakturo/internal/logging"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether audit logging is active.
	Enabled bool

	// BufferSize is the size of the async write buffer.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:    true,
		BufferSize: 1000,
	}
}

// Logger records audit events asynchronously. Events are buffered and written
// by a background goroutine; a full buffer drops the event rather than block
// the request path or the scheduler.
type Logger struct {
	config    *Config
	store     Store
	eventChan chan *Event
	stopChan  chan struct{}
	done      chan struct{}
}

// NewLogger creates a new audit logger and starts its async writer.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	bufferSize := config.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Event, bufferSize),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	go l.asyncWriter()
	return l
}

// asyncWriter drains the event buffer into the store.
func (l *Logger) asyncWriter() {
	defer close(l.done)

	for {
		select {
		case <-l.stopChan:
			// Drain remaining events before exit.
			for {
				select {
				case event := <-l.eventChan:
					l.writeEvent(event)
				default:
					return
				}
			}
		case event := <-l.eventChan:
			l.writeEvent(event)
		}
	}
}

func (l *Logger) writeEvent(event *Event) {
	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to save audit event")
	}
}

// Log records an audit event. Non-blocking; drops on a full buffer.
func (l *Logger) Log(event *Event) {
	if !l.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ActorUserID == "" {
		event.ActorUserID = SystemActor
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	select {
	case l.eventChan <- event:
	default:
		logging.Warn().Str("event_type", string(event.Type)).Msg("Audit event buffer full, dropping event")
	}
}

// Close shuts down the logger, draining buffered events first.
func (l *Logger) Close() error {
	close(l.stopChan)
	<-l.done
	return nil
}

// Query retrieves events matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// Helper methods for common audit events

// LogProfileEvent records a profile lifecycle event performed by a user.
func (l *Logger) LogProfileEvent(eventType EventType, orgID, actorUserID, profileID string, details map[string]interface{}) {
	l.Log(&Event{
		OrganizationID: orgID,
		ActorUserID:    actorUserID,
		Type:           eventType,
		Severity:       SeverityInfo,
		EntityType:     "recurring_profile",
		EntityID:       profileID,
		Details:        mustJSON(details),
	})
}

// LogRunEvent records a run outcome emitted by the scheduler.
func (l *Logger) LogRunEvent(eventType EventType, orgID, profileID string, details map[string]interface{}) {
	severity := SeverityInfo
	if eventType == EventTypeRunFailed {
		severity = SeverityError
	}
	l.Log(&Event{
		OrganizationID: orgID,
		ActorUserID:    SystemActor,
		Type:           eventType,
		Severity:       severity,
		EntityType:     "recurring_run",
		EntityID:       profileID,
		Details:        mustJSON(details),
	})
}

// mustJSON converts a value to JSON, returning an empty object on error.
func mustJSON(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
