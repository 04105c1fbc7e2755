// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package audit

import (
	"context"
	"testing"
	"time"
)

func TestLoggerWritesToStore(t *testing.T) {
	store := NewMemoryStore(100)
	logger := NewLogger(store, DefaultConfig())

	logger.LogProfileEvent(EventTypeProfileCreated, "org-1", "user-1", "prof-1", map[string]interface{}{
		"interval_unit": "MONTH",
	})
	logger.LogRunEvent(EventTypeRunFailed, "org-1", "prof-1", map[string]interface{}{
		"error": "template missing",
	})

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	events, err := store.Query(context.Background(), QueryFilter{OrganizationID: "org-1"})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// Newest first.
	if events[0].Type != EventTypeRunFailed {
		t.Errorf("expected run.failed first, got %s", events[0].Type)
	}
	if events[0].Severity != SeverityError {
		t.Errorf("expected error severity for failed run, got %s", events[0].Severity)
	}
	if events[0].ActorUserID != SystemActor {
		t.Errorf("expected system actor for run event, got %s", events[0].ActorUserID)
	}
	if events[1].ActorUserID != "user-1" {
		t.Errorf("expected user-1 actor, got %s", events[1].ActorUserID)
	}
}

func TestLoggerDisabled(t *testing.T) {
	store := NewMemoryStore(100)
	logger := NewLogger(store, &Config{Enabled: false, BufferSize: 10})

	logger.LogProfileEvent(EventTypeProfileCreated, "org-1", "user-1", "prof-1", nil)
	_ = logger.Close()

	events, err := store.Query(context.Background(), QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected 0 events when disabled, got %d", len(events))
	}
}

func TestLoggerPopulatesDefaults(t *testing.T) {
	store := NewMemoryStore(100)
	logger := NewLogger(store, DefaultConfig())

	logger.Log(&Event{
		OrganizationID: "org-1",
		Type:           EventTypeProfilePaused,
		EntityType:     "recurring_profile",
		EntityID:       "prof-1",
	})
	_ = logger.Close()

	events, err := store.Query(context.Background(), QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Error("expected generated event ID")
	}
	if e.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if e.ActorUserID != SystemActor {
		t.Errorf("expected system actor default, got %s", e.ActorUserID)
	}
	if e.Severity != SeverityInfo {
		t.Errorf("expected info severity default, got %s", e.Severity)
	}
}

func TestMemoryStoreFilters(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	save := func(orgID, entityID string, eventType EventType, ts time.Time) {
		_ = store.Save(ctx, &Event{
			ID:             entityID + "-" + string(eventType),
			OrganizationID: orgID,
			ActorUserID:    "user-1",
			Type:           eventType,
			Severity:       SeverityInfo,
			EntityType:     "recurring_profile",
			EntityID:       entityID,
			Timestamp:      ts,
		})
	}

	save("org-1", "prof-1", EventTypeProfileCreated, base)
	save("org-1", "prof-1", EventTypeProfilePaused, base.Add(time.Hour))
	save("org-1", "prof-2", EventTypeProfileCreated, base.Add(2*time.Hour))
	save("org-2", "prof-3", EventTypeProfileCreated, base.Add(3*time.Hour))

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"by org", QueryFilter{OrganizationID: "org-1"}, 3},
		{"by entity", QueryFilter{OrganizationID: "org-1", EntityID: "prof-1"}, 2},
		{"by type", QueryFilter{Types: []EventType{EventTypeProfilePaused}}, 1},
		{"since", QueryFilter{Since: base.Add(90 * time.Minute)}, 2},
		{"until", QueryFilter{Until: base.Add(30 * time.Minute)}, 1},
		{"limit", QueryFilter{Limit: 2}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() error: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("expected %d events, got %d", tt.want, len(events))
			}
		})
	}
}
