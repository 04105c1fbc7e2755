// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package audit provides fire-and-forget activity logging for the recurring
// engine. Events record who changed what for compliance and operator
// forensics; they are never required for scheduling correctness.
package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// EventType categorizes audit events.
type EventType string

const (
	// Profile lifecycle events (CRUD surface)
	EventTypeProfileCreated   EventType = "profile.created"
	EventTypeProfileUpdated   EventType = "profile.updated"
	EventTypeProfilePaused    EventType = "profile.paused"
	EventTypeProfileResumed   EventType = "profile.resumed"
	EventTypeProfileCancelled EventType = "profile.cancelled"
	EventTypeProfileTriggered EventType = "profile.triggered"

	// Run outcome events (engine-internal, actor is the system)
	EventTypeRunSucceeded EventType = "run.succeeded"
	EventTypeRunFailed    EventType = "run.failed"
	EventTypeRunSkipped   EventType = "run.skipped"
)

// Severity indicates the severity level of an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// SystemActor identifies engine-internal events that have no requesting user.
const SystemActor = "system"

// Event is one recorded activity.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// OrganizationID scopes the event to a tenant.
	OrganizationID string `json:"organization_id"`

	// ActorUserID is the requesting user, or SystemActor for events emitted
	// by the scheduler itself.
	ActorUserID string `json:"actor_user_id"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// Severity of the event.
	Severity Severity `json:"severity"`

	// EntityType and EntityID identify the affected record
	// ("recurring_profile", "recurring_run", "invoice").
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`

	// Details contains event-specific structured metadata.
	Details json.RawMessage `json:"details,omitempty"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// QueryFilter narrows audit event queries.
type QueryFilter struct {
	OrganizationID string
	EntityID       string
	Types          []EventType
	Since          time.Time
	Until          time.Time
	Limit          int
	Offset         int
}

// Store persists audit events.
type Store interface {
	// Save persists an audit event.
	Save(ctx context.Context, event *Event) error

	// Query retrieves events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
}
