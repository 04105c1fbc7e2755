// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fakturo/fakturo/internal/logging"
)

// DuckDBStore implements Store using DuckDB for persistent storage.
// The audit_events table is created by the database package's schema init.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a new DuckDB-backed audit store.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// Save persists an audit event to DuckDB.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	var details *string
	if len(event.Details) > 0 {
		d := string(event.Details)
		details = &d
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, organization_id, actor_user_id, event_type, severity,
			entity_type, entity_id, details, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.OrganizationID,
		event.ActorUserID,
		string(event.Type),
		string(event.Severity),
		event.EntityType,
		event.EntityID,
		details,
		event.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save audit event: %w", err)
	}
	return nil
}

// Query retrieves events matching the filter, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	query, args := buildQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan audit event row")
			continue
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

func buildQuery(filter QueryFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.OrganizationID != "" {
		conditions = append(conditions, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conditions = append(conditions, fmt.Sprintf("event_type IN (%s)", strings.Join(placeholders, ",")))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, filter.Until.UTC())
	}

	query := `
		SELECT id, organization_id, actor_user_id, event_type, severity,
		       entity_type, entity_id, details, created_at
		FROM audit_events`

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	return query, args
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	var event Event
	var actorUserID, details sql.NullString
	var eventType, severity string

	err := rows.Scan(
		&event.ID,
		&event.OrganizationID,
		&actorUserID,
		&eventType,
		&severity,
		&event.EntityType,
		&event.EntityID,
		&details,
		&event.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	event.Type = EventType(eventType)
	event.Severity = Severity(severity)
	event.ActorUserID = actorUserID.String
	if details.Valid && details.String != "" {
		event.Details = []byte(details.String)
	}
	return &event, nil
}
