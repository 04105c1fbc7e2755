// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package database

import (
	"fmt"
)

// schemaStatements creates all tables and indexes. Statements are idempotent
// (IF NOT EXISTS) so reopening an existing database is safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS recurring_profiles (
		id                  VARCHAR PRIMARY KEY,
		organization_id     VARCHAR NOT NULL,
		client_id           VARCHAR,
		template_invoice_id VARCHAR NOT NULL,
		interval_unit       VARCHAR NOT NULL,
		interval_count      INTEGER NOT NULL,
		start_at            TIMESTAMP NOT NULL,
		next_run_at         TIMESTAMP,
		due_days            INTEGER,
		auto_send_email     BOOLEAN NOT NULL DEFAULT false,
		variant             VARCHAR NOT NULL DEFAULT 'standard',
		status              VARCHAR NOT NULL DEFAULT 'ACTIVE',
		version             BIGINT NOT NULL DEFAULT 0,
		last_run_at         TIMESTAMP,
		last_invoice_id     VARCHAR,
		last_error          VARCHAR,
		created_at          TIMESTAMP NOT NULL,
		updated_at          TIMESTAMP NOT NULL
	)`,

	// The due scan filters on status and orders by next_run_at.
	`CREATE INDEX IF NOT EXISTS idx_recurring_profiles_due
		ON recurring_profiles (status, next_run_at)`,

	`CREATE INDEX IF NOT EXISTS idx_recurring_profiles_org
		ON recurring_profiles (organization_id)`,

	`CREATE TABLE IF NOT EXISTS recurring_runs (
		id            VARCHAR PRIMARY KEY,
		profile_id    VARCHAR NOT NULL,
		run_at        TIMESTAMP NOT NULL,
		status        VARCHAR NOT NULL,
		invoice_id    VARCHAR,
		error_message VARCHAR,
		email_error   VARCHAR,
		created_at    TIMESTAMP NOT NULL
	)`,

	// Second line of defense behind the claim protocol: two runs with the
	// same (profile_id, run_at, status) collide. DuckDB has no partial
	// indexes, so the status column stands in for "WHERE status = 'SUCCESS'";
	// SKIPPED inserts use INSERT OR IGNORE because two observers may
	// legitimately record the same skip.
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_recurring_runs_occurrence
		ON recurring_runs (profile_id, run_at, status)`,

	`CREATE INDEX IF NOT EXISTS idx_recurring_runs_profile
		ON recurring_runs (profile_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id                   VARCHAR PRIMARY KEY,
		organization_id      VARCHAR NOT NULL,
		client_id            VARCHAR NOT NULL,
		client_email         VARCHAR,
		invoice_number       VARCHAR NOT NULL,
		currency             VARCHAR NOT NULL,
		notes                VARCHAR,
		issue_date           TIMESTAMP NOT NULL,
		due_date             TIMESTAMP,
		total_cents          BIGINT NOT NULL DEFAULT 0,
		recurring_profile_id VARCHAR,
		created_at           TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_invoices_org
		ON invoices (organization_id)`,

	`CREATE INDEX IF NOT EXISTS idx_invoices_recurring_profile
		ON invoices (recurring_profile_id)`,

	`CREATE TABLE IF NOT EXISTS invoice_line_items (
		id               VARCHAR PRIMARY KEY,
		invoice_id       VARCHAR NOT NULL,
		description      VARCHAR NOT NULL,
		quantity         BIGINT NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		position         INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_invoice_line_items_invoice
		ON invoice_line_items (invoice_id)`,

	`CREATE TABLE IF NOT EXISTS audit_events (
		id              VARCHAR PRIMARY KEY,
		organization_id VARCHAR NOT NULL,
		actor_user_id   VARCHAR,
		event_type      VARCHAR NOT NULL,
		severity        VARCHAR NOT NULL,
		entity_type     VARCHAR NOT NULL,
		entity_id       VARCHAR NOT NULL,
		details         VARCHAR,
		created_at      TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_audit_events_org
		ON audit_events (organization_id, created_at)`,
}

// initSchema creates all tables and indexes.
func (db *DB) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
