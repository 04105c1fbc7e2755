// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// runs.go - Run Ledger
//
// The run ledger is append-only: rows are inserted exactly once per claim
// attempt that reaches the executor and never updated or deleted afterwards.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fakturo/fakturo/internal/metrics"
	"github.com/fakturo/fakturo/internal/models"
)

// InsertRun appends an execution attempt to the run ledger.
//
// SKIPPED runs use INSERT OR IGNORE: two concurrent observers of a paused
// profile may both try to record the same skip, and the unique occurrence
// index resolves the race in favor of the first writer. SUCCESS and FAILED
// inserts are plain INSERTs; a collision there would mean the claim protocol
// was violated, and surfacing the constraint error is exactly what we want.
func (db *DB) InsertRun(ctx context.Context, run *models.RecurringRun) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.RunAt = normalizeTime(run.RunAt)
	run.CreatedAt = normalizeTime(time.Now())

	verb := `INSERT`
	if run.Status == models.RunStatusSkipped {
		verb = `INSERT OR IGNORE`
	}

	query := verb + ` INTO recurring_runs (
		id, profile_id, run_at, status, invoice_id, error_message, email_error, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.ProfileID,
		run.RunAt,
		string(run.Status),
		nullableString(run.InvoiceID),
		nullableString(run.ErrorMessage),
		nullableString(run.EmailError),
		run.CreatedAt,
	)
	metrics.ObserveDBQuery("insert", "recurring_runs", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert recurring run: %w", err)
	}

	metrics.RunsTotal.WithLabelValues(string(run.Status)).Inc()
	return nil
}

// ListRuns returns a profile's run history, newest first. The profile is
// resolved within the organization scope first so cross-tenant history reads
// fail with ErrNotFound.
func (db *DB) ListRuns(ctx context.Context, orgID, profileID string, limit, offset int) ([]models.RecurringRun, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.GetProfile(ctx, orgID, profileID); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recurring_runs WHERE profile_id = ?`, profileID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count recurring runs: %w", err)
	}

	query := `
		SELECT id, profile_id, run_at, status, invoice_id, error_message, email_error, created_at
		FROM recurring_runs
		WHERE profile_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, profileID, limit, offset)
	metrics.ObserveDBQuery("select", "recurring_runs", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query recurring runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []models.RecurringRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate recurring runs: %w", err)
	}
	return runs, total, nil
}

// GetLatestRun returns a profile's most recent run, or ErrNotFound when the
// ledger holds none.
func (db *DB) GetLatestRun(ctx context.Context, profileID string) (*models.RecurringRun, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, profile_id, run_at, status, invoice_id, error_message, email_error, created_at
		FROM recurring_runs
		WHERE profile_id = ?
		ORDER BY created_at DESC
		LIMIT 1`, profileID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// CountRunsForOccurrence returns how many runs with the given status exist
// for one (profile, runAt) occurrence. Used by tests to prove the
// at-most-once property.
func (db *DB) CountRunsForOccurrence(ctx context.Context, profileID string, runAt time.Time, status models.RunStatus) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recurring_runs WHERE profile_id = ? AND run_at = ? AND status = ?`,
		profileID, normalizeTime(runAt), string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs for occurrence: %w", err)
	}
	return n, nil
}

// GetRunStats aggregates run outcomes and profile counts for an organization.
func (db *DB) GetRunStats(ctx context.Context, orgID string) (*models.RunStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	stats := &models.RunStats{}

	err := db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COUNT(*)
		FROM recurring_profiles
		WHERE organization_id = ?`, orgID).Scan(&stats.ActiveProfiles, &stats.TotalProfiles)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate profile stats: %w", err)
	}

	err = db.conn.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE r.status = 'SUCCESS'),
			COUNT(*) FILTER (WHERE r.status = 'FAILED'),
			COUNT(*) FILTER (WHERE r.status = 'SKIPPED')
		FROM recurring_runs r
		JOIN recurring_profiles p ON p.id = r.profile_id
		WHERE p.organization_id = ?`, orgID).Scan(&stats.SuccessRuns, &stats.FailedRuns, &stats.SkippedRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate run stats: %w", err)
	}

	return stats, nil
}

func scanRun(s rowScanner) (*models.RecurringRun, error) {
	var r models.RecurringRun
	var invoiceID, errorMessage, emailError sql.NullString
	var status string

	err := s.Scan(
		&r.ID,
		&r.ProfileID,
		&r.RunAt,
		&status,
		&invoiceID,
		&errorMessage,
		&emailError,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recurring run: %w", err)
	}

	r.Status = models.RunStatus(status)
	if invoiceID.Valid {
		r.InvoiceID = &invoiceID.String
	}
	if errorMessage.Valid {
		r.ErrorMessage = &errorMessage.String
	}
	if emailError.Valid {
		r.EmailError = &emailError.String
	}
	return &r, nil
}
