// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// profiles.go - Recurring Profile Store
//
// Profile rows carry a monotonic version column. All system-internal
// mutations of the schedule (next_run_at, version) go through ClaimProfile's
// conditional update; CRUD mutations never touch version. Cancellation is a
// status transition, never a row removal.
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

// normalizeTime converts to UTC and truncates to microseconds, DuckDB's
// TIMESTAMP precision. Claim comparisons require that a value written and
// read back compares equal.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func normalizeTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := normalizeTime(*t)
	return &n
}

// CreateProfile inserts a new recurring profile. The caller is expected to
// have validated the template invoice beforehand (same tenant, has items).
// Status, version and next_run_at are forced to their initial values.
func (db *DB) CreateProfile(ctx context.Context, p *models.RecurringProfile) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	now := normalizeTime(time.Now())
	p.StartAt = normalizeTime(p.StartAt)
	p.Status = models.ProfileStatusActive
	p.Version = 0
	nextRun := p.StartAt
	p.NextRunAt = &nextRun
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Variant == "" {
		p.Variant = models.VariantStandard
	}

	query := `
		INSERT INTO recurring_profiles (
			id, organization_id, client_id, template_invoice_id,
			interval_unit, interval_count, start_at, next_run_at, due_days,
			auto_send_email, variant, status, version,
			last_run_at, last_invoice_id, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, ?, ?)
	`

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		p.ID,
		p.OrganizationID,
		nullableString(p.ClientID),
		p.TemplateInvoiceID,
		string(p.IntervalUnit),
		p.IntervalCount,
		p.StartAt,
		p.NextRunAt,
		nullableInt(p.DueDays),
		p.AutoSendEmail,
		string(p.Variant),
		string(p.Status),
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	metrics.ObserveDBQuery("insert", "recurring_profiles", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert recurring profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by ID within an organization scope.
// Cross-tenant lookups return ErrNotFound.
func (db *DB) GetProfile(ctx context.Context, orgID, id string) (*models.RecurringProfile, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		selectProfileColumns+` WHERE id = ? AND organization_id = ?`, id, orgID)
	return scanProfile(row)
}

// GetProfileByID retrieves a profile by ID without tenant scoping. Reserved
// for the scheduler driver, which runs with system privilege.
func (db *DB) GetProfileByID(ctx context.Context, id string) (*models.RecurringProfile, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, selectProfileColumns+` WHERE id = ?`, id)
	return scanProfile(row)
}

// ListProfiles returns an organization's profiles ordered by creation time,
// newest first, with an optional status filter. The second return value is
// the total count for pagination.
func (db *DB) ListProfiles(ctx context.Context, orgID string, status *models.ProfileStatus, limit, offset int) ([]models.RecurringProfile, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := ` WHERE organization_id = ?`
	args := []any{orgID}
	if status != nil {
		where += ` AND status = ?`
		args = append(args, string(*status))
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recurring_profiles`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count recurring profiles: %w", err)
	}

	query := selectProfileColumns + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.ObserveDBQuery("select", "recurring_profiles", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query recurring profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var profiles []models.RecurringProfile
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate recurring profiles: %w", err)
	}
	return profiles, total, nil
}

// ProfileUpdate carries the mutable schedule/behavior fields of a profile.
// Nil pointers leave the column untouched. NextRunAt is only written when
// SetNextRunAt is true: editing the interval mid-cycle does not retroactively
// recompute the currently pending occurrence.
type ProfileUpdate struct {
	ClientID      *string
	IntervalUnit  *models.IntervalUnit
	IntervalCount *int
	DueDays       *int
	AutoSendEmail *bool
	Variant       *models.InvoiceVariant

	SetNextRunAt bool
	NextRunAt    *time.Time
}

// UpdateProfile applies a partial update and returns the refreshed profile.
// CANCELLED profiles reject updates.
func (db *DB) UpdateProfile(ctx context.Context, orgID, id string, upd ProfileUpdate) (*models.RecurringProfile, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	current, err := db.GetProfile(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.ProfileStatusCancelled {
		return nil, ErrProfileCancelled
	}

	set := `updated_at = ?`
	args := []any{normalizeTime(time.Now())}

	if upd.ClientID != nil {
		set += `, client_id = ?`
		args = append(args, *upd.ClientID)
	}
	if upd.IntervalUnit != nil {
		set += `, interval_unit = ?`
		args = append(args, string(*upd.IntervalUnit))
	}
	if upd.IntervalCount != nil {
		set += `, interval_count = ?`
		args = append(args, *upd.IntervalCount)
	}
	if upd.DueDays != nil {
		set += `, due_days = ?`
		args = append(args, *upd.DueDays)
	}
	if upd.AutoSendEmail != nil {
		set += `, auto_send_email = ?`
		args = append(args, *upd.AutoSendEmail)
	}
	if upd.Variant != nil {
		set += `, variant = ?`
		args = append(args, string(*upd.Variant))
	}
	if upd.SetNextRunAt {
		set += `, next_run_at = ?`
		args = append(args, normalizeTimePtr(upd.NextRunAt))
	}

	args = append(args, id, orgID)
	query := `UPDATE recurring_profiles SET ` + set + ` WHERE id = ? AND organization_id = ?`

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, query, args...)
	metrics.ObserveDBQuery("update", "recurring_profiles", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to update recurring profile: %w", err)
	}

	return db.GetProfile(ctx, orgID, id)
}

// TransitionProfileStatus moves a profile between lifecycle states.
//
// Permitted transitions:
//
//	pause:  ACTIVE -> PAUSED (idempotent from PAUSED)
//	resume: PAUSED -> ACTIVE (no-op from ACTIVE)
//	cancel: ACTIVE|PAUSED -> CANCELLED (terminal)
//
// Any transition attempted from CANCELLED returns ErrProfileCancelled.
// Idempotent no-ops do not touch updated_at or version.
func (db *DB) TransitionProfileStatus(ctx context.Context, orgID, id string, target models.ProfileStatus) (*models.RecurringProfile, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	current, err := db.GetProfile(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if current.Status == models.ProfileStatusCancelled {
		return nil, ErrProfileCancelled
	}
	if current.Status == target {
		return current, nil
	}

	switch target {
	case models.ProfileStatusPaused, models.ProfileStatusActive, models.ProfileStatusCancelled:
		// Any non-terminal current state may move to these.
	default:
		return nil, ErrInvalidTransition
	}

	start := time.Now()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE recurring_profiles SET status = ?, updated_at = ? WHERE id = ? AND organization_id = ?`,
		string(target), normalizeTime(time.Now()), id, orgID)
	metrics.ObserveDBQuery("update", "recurring_profiles", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to transition recurring profile: %w", err)
	}

	return db.GetProfile(ctx, orgID, id)
}

// GetProfilesDue returns up to limit ACTIVE profiles whose next occurrence is
// at or before now, oldest-due first for fairness.
func (db *DB) GetProfilesDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringProfile, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := selectProfileColumns + `
		WHERE status = ? AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at ASC
		LIMIT ?`

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query,
		string(models.ProfileStatusActive), normalizeTime(now), limit)
	metrics.ObserveDBQuery("select", "recurring_profiles", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query due profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var profiles []models.RecurringProfile
	for rows.Next() {
		p, err := scanProfileRow(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due profiles: %w", err)
	}
	return profiles, nil
}

// ClaimProfile attempts to win the exclusive right to execute one due
// occurrence via a compare-and-set on (id, status, next_run_at, version).
//
// On success the schedule is advanced to newNextRunAt and version is bumped
// by exactly one; the caller now holds the claim for runAt = snapshotNextRunAt.
// Zero affected rows means another caller claimed first (or the profile left
// ACTIVE); ErrClaimLost is returned and the caller must perform no further
// action for this occurrence.
func (db *DB) ClaimProfile(ctx context.Context, id string, snapshotNextRunAt time.Time, snapshotVersion int64, newNextRunAt time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		UPDATE recurring_profiles
		SET next_run_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND next_run_at = ? AND version = ?
	`

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, query,
		normalizeTime(newNextRunAt),
		normalizeTime(time.Now()),
		id,
		string(models.ProfileStatusActive),
		normalizeTime(snapshotNextRunAt),
		snapshotVersion,
	)
	metrics.ObserveDBQuery("update", "recurring_profiles", start, err)
	if err != nil {
		// DuckDB reports the loser of two truly simultaneous updates to the
		// same row as an aborted transaction, not as zero affected rows. For
		// the claim statement both mean the same thing: the snapshot is gone.
		if isWriteConflict(err) {
			metrics.SchedulerClaimsLost.Inc()
			return ErrClaimLost
		}
		return fmt.Errorf("failed to claim profile %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read claim result for profile %s: %w", id, err)
	}
	if affected == 0 {
		metrics.SchedulerClaimsLost.Inc()
		return ErrClaimLost
	}

	metrics.SchedulerClaimsWon.Inc()
	return nil
}

// RecordRunOutcome updates the profile's denormalized outcome cache after an
// execution attempt. The run ledger remains the source of truth; this exists
// for fast dashboard reads.
func (db *DB) RecordRunOutcome(ctx context.Context, id string, lastRunAt time.Time, lastInvoiceID *string, lastError *string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`UPDATE recurring_profiles
		 SET last_run_at = ?, last_invoice_id = ?, last_error = ?, updated_at = ?
		 WHERE id = ?`,
		normalizeTime(lastRunAt),
		nullableString(lastInvoiceID),
		nullableString(lastError),
		normalizeTime(time.Now()),
		id,
	)
	metrics.ObserveDBQuery("update", "recurring_profiles", start, err)
	if err != nil {
		return fmt.Errorf("failed to record run outcome for profile %s: %w", id, err)
	}
	return nil
}

// ============================================================================
// Scanning helpers
// ============================================================================

const selectProfileColumns = `
	SELECT
		id, organization_id, client_id, template_invoice_id,
		interval_unit, interval_count, start_at, next_run_at, due_days,
		auto_send_email, variant, status, version,
		last_run_at, last_invoice_id, last_error, created_at, updated_at
	FROM recurring_profiles`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfileInto(s rowScanner) (*models.RecurringProfile, error) {
	var p models.RecurringProfile
	var clientID, lastInvoiceID, lastError sql.NullString
	var nextRunAt, lastRunAt sql.NullTime
	var dueDays sql.NullInt32
	var intervalUnit, variant, status string

	err := s.Scan(
		&p.ID,
		&p.OrganizationID,
		&clientID,
		&p.TemplateInvoiceID,
		&intervalUnit,
		&p.IntervalCount,
		&p.StartAt,
		&nextRunAt,
		&dueDays,
		&p.AutoSendEmail,
		&variant,
		&status,
		&p.Version,
		&lastRunAt,
		&lastInvoiceID,
		&lastError,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.IntervalUnit = models.IntervalUnit(intervalUnit)
	p.Variant = models.InvoiceVariant(variant)
	p.Status = models.ProfileStatus(status)
	if clientID.Valid {
		p.ClientID = &clientID.String
	}
	if nextRunAt.Valid {
		t := nextRunAt.Time
		p.NextRunAt = &t
	}
	if dueDays.Valid {
		d := int(dueDays.Int32)
		p.DueDays = &d
	}
	if lastRunAt.Valid {
		t := lastRunAt.Time
		p.LastRunAt = &t
	}
	if lastInvoiceID.Valid {
		p.LastInvoiceID = &lastInvoiceID.String
	}
	if lastError.Valid {
		p.LastError = &lastError.String
	}
	return &p, nil
}

func scanProfile(row *sql.Row) (*models.RecurringProfile, error) {
	p, err := scanProfileInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recurring profile: %w", err)
	}
	return p, nil
}

func scanProfileRow(rows *sql.Rows) (*models.RecurringProfile, error) {
	p, err := scanProfileInto(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recurring profile: %w", err)
	}
	return p, nil
}

// ============================================================================
// Nullable parameter helpers
// ============================================================================

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableInt(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
