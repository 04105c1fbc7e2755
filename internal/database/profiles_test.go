// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fakturo/fakturo/internal/config"
	"github.com/fakturo/fakturo/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestProfile(orgID string, startAt time.Time) *models.RecurringProfile {
	return &models.RecurringProfile{
		OrganizationID:    orgID,
		TemplateInvoiceID: "tmpl-1",
		IntervalUnit:      models.IntervalMonth,
		IntervalCount:     1,
		StartAt:           startAt,
	}
}

func TestCreateProfileInitialState(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	startAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	p := newTestProfile("org-1", startAt)
	if err := db.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	got, err := db.GetProfile(ctx, "org-1", p.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.Status != models.ProfileStatusActive {
		t.Errorf("expected ACTIVE, got %s", got.Status)
	}
	if got.Version != 0 {
		t.Errorf("expected version 0, got %d", got.Version)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(startAt) {
		t.Errorf("expected next_run_at %v, got %v", startAt, got.NextRunAt)
	}
	if got.Variant != models.VariantStandard {
		t.Errorf("expected standard variant default, got %s", got.Variant)
	}
	if got.LastRunAt != nil || got.LastInvoiceID != nil || got.LastError != nil {
		t.Error("outcome cache must start empty")
	}
}

func TestGetProfileOrgScoping(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := newTestProfile("org-1", time.Now())
	if err := db.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	if _, err := db.GetProfile(ctx, "org-2", p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant read must return ErrNotFound, got %v", err)
	}

	// The system-privilege lookup ignores tenancy.
	if _, err := db.GetProfileByID(ctx, p.ID); err != nil {
		t.Errorf("GetProfileByID failed: %v", err)
	}
}

func TestListProfilesFilterAndCount(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var paused string
	for i := 0; i < 3; i++ {
		p := newTestProfile("org-1", time.Now())
		if err := db.CreateProfile(ctx, p); err != nil {
			t.Fatalf("CreateProfile failed: %v", err)
		}
		paused = p.ID
	}
	other := newTestProfile("org-2", time.Now())
	if err := db.CreateProfile(ctx, other); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	if _, err := db.TransitionProfileStatus(ctx, "org-1", paused, models.ProfileStatusPaused); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	all, total, err := db.ListProfiles(ctx, "org-1", nil, 10, 0)
	if err != nil {
		t.Fatalf("ListProfiles failed: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Errorf("expected 3 org-1 profiles, got total=%d len=%d", total, len(all))
	}

	status := models.ProfileStatusPaused
	filtered, total, err := db.ListProfiles(ctx, "org-1", &status, 10, 0)
	if err != nil {
		t.Fatalf("filtered ListProfiles failed: %v", err)
	}
	if total != 1 || len(filtered) != 1 || filtered[0].ID != paused {
		t.Errorf("expected exactly the paused profile, got total=%d len=%d", total, len(filtered))
	}

	// Pagination: limit 2 leaves one behind.
	page, total, err := db.ListProfiles(ctx, "org-1", nil, 2, 0)
	if err != nil {
		t.Fatalf("paged ListProfiles failed: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Errorf("expected total=3 page=2, got total=%d len=%d", total, len(page))
	}
}

func TestUpdateProfileLeavesScheduleAlone(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	startAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	p := newTestProfile("org-1", startAt)
	if err := db.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	count := 6
	unit := models.IntervalWeek
	got, err := db.UpdateProfile(ctx, "org-1", p.ID, ProfileUpdate{
		IntervalUnit:  &unit,
		IntervalCount: &count,
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if got.IntervalUnit != models.IntervalWeek || got.IntervalCount != 6 {
		t.Errorf("update not applied: %s/%d", got.IntervalUnit, got.IntervalCount)
	}
	// The pending occurrence and version survive interval edits.
	if got.NextRunAt == nil || !got.NextRunAt.Equal(startAt) {
		t.Errorf("next_run_at must be untouched, got %v", got.NextRunAt)
	}
	if got.Version != 0 {
		t.Errorf("version must be untouched, got %d", got.Version)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := newTestProfile("org-1", time.Now())
	if err := db.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	// ACTIVE -> PAUSED
	got, err := db.TransitionProfileStatus(ctx, "org-1", p.ID, models.ProfileStatusPaused)
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if got.Status != models.ProfileStatusPaused {
		t.Errorf("expected PAUSED, got %s", got.Status)
	}

	// PAUSED -> PAUSED is an idempotent no-op.
	again, err := db.TransitionProfileStatus(ctx, "org-1", p.ID, models.ProfileStatusPaused)
	if err != nil {
		t.Fatalf("idempotent pause failed: %v", err)
	}
	if !again.UpdatedAt.Equal(got.UpdatedAt) {
		t.Error("idempotent transition must not touch updated_at")
	}

	// PAUSED -> ACTIVE
	if _, err := db.TransitionProfileStatus(ctx, "org-1", p.ID, models.ProfileStatusActive); err != nil {
		t.Fatalf("resume failed: %v", err)
	}

	// ACTIVE -> CANCELLED, terminal.
	if _, err := db.TransitionProfileStatus(ctx, "org-1", p.ID, models.ProfileStatusCancelled); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := db.TransitionProfileStatus(ctx, "org-1", p.ID, models.ProfileStatusActive); !errors.Is(err, ErrProfileCancelled) {
		t.Errorf("resume after cancel must return ErrProfileCancelled, got %v", err)
	}
	if _, err := db.UpdateProfile(ctx, "org-1", p.ID, ProfileUpdate{IntervalCount: intPtr(2)}); !errors.Is(err, ErrProfileCancelled) {
		t.Errorf("update after cancel must return ErrProfileCancelled, got %v", err)
	}

	// The row itself survives cancellation.
	if _, err := db.GetProfile(ctx, "org-1", p.ID); err != nil {
		t.Errorf("cancelled profile must stay readable: %v", err)
	}
}

func TestGetProfilesDue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

	due := newTestProfile("org-1", now.Add(-time.Hour))
	notYet := newTestProfile("org-1", now.Add(time.Hour))
	pausedDue := newTestProfile("org-1", now.Add(-2*time.Hour))
	for _, p := range []*models.RecurringProfile{due, notYet, pausedDue} {
		if err := db.CreateProfile(ctx, p); err != nil {
			t.Fatalf("CreateProfile failed: %v", err)
		}
	}
	if _, err := db.TransitionProfileStatus(ctx, "org-1", pausedDue.ID, models.ProfileStatusPaused); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	got, err := db.GetProfilesDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("GetProfilesDue failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("expected only the due ACTIVE profile, got %d profiles", len(got))
	}

	// Boundary: next_run_at == now counts as due.
	exact := newTestProfile("org-1", now)
	if err := db.CreateProfile(ctx, exact); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	got, err = db.GetProfilesDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("GetProfilesDue failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 due profiles including the exact boundary, got %d", len(got))
	}
	// Oldest-due first.
	if got[0].ID != due.ID {
		t.Errorf("expected oldest due first, got %s", got[0].ID)
	}
}

func TestRecordRunOutcome(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p := newTestProfile("org-1", time.Now())
	if err := db.CreateProfile(ctx, p); err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}

	runAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	invoiceID := "inv-123"
	if err := db.RecordRunOutcome(ctx, p.ID, runAt, &invoiceID, nil); err != nil {
		t.Fatalf("RecordRunOutcome failed: %v", err)
	}

	got, err := db.GetProfile(ctx, "org-1", p.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(runAt) {
		t.Errorf("expected last_run_at %v, got %v", runAt, got.LastRunAt)
	}
	if got.LastInvoiceID == nil || *got.LastInvoiceID != invoiceID {
		t.Errorf("expected last_invoice_id %q, got %v", invoiceID, got.LastInvoiceID)
	}
	if got.LastError != nil {
		t.Errorf("expected clean last_error, got %v", got.LastError)
	}

	// A failure outcome replaces the cache.
	msg := "template invoice has no items"
	if err := db.RecordRunOutcome(ctx, p.ID, runAt.Add(time.Hour), nil, &msg); err != nil {
		t.Fatalf("RecordRunOutcome failed: %v", err)
	}
	got, _ = db.GetProfile(ctx, "org-1", p.ID)
	if got.LastError == nil || *got.LastError != msg {
		t.Errorf("expected last_error %q, got %v", msg, got.LastError)
	}
	if got.LastInvoiceID != nil {
		t.Error("failure outcome must clear last_invoice_id")
	}
}

func intPtr(i int) *int { return &i }
