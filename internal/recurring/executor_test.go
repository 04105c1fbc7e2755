// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package recurring

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fakturo/fakturo/internal/models"
)

type mockRunStore struct {
	runs []models.RecurringRun

	lastOutcomeProfileID string
	lastOutcomeRunAt     time.Time
	lastOutcomeInvoiceID *string
	lastOutcomeError     *string

	insertErr error
}

func (m *mockRunStore) InsertRun(ctx context.Context, run *models.RecurringRun) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockRunStore) RecordRunOutcome(ctx context.Context, id string, lastRunAt time.Time, lastInvoiceID *string, lastError *string) error {
	m.lastOutcomeProfileID = id
	m.lastOutcomeRunAt = lastRunAt
	m.lastOutcomeInvoiceID = lastInvoiceID
	m.lastOutcomeError = lastError
	return nil
}

type mockInvoicer struct {
	invoice *models.Invoice
	err     error
	calls   int
}

func (m *mockInvoicer) CreateFromTemplate(ctx context.Context, profile *models.RecurringProfile, issueDate time.Time) (*models.Invoice, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	inv := *m.invoice
	inv.IssueDate = issueDate
	return &inv, nil
}

type mockSender struct {
	err   error
	sent  []string
	calls int
}

func (m *mockSender) SendInvoice(ctx context.Context, inv *models.Invoice, variant models.InvoiceVariant) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, inv.ID)
	return nil
}

func executorProfile() *models.RecurringProfile {
	return &models.RecurringProfile{
		ID:                "prof-1",
		OrganizationID:    "org-1",
		TemplateInvoiceID: "tmpl-1",
		IntervalUnit:      models.IntervalMonth,
		IntervalCount:     1,
		Status:            models.ProfileStatusActive,
		Variant:           models.VariantStandard,
	}
}

func TestExecuteSuccess(t *testing.T) {
	store := &mockRunStore{}
	invoicer := &mockInvoicer{invoice: &models.Invoice{ID: "inv-1", Number: "REC-1"}}
	exec := NewExecutor(store, invoicer, nil, nil)

	runAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := exec.Execute(context.Background(), executorProfile(), runAt); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(store.runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(store.runs))
	}
	run := store.runs[0]
	if run.Status != models.RunStatusSuccess {
		t.Errorf("expected SUCCESS, got %s", run.Status)
	}
	if run.InvoiceID == nil || *run.InvoiceID != "inv-1" {
		t.Error("expected invoice ID on run")
	}
	if !run.RunAt.Equal(runAt) {
		t.Errorf("expected run_at %v, got %v", runAt, run.RunAt)
	}
	if run.EmailError != nil {
		t.Errorf("unexpected email error: %s", *run.EmailError)
	}

	if store.lastOutcomeInvoiceID == nil || *store.lastOutcomeInvoiceID != "inv-1" {
		t.Error("expected outcome cache updated with invoice ID")
	}
	if store.lastOutcomeError != nil {
		t.Error("expected nil outcome error on success")
	}
}

func TestExecuteFailureRecordsFailedRun(t *testing.T) {
	store := &mockRunStore{}
	invoicer := &mockInvoicer{err: errors.New("template invoice tmpl-1: template invoice has no items")}
	exec := NewExecutor(store, invoicer, nil, nil)

	runAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	err := exec.Execute(context.Background(), executorProfile(), runAt)
	if err == nil {
		t.Fatal("expected execution error")
	}

	if len(store.runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(store.runs))
	}
	run := store.runs[0]
	if run.Status != models.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", run.Status)
	}
	if run.ErrorMessage == nil || !strings.Contains(*run.ErrorMessage, "no items") {
		t.Error("expected error message on failed run")
	}
	if run.InvoiceID != nil {
		t.Error("failed run must not carry an invoice ID")
	}

	// Outcome cache still records the attempt.
	if store.lastOutcomeProfileID != "prof-1" {
		t.Error("expected outcome cache update on failure")
	}
	if store.lastOutcomeError == nil {
		t.Error("expected outcome error on failure")
	}
	if store.lastOutcomeInvoiceID != nil {
		t.Error("expected nil invoice in outcome cache on failure")
	}
}

func TestExecuteTruncatesLongErrors(t *testing.T) {
	store := &mockRunStore{}
	invoicer := &mockInvoicer{err: errors.New(strings.Repeat("x", 5000))}
	exec := NewExecutor(store, invoicer, nil, nil)

	_ = exec.Execute(context.Background(), executorProfile(), time.Now())

	if len(store.runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(store.runs))
	}
	if got := len(*store.runs[0].ErrorMessage); got > models.MaxRunErrorLen {
		t.Errorf("error message not truncated: %d chars", got)
	}
}

func TestExecuteEmailFailureDoesNotFailRun(t *testing.T) {
	store := &mockRunStore{}
	invoicer := &mockInvoicer{invoice: &models.Invoice{ID: "inv-1"}}
	sender := &mockSender{err: errors.New("smtp: connection refused")}
	exec := NewExecutor(store, invoicer, sender, nil)

	profile := executorProfile()
	profile.AutoSendEmail = true

	if err := exec.Execute(context.Background(), profile, time.Now()); err != nil {
		t.Fatalf("email failure must not fail the run, got: %v", err)
	}

	run := store.runs[0]
	if run.Status != models.RunStatusSuccess {
		t.Errorf("expected SUCCESS despite email failure, got %s", run.Status)
	}
	if run.EmailError == nil || !strings.Contains(*run.EmailError, "connection refused") {
		t.Error("expected email error recorded on run")
	}
	if store.lastOutcomeError != nil {
		t.Error("email failure must not poison the outcome cache")
	}
}

func TestExecuteSkipsEmailWhenDisabled(t *testing.T) {
	store := &mockRunStore{}
	invoicer := &mockInvoicer{invoice: &models.Invoice{ID: "inv-1"}}
	sender := &mockSender{}
	exec := NewExecutor(store, invoicer, sender, nil)

	profile := executorProfile()
	profile.AutoSendEmail = false

	if err := exec.Execute(context.Background(), profile, time.Now()); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if sender.calls != 0 {
		t.Errorf("expected no send attempts, got %d", sender.calls)
	}
}

func TestRecordSkip(t *testing.T) {
	store := &mockRunStore{}
	exec := NewExecutor(store, &mockInvoicer{}, nil, nil)

	runAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := exec.RecordSkip(context.Background(), executorProfile(), runAt, "Profile is not ACTIVE"); err != nil {
		t.Fatalf("RecordSkip() error: %v", err)
	}

	if len(store.runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(store.runs))
	}
	run := store.runs[0]
	if run.Status != models.RunStatusSkipped {
		t.Errorf("expected SKIPPED, got %s", run.Status)
	}
	if run.ErrorMessage == nil || *run.ErrorMessage != "Profile is not ACTIVE" {
		t.Error("expected skip reason on run")
	}
	// Skips never touch the outcome cache.
	if store.lastOutcomeProfileID != "" {
		t.Error("skip must not update the outcome cache")
	}
}
