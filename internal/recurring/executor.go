// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package recurring contains the run executor of the recurring-invoice
// engine. The executor is invoked only after a claim has been won: the
// schedule has already advanced, so whatever happens here the occurrence is
// consumed (skip-and-advance policy). Every attempt leaves exactly one row in
// the run ledger.
package recurring

import (
	"context"
	"fmt"
	"time"

	"github.com/fakturo/fakturo/internal/audit"
	"github.com/fakturo/fakturo/internal/logging"
	"github.com/fakturo/fakturo/internal/models"
)

// RunStore is the ledger and outcome-cache surface the executor needs.
type RunStore interface {
	InsertRun(ctx context.Context, run *models.RecurringRun) error
	RecordRunOutcome(ctx context.Context, id string, lastRunAt time.Time, lastInvoiceID *string, lastError *string) error
}

// Invoicer materializes an invoice from a profile's template.
type Invoicer interface {
	CreateFromTemplate(ctx context.Context, profile *models.RecurringProfile, issueDate time.Time) (*models.Invoice, error)
}

// Sender delivers a materialized invoice by email.
type Sender interface {
	SendInvoice(ctx context.Context, inv *models.Invoice, variant models.InvoiceVariant) error
}

// Executor runs one claimed occurrence: materialize the invoice, optionally
// email it, and append the outcome to the run ledger.
type Executor struct {
	store    RunStore
	invoicer Invoicer
	sender   Sender
	auditor  *audit.Logger
}

// NewExecutor creates a run executor. sender and auditor may be nil.
func NewExecutor(store RunStore, invoicer Invoicer, sender Sender, auditor *audit.Logger) *Executor {
	return &Executor{
		store:    store,
		invoicer: invoicer,
		sender:   sender,
		auditor:  auditor,
	}
}

// Execute performs one claimed occurrence at runAt.
//
// A materialization failure produces a FAILED run and returns the error; the
// schedule is NOT rolled back. An email delivery failure does not fail the
// run: the invoice exists, so the run is SUCCESS with email_error recorded.
func (e *Executor) Execute(ctx context.Context, profile *models.RecurringProfile, runAt time.Time) error {
	inv, err := e.invoicer.CreateFromTemplate(ctx, profile, runAt)
	if err != nil {
		e.recordFailure(ctx, profile, runAt, err)
		return fmt.Errorf("execution failed for profile %s: %w", profile.ID, err)
	}

	var emailError *string
	if profile.AutoSendEmail && e.sender != nil {
		if sendErr := e.sender.SendInvoice(ctx, inv, profile.Variant); sendErr != nil {
			msg := models.TruncateError(sendErr.Error())
			emailError = &msg
			logging.Warn().
				Err(sendErr).
				Str("profile_id", profile.ID).
				Str("invoice_id", inv.ID).
				Msg("Invoice email delivery failed")
		}
	}

	run := &models.RecurringRun{
		ProfileID:  profile.ID,
		RunAt:      runAt,
		Status:     models.RunStatusSuccess,
		InvoiceID:  &inv.ID,
		EmailError: emailError,
	}
	if err := e.store.InsertRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record successful run for profile %s: %w", profile.ID, err)
	}

	if err := e.store.RecordRunOutcome(ctx, profile.ID, runAt, &inv.ID, nil); err != nil {
		logging.Error().Err(err).Str("profile_id", profile.ID).Msg("Failed to update outcome cache")
	}

	if e.auditor != nil {
		details := map[string]interface{}{
			"invoice_id": inv.ID,
			"run_at":     runAt.UTC().Format(time.RFC3339),
		}
		if emailError != nil {
			details["email_error"] = *emailError
		}
		e.auditor.LogRunEvent(audit.EventTypeRunSucceeded, profile.OrganizationID, profile.ID, details)
	}

	logging.Info().
		Str("profile_id", profile.ID).
		Str("invoice_id", inv.ID).
		Time("run_at", runAt).
		Bool("emailed", profile.AutoSendEmail && emailError == nil).
		Msg("Recurring run succeeded")

	return nil
}

// recordFailure appends a FAILED run and updates the outcome cache. The
// occurrence stays consumed; operators retry through a manual trigger.
func (e *Executor) recordFailure(ctx context.Context, profile *models.RecurringProfile, runAt time.Time, cause error) {
	msg := models.TruncateError(cause.Error())

	run := &models.RecurringRun{
		ProfileID:    profile.ID,
		RunAt:        runAt,
		Status:       models.RunStatusFailed,
		ErrorMessage: &msg,
	}
	if err := e.store.InsertRun(ctx, run); err != nil {
		logging.Error().Err(err).Str("profile_id", profile.ID).Msg("Failed to record failed run")
	}

	if err := e.store.RecordRunOutcome(ctx, profile.ID, runAt, nil, &msg); err != nil {
		logging.Error().Err(err).Str("profile_id", profile.ID).Msg("Failed to update outcome cache")
	}

	if e.auditor != nil {
		e.auditor.LogRunEvent(audit.EventTypeRunFailed, profile.OrganizationID, profile.ID, map[string]interface{}{
			"error":  msg,
			"run_at": runAt.UTC().Format(time.RFC3339),
		})
	}

	logging.Error().
		Str("profile_id", profile.ID).
		Time("run_at", runAt).
		Str("error", msg).
		Msg("Recurring run failed")
}

// RecordSkip appends a SKIPPED run for an occurrence that was observed due
// but intentionally not executed, e.g. the profile left ACTIVE between the
// scan and the claim.
func (e *Executor) RecordSkip(ctx context.Context, profile *models.RecurringProfile, runAt time.Time, reason string) error {
	msg := models.TruncateError(reason)

	run := &models.RecurringRun{
		ProfileID:    profile.ID,
		RunAt:        runAt,
		Status:       models.RunStatusSkipped,
		ErrorMessage: &msg,
	}
	if err := e.store.InsertRun(ctx, run); err != nil {
		return fmt.Errorf("failed to record skipped run for profile %s: %w", profile.ID, err)
	}

	if e.auditor != nil {
		e.auditor.LogRunEvent(audit.EventTypeRunSkipped, profile.OrganizationID, profile.ID, map[string]interface{}{
			"reason": msg,
			"run_at": runAt.UTC().Format(time.RFC3339),
		})
	}

	logging.Debug().
		Str("profile_id", profile.ID).
		Time("run_at", runAt).
		Str("reason", msg).
		Msg("Recurring run skipped")

	return nil
}
