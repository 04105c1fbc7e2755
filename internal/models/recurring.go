// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package models provides data structures for the Fakturo recurring engine.
//
// recurring.go - Recurring Billing Models
//
// This file contains models for the recurring-invoice scheduling engine:
//   - RecurringProfile: a subscription-like billing configuration tied to one
//     template invoice, with an interval schedule and a lifecycle status
//   - RecurringRun: one execution attempt for one due occurrence of a profile
//
// Concurrency:
//   - RecurringProfile.Version is the compare key for optimistic concurrency.
//     Every successful claim increments it by exactly one; a conditional update
//     that observes a stale version affects zero rows and the caller backs off.
//   - RecurringRun rows are append-only and never mutated after insert.
package models

import (
	"time"
	"unicode/utf8"
)

// ============================================================================
// Enumerations
// ============================================================================

// IntervalUnit defines the calendar unit of a recurring schedule.
type IntervalUnit string

const (
	// IntervalDay advances the schedule by whole days.
	IntervalDay IntervalUnit = "DAY"

	// IntervalWeek advances the schedule by seven-day blocks.
	IntervalWeek IntervalUnit = "WEEK"

	// IntervalMonth advances the schedule by calendar months, clamping the
	// day-of-month to the target month's length (Jan 31 + 1 month = Feb 28/29).
	IntervalMonth IntervalUnit = "MONTH"

	// IntervalYear advances the schedule by calendar years.
	IntervalYear IntervalUnit = "YEAR"
)

// ValidIntervalUnits contains all valid interval units.
var ValidIntervalUnits = []IntervalUnit{
	IntervalDay,
	IntervalWeek,
	IntervalMonth,
	IntervalYear,
}

// Valid reports whether the interval unit is a known value.
func (u IntervalUnit) Valid() bool {
	for _, valid := range ValidIntervalUnits {
		if u == valid {
			return true
		}
	}
	return false
}

// ProfileStatus defines the lifecycle state of a recurring profile.
type ProfileStatus string

const (
	// ProfileStatusActive means the profile is eligible for scheduling.
	ProfileStatusActive ProfileStatus = "ACTIVE"

	// ProfileStatusPaused means the profile is suspended but resumable.
	ProfileStatusPaused ProfileStatus = "PAUSED"

	// ProfileStatusCancelled is terminal. No further transitions are accepted
	// and the row is never hard-deleted.
	ProfileStatusCancelled ProfileStatus = "CANCELLED"
)

// Valid reports whether the profile status is a known value.
func (s ProfileStatus) Valid() bool {
	switch s {
	case ProfileStatusActive, ProfileStatusPaused, ProfileStatusCancelled:
		return true
	}
	return false
}

// RunStatus defines the outcome of a single execution attempt.
type RunStatus string

const (
	// RunStatusSuccess means an invoice was materialized for the occurrence.
	RunStatusSuccess RunStatus = "SUCCESS"

	// RunStatusFailed means execution started but materialization failed.
	// The schedule still advances (skip-and-advance policy).
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusSkipped means the occurrence was intentionally not executed,
	// e.g. the profile left ACTIVE between the due scan and the claim.
	RunStatusSkipped RunStatus = "SKIPPED"
)

// Valid reports whether the run status is a known value.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusSuccess, RunStatusFailed, RunStatusSkipped:
		return true
	}
	return false
}

// InvoiceVariant selects the presentation variant used when a generated
// invoice is delivered. The recurring engine passes it through opaquely.
type InvoiceVariant string

const (
	// VariantStandard is the default invoice presentation.
	VariantStandard InvoiceVariant = "standard"

	// VariantProforma renders the invoice as a proforma document.
	VariantProforma InvoiceVariant = "proforma"

	// VariantSummary renders a condensed single-page summary.
	VariantSummary InvoiceVariant = "summary"
)

// Valid reports whether the variant is a known value.
func (v InvoiceVariant) Valid() bool {
	switch v {
	case VariantStandard, VariantProforma, VariantSummary:
		return true
	}
	return false
}

// MaxRunErrorLen is the maximum length of a persisted run error message.
// Longer messages are truncated before insert.
const MaxRunErrorLen = 1000

// ============================================================================
// Recurring Profile
// ============================================================================

// RecurringProfile is a recurring-billing configuration tied to one template
// invoice. Each due occurrence clones the template's line items into a new
// invoice.
//
// Invariants:
//   - NextRunAt is nil or equal to the next occurrence still to be executed
//   - Version strictly increases; it is bumped only by a successful claim
//   - CANCELLED is terminal
type RecurringProfile struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`

	// ClientID overrides the template invoice's client when set.
	ClientID *string `json:"client_id,omitempty"`

	// TemplateInvoiceID is the invoice whose line items are cloned each run.
	TemplateInvoiceID string `json:"template_invoice_id"`

	IntervalUnit  IntervalUnit `json:"interval_unit"`
	IntervalCount int          `json:"interval_count"`
	StartAt       time.Time    `json:"start_at"`
	NextRunAt     *time.Time   `json:"next_run_at,omitempty"`

	// DueDays is the offset in days added to the generated invoice's issue
	// date to produce its due date. Nil leaves the due date unset.
	DueDays *int `json:"due_days,omitempty"`

	AutoSendEmail bool           `json:"auto_send_email"`
	Variant       InvoiceVariant `json:"variant"`

	Status ProfileStatus `json:"status"`

	// Version is the optimistic-concurrency compare key. See ClaimProfile.
	Version int64 `json:"version"`

	// Outcome cache: denormalized view of the most recent run for fast
	// dashboard reads. The run ledger remains the source of truth.
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastInvoiceID *string    `json:"last_invoice_id,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the profile is eligible for claiming.
func (p *RecurringProfile) IsActive() bool {
	return p.Status == ProfileStatusActive
}

// IsDue reports whether the profile has an occurrence pending at or before now.
func (p *RecurringProfile) IsDue(now time.Time) bool {
	return p.IsActive() && p.NextRunAt != nil && !p.NextRunAt.After(now)
}

// ============================================================================
// Recurring Run
// ============================================================================

// RecurringRun is one execution attempt for one due occurrence of a profile.
// Rows are append-only and immutable after creation. There is at most one
// SUCCESS run per (ProfileID, RunAt) pair; this is the auditable proof of the
// at-most-once guarantee.
type RecurringRun struct {
	ID        string `json:"id"`
	ProfileID string `json:"profile_id"`

	// RunAt is the occurrence timestamp this run corresponds to. It equals
	// the NextRunAt value that was claimed, not the wall-clock execution time.
	RunAt time.Time `json:"run_at"`

	Status RunStatus `json:"status"`

	// InvoiceID is set only on SUCCESS.
	InvoiceID *string `json:"invoice_id,omitempty"`

	// ErrorMessage is set only on FAILED and SKIPPED runs, truncated to
	// MaxRunErrorLen characters.
	ErrorMessage *string `json:"error_message,omitempty"`

	// EmailError records a best-effort delivery failure on an otherwise
	// successful run. Delivery failures never fail the run once the invoice
	// itself was created.
	EmailError *string `json:"email_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RunStats aggregates run outcomes for an organization's dashboard.
type RunStats struct {
	ActiveProfiles int64 `json:"active_profiles"`
	TotalProfiles  int64 `json:"total_profiles"`
	SuccessRuns    int64 `json:"success_runs"`
	FailedRuns     int64 `json:"failed_runs"`
	SkippedRuns    int64 `json:"skipped_runs"`
}

// TruncateError shortens an error message to at most MaxRunErrorLen bytes
// without splitting a multi-byte UTF-8 sequence.
func TruncateError(msg string) string {
	if len(msg) <= MaxRunErrorLen {
		return msg
	}
	cut := MaxRunErrorLen
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
