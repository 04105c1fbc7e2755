// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// requests.go - Request DTOs
//
// Validation tags are enforced through the validation package's singleton
// validator; custom tags (intervalunit, invoicevariant) check the closed
// enum sets.
package api

import (
	"time"
)

// CreateProfileRequest creates a recurring profile.
type CreateProfileRequest struct {
	// TemplateInvoiceID is the invoice to clone each occurrence from. Must
	// belong to the caller's organization and have at least one line item.
	TemplateInvoiceID string `json:"template_invoice_id" validate:"required"`

	// ClientID optionally overrides the template invoice's client.
	ClientID *string `json:"client_id,omitempty"`

	IntervalUnit  string    `json:"interval_unit" validate:"required,intervalunit"`
	IntervalCount int       `json:"interval_count" validate:"required,min=1,max=1000"`
	StartAt       time.Time `json:"start_at" validate:"required"`

	DueDays       *int   `json:"due_days,omitempty" validate:"omitempty,min=0,max=365"`
	AutoSendEmail bool   `json:"auto_send_email"`
	Variant       string `json:"variant,omitempty" validate:"omitempty,invoicevariant"`
}

// UpdateProfileRequest partially updates a profile's schedule and behavior.
// Omitted fields are left untouched. Status changes go through the dedicated
// lifecycle endpoints, never through this DTO.
type UpdateProfileRequest struct {
	ClientID      *string `json:"client_id,omitempty"`
	IntervalUnit  *string `json:"interval_unit,omitempty" validate:"omitempty,intervalunit"`
	IntervalCount *int    `json:"interval_count,omitempty" validate:"omitempty,min=1,max=1000"`
	DueDays       *int    `json:"due_days,omitempty" validate:"omitempty,min=0,max=365"`
	AutoSendEmail *bool   `json:"auto_send_email,omitempty"`
	Variant       *string `json:"variant,omitempty" validate:"omitempty,invoicevariant"`
}

// IsEmpty reports whether the update carries no changes.
func (r *UpdateProfileRequest) IsEmpty() bool {
	return r.ClientID == nil &&
		r.IntervalUnit == nil &&
		r.IntervalCount == nil &&
		r.DueDays == nil &&
		r.AutoSendEmail == nil &&
		r.Variant == nil
}
