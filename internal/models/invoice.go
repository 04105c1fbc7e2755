// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package models provides data structures for the Fakturo recurring engine.
//
// invoice.go - Invoice Models
//
// The recurring engine does not own invoices; it consumes the invoicing
// collaborator through a narrow interface. These models cover the fields the
// engine reads (template resolution) and writes (materialized invoices with a
// back-reference to the originating profile).
package models

import (
	"time"
)

// Invoice is the subset of the invoicing domain the recurring engine touches.
type Invoice struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	ClientID       string `json:"client_id"`

	// ClientEmail is the delivery target for auto-send. Cloned from the
	// template invoice unless the profile overrides the client.
	ClientEmail string `json:"client_email,omitempty"`

	Number   string `json:"number"`
	Currency string `json:"currency"`
	Notes    string `json:"notes,omitempty"`

	IssueDate time.Time  `json:"issue_date"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	// TotalCents is the sum of line item totals in minor currency units.
	TotalCents int64 `json:"total_cents"`

	// RecurringProfileID back-references the profile that generated this
	// invoice. Nil for invoices created outside the recurring engine.
	RecurringProfileID *string `json:"recurring_profile_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// InvoiceLineItem is a single billable position on an invoice.
type InvoiceLineItem struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id"`

	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`

	// UnitPriceCents is the per-unit price in minor currency units.
	UnitPriceCents int64 `json:"unit_price_cents"`

	Position int `json:"position"`
}

// TotalCents returns the line total in minor currency units.
func (li *InvoiceLineItem) TotalCents() int64 {
	return li.Quantity * li.UnitPriceCents
}
