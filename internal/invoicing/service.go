// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package invoicing materializes invoices from template invoices. The
// recurring engine hands it a profile and an occurrence date; it clones the
// template's line items into a new invoice with a back-reference to the
// profile.
package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fakturo/fakturo/internal/logging"
	"github.com/fakturo/fakturo/internal/metrics"
	"github.com/fakturo/fakturo/internal/models"
)

// ErrTemplateEmpty is returned when a template invoice has no items to clone.
// Materialization from an empty template would produce a zero-total invoice,
// which is always a configuration error.
var ErrTemplateEmpty = errors.New("template invoice has no items")

// Store is the invoice persistence surface the service needs.
type Store interface {
	GetInvoice(ctx context.Context, orgID, id string) (*models.Invoice, error)
	GetInvoiceLineItems(ctx context.Context, invoiceID string) ([]models.InvoiceLineItem, error)
	CreateInvoiceWithItems(ctx context.Context, inv *models.Invoice, items []models.InvoiceLineItem) error
}

// Service materializes invoices from templates.
type Service struct {
	store Store
}

// NewService creates an invoicing service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateFromTemplate clones the profile's template invoice into a new invoice
// issued at issueDate. The template is resolved within the profile's
// organization, so a template moved across tenants fails with ErrNotFound
// rather than leaking.
func (s *Service) CreateFromTemplate(ctx context.Context, profile *models.RecurringProfile, issueDate time.Time) (*models.Invoice, error) {
	start := time.Now()

	template, err := s.store.GetInvoice(ctx, profile.OrganizationID, profile.TemplateInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template invoice %s: %w", profile.TemplateInvoiceID, err)
	}

	templateItems, err := s.store.GetInvoiceLineItems(ctx, template.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template line items: %w", err)
	}
	if len(templateItems) == 0 {
		return nil, fmt.Errorf("template invoice %s: %w", template.ID, ErrTemplateEmpty)
	}

	clientID := template.ClientID
	if profile.ClientID != nil && *profile.ClientID != "" {
		clientID = *profile.ClientID
	}

	var dueDate *time.Time
	if profile.DueDays != nil {
		d := issueDate.AddDate(0, 0, *profile.DueDays)
		dueDate = &d
	}

	inv := &models.Invoice{
		ID:                 uuid.New().String(),
		OrganizationID:     profile.OrganizationID,
		ClientID:           clientID,
		ClientEmail:        template.ClientEmail,
		Number:             generateNumber(issueDate),
		Currency:           template.Currency,
		Notes:              template.Notes,
		IssueDate:          issueDate,
		DueDate:            dueDate,
		RecurringProfileID: &profile.ID,
	}

	items := make([]models.InvoiceLineItem, len(templateItems))
	for i, ti := range templateItems {
		items[i] = models.InvoiceLineItem{
			ID:             uuid.New().String(),
			InvoiceID:      inv.ID,
			Description:    ti.Description,
			Quantity:       ti.Quantity,
			UnitPriceCents: ti.UnitPriceCents,
			Position:       ti.Position,
		}
		inv.TotalCents += items[i].TotalCents()
	}

	if err := s.store.CreateInvoiceWithItems(ctx, inv, items); err != nil {
		return nil, fmt.Errorf("failed to persist materialized invoice: %w", err)
	}

	metrics.InvoiceMaterializationDuration.Observe(time.Since(start).Seconds())

	logging.Debug().
		Str("invoice_id", inv.ID).
		Str("profile_id", profile.ID).
		Int64("total_cents", inv.TotalCents).
		Int("items", len(items)).
		Msg("Invoice materialized from template")

	return inv, nil
}

// generateNumber produces a recurring-invoice number. Numbers are unique by
// construction (random suffix), not sequential; sequential numbering schemes
// belong to the invoicing domain proper.
func generateNumber(issueDate time.Time) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("REC-%s-%s", issueDate.UTC().Format("20060102"), suffix)
}
