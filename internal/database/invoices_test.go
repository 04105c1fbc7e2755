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

	"github.com/fakturo/fakturo/internal/models"
)

func TestCreateInvoiceWithItemsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	profileID := "profile-1"
	inv := &models.Invoice{
		OrganizationID:     "org-1",
		ClientID:           "client-1",
		ClientEmail:        "billing@example.com",
		Number:             "REC-20260401-abc123",
		Currency:           "EUR",
		Notes:              "Monthly retainer",
		IssueDate:          time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		TotalCents:         175000,
		RecurringProfileID: &profileID,
	}
	items := []models.InvoiceLineItem{
		{Description: "Retainer", Quantity: 1, UnitPriceCents: 150000, Position: 0},
		{Description: "Support hours", Quantity: 5, UnitPriceCents: 5000, Position: 1},
	}
	if err := db.CreateInvoiceWithItems(ctx, inv, items); err != nil {
		t.Fatalf("CreateInvoiceWithItems failed: %v", err)
	}

	got, err := db.GetInvoice(ctx, "org-1", inv.ID)
	if err != nil {
		t.Fatalf("GetInvoice failed: %v", err)
	}
	if got.Number != inv.Number || got.TotalCents != inv.TotalCents {
		t.Errorf("invoice fields lost: %+v", got)
	}
	if got.RecurringProfileID == nil || *got.RecurringProfileID != profileID {
		t.Errorf("expected profile back-reference, got %v", got.RecurringProfileID)
	}

	gotItems, err := db.GetInvoiceLineItems(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetInvoiceLineItems failed: %v", err)
	}
	if len(gotItems) != 2 {
		t.Fatalf("expected 2 items, got %d", len(gotItems))
	}
	if gotItems[0].Description != "Retainer" || gotItems[1].Description != "Support hours" {
		t.Error("items not ordered by position")
	}

	n, err := db.CountInvoicesForProfile(ctx, profileID)
	if err != nil {
		t.Fatalf("CountInvoicesForProfile failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 invoice for profile, got %d", n)
	}
}

func TestGetInvoiceOrgScoping(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	inv := &models.Invoice{
		OrganizationID: "org-1",
		ClientID:       "client-1",
		Number:         "INV-1",
		Currency:       "EUR",
		IssueDate:      time.Now(),
	}
	if err := db.CreateInvoiceWithItems(ctx, inv, nil); err != nil {
		t.Fatalf("CreateInvoiceWithItems failed: %v", err)
	}

	if _, err := db.GetInvoice(ctx, "org-2", inv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant invoice read must return ErrNotFound, got %v", err)
	}
}
