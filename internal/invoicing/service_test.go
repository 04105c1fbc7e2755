// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package invoicing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/internal/models"
)

type mockStore struct {
	template *models.Invoice
	items    []models.InvoiceLineItem

	created      *models.Invoice
	createdItems []models.InvoiceLineItem
	createErr    error
}

func (m *mockStore) GetInvoice(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	if m.template == nil || m.template.ID != id || m.template.OrganizationID != orgID {
		return nil, database.ErrNotFound
	}
	return m.template, nil
}

func (m *mockStore) GetInvoiceLineItems(ctx context.Context, invoiceID string) ([]models.InvoiceLineItem, error) {
	return m.items, nil
}

func (m *mockStore) CreateInvoiceWithItems(ctx context.Context, inv *models.Invoice, items []models.InvoiceLineItem) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = inv
	m.createdItems = items
	return nil
}

func testProfile() *models.RecurringProfile {
	return &models.RecurringProfile{
		ID:                "prof-1",
		OrganizationID:    "org-1",
		TemplateInvoiceID: "tmpl-1",
		IntervalUnit:      models.IntervalMonth,
		IntervalCount:     1,
		Status:            models.ProfileStatusActive,
	}
}

func testTemplate() *models.Invoice {
	return &models.Invoice{
		ID:             "tmpl-1",
		OrganizationID: "org-1",
		ClientID:       "client-1",
		ClientEmail:    "billing@example.com",
		Number:         "INV-0001",
		Currency:       "EUR",
		Notes:          "Monthly retainer",
	}
}

func TestCreateFromTemplate(t *testing.T) {
	store := &mockStore{
		template: testTemplate(),
		items: []models.InvoiceLineItem{
			{ID: "li-1", InvoiceID: "tmpl-1", Description: "Consulting", Quantity: 10, UnitPriceCents: 15000, Position: 0},
			{ID: "li-2", InvoiceID: "tmpl-1", Description: "Hosting", Quantity: 1, UnitPriceCents: 4900, Position: 1},
		},
	}
	svc := NewService(store)

	issueDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	profile := testProfile()
	dueDays := 14
	profile.DueDays = &dueDays

	inv, err := svc.CreateFromTemplate(context.Background(), profile, issueDate)
	if err != nil {
		t.Fatalf("CreateFromTemplate() error: %v", err)
	}

	if inv.TotalCents != 10*15000+4900 {
		t.Errorf("expected total %d, got %d", 10*15000+4900, inv.TotalCents)
	}
	if inv.ClientID != "client-1" {
		t.Errorf("expected template client, got %s", inv.ClientID)
	}
	if inv.ClientEmail != "billing@example.com" {
		t.Errorf("expected client email cloned, got %s", inv.ClientEmail)
	}
	if inv.RecurringProfileID == nil || *inv.RecurringProfileID != "prof-1" {
		t.Error("expected back-reference to profile")
	}
	if !inv.IssueDate.Equal(issueDate) {
		t.Errorf("expected issue date %v, got %v", issueDate, inv.IssueDate)
	}
	wantDue := issueDate.AddDate(0, 0, 14)
	if inv.DueDate == nil || !inv.DueDate.Equal(wantDue) {
		t.Errorf("expected due date %v, got %v", wantDue, inv.DueDate)
	}
	if !strings.HasPrefix(inv.Number, "REC-20260301-") {
		t.Errorf("unexpected invoice number %s", inv.Number)
	}

	if len(store.createdItems) != 2 {
		t.Fatalf("expected 2 cloned items, got %d", len(store.createdItems))
	}
	for i, item := range store.createdItems {
		if item.InvoiceID != inv.ID {
			t.Errorf("item %d not linked to new invoice", i)
		}
		if item.ID == store.items[i].ID {
			t.Errorf("item %d reused template item ID", i)
		}
	}
}

func TestCreateFromTemplateClientOverride(t *testing.T) {
	store := &mockStore{
		template: testTemplate(),
		items:    []models.InvoiceLineItem{{Description: "X", Quantity: 1, UnitPriceCents: 100}},
	}
	svc := NewService(store)

	profile := testProfile()
	override := "client-override"
	profile.ClientID = &override

	inv, err := svc.CreateFromTemplate(context.Background(), profile, time.Now())
	if err != nil {
		t.Fatalf("CreateFromTemplate() error: %v", err)
	}
	if inv.ClientID != "client-override" {
		t.Errorf("expected client override, got %s", inv.ClientID)
	}
}

func TestCreateFromTemplateEmptyTemplate(t *testing.T) {
	store := &mockStore{template: testTemplate()}
	svc := NewService(store)

	_, err := svc.CreateFromTemplate(context.Background(), testProfile(), time.Now())
	if !errors.Is(err, ErrTemplateEmpty) {
		t.Fatalf("expected ErrTemplateEmpty, got %v", err)
	}
	if !strings.Contains(err.Error(), "no items") {
		t.Errorf("expected 'no items' in message, got %q", err.Error())
	}
	if store.created != nil {
		t.Error("no invoice should be created from an empty template")
	}
}

func TestCreateFromTemplateWrongOrganization(t *testing.T) {
	store := &mockStore{
		template: testTemplate(),
		items:    []models.InvoiceLineItem{{Description: "X", Quantity: 1, UnitPriceCents: 100}},
	}
	svc := NewService(store)

	profile := testProfile()
	profile.OrganizationID = "org-other"

	_, err := svc.CreateFromTemplate(context.Background(), profile, time.Now())
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for cross-tenant template, got %v", err)
	}
}

func TestCreateFromTemplateNoDueDays(t *testing.T) {
	store := &mockStore{
		template: testTemplate(),
		items:    []models.InvoiceLineItem{{Description: "X", Quantity: 1, UnitPriceCents: 100}},
	}
	svc := NewService(store)

	inv, err := svc.CreateFromTemplate(context.Background(), testProfile(), time.Now())
	if err != nil {
		t.Fatalf("CreateFromTemplate() error: %v", err)
	}
	if inv.DueDate != nil {
		t.Errorf("expected nil due date, got %v", inv.DueDate)
	}
}
