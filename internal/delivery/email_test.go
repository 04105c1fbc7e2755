// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fakturo/fakturo/internal/config"
	"github.com/fakturo/fakturo/internal/models"
)

func testInvoice() *models.Invoice {
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	return &models.Invoice{
		ID:          "inv-1",
		Number:      "REC-20260301-abc12345",
		Currency:    "EUR",
		ClientEmail: "billing@example.com",
		IssueDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:     &due,
		TotalCents:  154900,
		Notes:       "Payment within 14 days.",
	}
}

func TestSendInvoiceNotConfigured(t *testing.T) {
	sender := NewEmailSender(&config.SMTPConfig{})

	err := sender.SendInvoice(context.Background(), testInvoice(), models.VariantStandard)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestSendInvoiceMissingRecipient(t *testing.T) {
	sender := NewEmailSender(&config.SMTPConfig{Host: "smtp.example.com", Port: 587})

	inv := testInvoice()
	inv.ClientEmail = ""

	err := sender.SendInvoice(context.Background(), inv, models.VariantStandard)
	if err == nil || !strings.Contains(err.Error(), "no client email") {
		t.Fatalf("expected missing recipient error, got %v", err)
	}
}

func TestBuildMessage(t *testing.T) {
	sender := NewEmailSender(&config.SMTPConfig{
		Host:     "smtp.example.com",
		From:     "invoices@fakturo.example",
		FromName: "Acme Billing",
	})

	msg := sender.buildMessage(testInvoice(), models.VariantStandard)

	for _, want := range []string{
		"From: Acme Billing <invoices@fakturo.example>",
		"To: billing@example.com",
		"Subject: Invoice REC-20260301-abc12345",
		"Issue date: 2026-03-01",
		"Due date: 2026-03-15",
		"Total: 1549.00 EUR",
		"Payment within 14 days.",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestBuildMessageVariantSubjects(t *testing.T) {
	sender := NewEmailSender(&config.SMTPConfig{From: "invoices@fakturo.example"})
	inv := testInvoice()

	tests := []struct {
		variant models.InvoiceVariant
		want    string
	}{
		{models.VariantStandard, "Subject: Invoice "},
		{models.VariantProforma, "Subject: Proforma invoice "},
		{models.VariantSummary, "Subject: Invoice summary "},
	}
	for _, tt := range tests {
		msg := sender.buildMessage(inv, tt.variant)
		if !strings.Contains(msg, tt.want) {
			t.Errorf("variant %s: message missing %q", tt.variant, tt.want)
		}
	}
}

func TestSendInvoiceRespectsContextCancellation(t *testing.T) {
	// A tiny rate with zero tokens forces the limiter to wait; cancelling the
	// context must abort the wait instead of blocking the executor.
	sender := NewEmailSender(&config.SMTPConfig{
		Host:      "smtp.example.com",
		Port:      587,
		SendRate:  0.001,
		SendBurst: 1,
	})
	// Drain the initial burst token.
	_ = sender.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.SendInvoice(ctx, testInvoice(), models.VariantStandard)
	if err == nil || !strings.Contains(err.Error(), "rate limit wait aborted") {
		t.Fatalf("expected rate limit abort error, got %v", err)
	}
}
