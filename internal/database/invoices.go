// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// invoices.go - Invoice Storage
//
// The recurring engine does not own invoice CRUD; these operations cover only
// what materialization needs: reading a template invoice with its line items
// and atomically inserting a generated invoice with cloned items.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fakturo/fakturo/internal/metrics"
	"github.com/fakturo/fakturo/internal/models"
)

// GetInvoice retrieves an invoice by ID within an organization scope.
func (db *DB) GetInvoice(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id, organization_id, client_id, client_email, invoice_number,
		       currency, notes, issue_date, due_date, total_cents,
		       recurring_profile_id, created_at
		FROM invoices
		WHERE id = ? AND organization_id = ?`

	row := db.conn.QueryRowContext(ctx, query, id, orgID)

	var inv models.Invoice
	var clientEmail, notes, recurringProfileID sql.NullString
	var dueDate sql.NullTime

	err := row.Scan(
		&inv.ID,
		&inv.OrganizationID,
		&inv.ClientID,
		&clientEmail,
		&inv.Number,
		&inv.Currency,
		&notes,
		&inv.IssueDate,
		&dueDate,
		&inv.TotalCents,
		&recurringProfileID,
		&inv.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	inv.ClientEmail = clientEmail.String
	inv.Notes = notes.String
	if dueDate.Valid {
		t := dueDate.Time
		inv.DueDate = &t
	}
	if recurringProfileID.Valid {
		inv.RecurringProfileID = &recurringProfileID.String
	}
	return &inv, nil
}

// GetInvoiceLineItems returns an invoice's line items ordered by position.
func (db *DB) GetInvoiceLineItems(ctx context.Context, invoiceID string) ([]models.InvoiceLineItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id, invoice_id, description, quantity, unit_price_cents, position
		FROM invoice_line_items
		WHERE invoice_id = ?
		ORDER BY position ASC`

	rows, err := db.conn.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice line items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []models.InvoiceLineItem
	for rows.Next() {
		var li models.InvoiceLineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.Description, &li.Quantity, &li.UnitPriceCents, &li.Position); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line item: %w", err)
		}
		items = append(items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoice line items: %w", err)
	}
	return items, nil
}

// CreateInvoiceWithItems inserts an invoice and its line items in a single
// transaction. Either everything lands or nothing does; the run ledger must
// never reference a half-written invoice.
func (db *DB) CreateInvoiceWithItems(ctx context.Context, inv *models.Invoice, items []models.InvoiceLineItem) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.IssueDate = normalizeTime(inv.IssueDate)
	inv.DueDate = normalizeTimePtr(inv.DueDate)
	inv.CreatedAt = normalizeTime(time.Now())

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin invoice transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	start := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (
			id, organization_id, client_id, client_email, invoice_number,
			currency, notes, issue_date, due_date, total_cents,
			recurring_profile_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.OrganizationID,
		inv.ClientID,
		inv.ClientEmail,
		inv.Number,
		inv.Currency,
		inv.Notes,
		inv.IssueDate,
		inv.DueDate,
		inv.TotalCents,
		nullableString(inv.RecurringProfileID),
		inv.CreatedAt,
	)
	metrics.ObserveDBQuery("insert", "invoices", start, err)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	for i := range items {
		li := &items[i]
		if li.ID == "" {
			li.ID = uuid.New().String()
		}
		li.InvoiceID = inv.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO invoice_line_items (
				id, invoice_id, description, quantity, unit_price_cents, position
			) VALUES (?, ?, ?, ?, ?, ?)`,
			li.ID, li.InvoiceID, li.Description, li.Quantity, li.UnitPriceCents, li.Position)
		if err != nil {
			return fmt.Errorf("failed to insert invoice line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit invoice transaction: %w", err)
	}
	return nil
}

// CountInvoicesForProfile returns the number of invoices generated by a
// profile. Used by tests to prove at-most-once materialization.
func (db *DB) CountInvoicesForProfile(ctx context.Context, profileID string) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM invoices WHERE recurring_profile_id = ?`, profileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices for profile: %w", err)
	}
	return n, nil
}
