// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package database

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a requested row does not exist in the
	// caller's organization scope. Cross-tenant reads surface as not-found
	// rather than leaking the row's existence.
	ErrNotFound = errors.New("not found")

	// ErrClaimLost is returned when a conditional claim update affects zero
	// rows: another scheduler instance already claimed the occurrence, or the
	// profile left ACTIVE in between. Not an error condition for the caller;
	// the losing side silently skips.
	ErrClaimLost = errors.New("claim lost")

	// ErrProfileCancelled is returned for lifecycle transitions attempted on
	// a CANCELLED profile. Cancellation is terminal.
	ErrProfileCancelled = errors.New("profile is cancelled")

	// ErrInvalidTransition is returned for lifecycle transitions the state
	// machine does not permit.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// isWriteConflict reports whether err is DuckDB aborting a transaction that
// raced a concurrent write to the same tuple. The driver surfaces these as
// plain error strings ("TransactionContext Error: Conflict on tuple
// deletion!"), so string matching is the only handle available.
func isWriteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if strings.Contains(msg, "Conflict on tuple") {
		return true
	}
	return strings.Contains(msg, "TransactionContext Error") && strings.Contains(msg, "Conflict")
}
