// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// errors.go - Store and domain error mapping
package api

import (
	"errors"

	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/internal/invoicing"
	"github.com/fakturo/fakturo/internal/plan"
	"github.com/fakturo/fakturo/internal/recurring/scheduler"
)

// respondDomainError maps store and engine errors onto HTTP responses.
// Unrecognized errors become opaque 500s; the detail stays in the logs.
func respondDomainError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		rw.NotFound("Resource not found")
	case errors.Is(err, database.ErrProfileCancelled):
		rw.Conflict("Profile is cancelled and can no longer be modified")
	case errors.Is(err, database.ErrInvalidTransition):
		rw.Conflict("Invalid status transition")
	case errors.Is(err, database.ErrClaimLost):
		rw.Conflict("Occurrence was claimed by a concurrent execution")
	case errors.Is(err, scheduler.ErrNotActive):
		rw.Conflict("Profile is not active")
	case errors.Is(err, scheduler.ErrNothingPending):
		rw.Conflict("Profile has no pending occurrence")
	case errors.Is(err, invoicing.ErrTemplateEmpty):
		rw.Error(400, ErrCodeBadRequest, "Template invoice has no items")
	case errors.Is(err, plan.ErrFeatureNotEnabled):
		rw.Error(403, ErrCodePlanRestricted, "Recurring invoicing is not included in your plan")
	default:
		rw.DatabaseError(err)
	}
}
