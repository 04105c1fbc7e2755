// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// handlers.go - Handler struct and shared helpers
//
// Handler methods are split across files:
//   - handlers_profiles.go: profile CRUD, lifecycle, trigger, runs, stats
//   - handlers_health.go: liveness and readiness probes
//   - handlers_audit.go: audit event queries
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fakturo/fakturo/internal/audit"
	"github.com/fakturo/fakturo/internal/config"
	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/internal/plan"
)

// Trigger executes a profile's pending occurrence on demand. Implemented by
// the scheduler driver.
type Trigger interface {
	TriggerNow(ctx context.Context, orgID, id string) error
}

// Handler contains dependencies for the API handlers.
type Handler struct {
	db        *database.DB
	driver    Trigger
	gate      plan.Gate
	auditor   *audit.Logger
	cfg       *config.Config
	startTime time.Time
	version   string
}

// NewHandler creates an API handler. driver and auditor may be nil (the
// trigger endpoint then reports unavailable, audit writes become no-ops).
func NewHandler(db *database.DB, driver Trigger, gate plan.Gate, auditor *audit.Logger, cfg *config.Config, version string) *Handler {
	if gate == nil {
		gate = plan.AllowAll{}
	}
	return &Handler{
		db:        db,
		driver:    driver,
		gate:      gate,
		auditor:   auditor,
		cfg:       cfg,
		startTime: time.Now(),
		version:   version,
	}
}

// identity extracts the caller identity; writes a 401 and returns false when
// the context carries none (i.e. a route was mounted without Authenticate).
func (h *Handler) identity(rw *ResponseWriter, r *http.Request) (*Identity, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		rw.Unauthorized("Authentication required")
		return nil, false
	}
	return id, true
}

// pagination parses limit/offset query parameters, applying configured
// defaults and caps.
func (h *Handler) pagination(r *http.Request) (limit, offset int) {
	limit = h.cfg.API.DefaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
