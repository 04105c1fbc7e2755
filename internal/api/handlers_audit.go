// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// handlers_audit.go - Audit event queries
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/fakturo/fakturo/internal/audit"
)

// ListAuditEvents handles GET /api/v1/recurring/audit.
//
// Query parameters:
//
//	entity_id  - filter by affected entity
//	types      - comma-separated event types
//	since      - RFC3339 lower bound
//	until      - RFC3339 upper bound
//	limit      - page size
//	offset     - page offset
//
// Admin role required. Results are always scoped to the caller's
// organization.
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	if identity.Role != RoleAdmin {
		rw.Forbidden("Audit access requires the admin role")
		return
	}
	if h.auditor == nil {
		rw.ServiceUnavailable("Audit log is not available")
		return
	}

	limit, offset := h.pagination(r)
	filter := audit.QueryFilter{
		OrganizationID: identity.OrganizationID,
		EntityID:       r.URL.Query().Get("entity_id"),
		Limit:          limit,
		Offset:         offset,
	}

	if v := r.URL.Query().Get("types"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, audit.EventType(t))
			}
		}
	}
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			rw.BadRequest("Invalid 'since' timestamp, expected RFC3339")
			return
		}
		filter.Since = t
	}
	if v := r.URL.Query().Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			rw.BadRequest("Invalid 'until' timestamp, expected RFC3339")
			return
		}
		filter.Until = t
	}

	events, err := h.auditor.Query(r.Context(), filter)
	if err != nil {
		rw.InternalError("Failed to query audit events")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	rw.SuccessWithPagination(events, &PaginationMeta{
		Count:  len(events),
		Offset: offset,
		Limit:  limit,
	})
}
