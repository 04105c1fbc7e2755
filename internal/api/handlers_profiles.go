// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// handlers_profiles.go - Recurring profile endpoints
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/fakturo/fakturo/internal/audit"
	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/internal/models"
	"github.com/fakturo/fakturo/internal/validation"
)

// CreateProfile handles POST /api/v1/recurring/profiles.
//
// The template invoice must exist in the caller's organization and carry at
// least one line item; an empty template would fail on every occurrence, so
// it is rejected at creation time. New profiles start ACTIVE with
// next_run_at = start_at and version 0.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	var req CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	if err := h.gate.AssertFeatureEnabled(r.Context(), identity.UserID, identity.OrganizationID); err != nil {
		respondDomainError(rw, err)
		return
	}

	// Validate the template up front.
	template, err := h.db.GetInvoice(r.Context(), identity.OrganizationID, req.TemplateInvoiceID)
	if err != nil {
		respondDomainError(rw, err)
		return
	}
	items, err := h.db.GetInvoiceLineItems(r.Context(), template.ID)
	if err != nil {
		respondDomainError(rw, err)
		return
	}
	if len(items) == 0 {
		rw.BadRequest("Template invoice has no items")
		return
	}

	variant := models.InvoiceVariant(req.Variant)
	if variant == "" {
		variant = models.VariantStandard
	}

	profile := &models.RecurringProfile{
		OrganizationID:    identity.OrganizationID,
		ClientID:          req.ClientID,
		TemplateInvoiceID: req.TemplateInvoiceID,
		IntervalUnit:      models.IntervalUnit(req.IntervalUnit),
		IntervalCount:     req.IntervalCount,
		StartAt:           req.StartAt,
		DueDays:           req.DueDays,
		AutoSendEmail:     req.AutoSendEmail,
		Variant:           variant,
	}

	if err := h.db.CreateProfile(r.Context(), profile); err != nil {
		respondDomainError(rw, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogProfileEvent(audit.EventTypeProfileCreated, identity.OrganizationID, identity.UserID, profile.ID, map[string]interface{}{
			"template_invoice_id": profile.TemplateInvoiceID,
			"interval_unit":       string(profile.IntervalUnit),
			"interval_count":      profile.IntervalCount,
		})
	}

	rw.Created(profile)
}

// ListProfiles handles GET /api/v1/recurring/profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	var statusFilter *models.ProfileStatus
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.ProfileStatus(v)
		if !status.Valid() {
			rw.BadRequest("Unknown status filter: " + v)
			return
		}
		statusFilter = &status
	}

	limit, offset := h.pagination(r)

	profiles, total, err := h.db.ListProfiles(r.Context(), identity.OrganizationID, statusFilter, limit, offset)
	if err != nil {
		respondDomainError(rw, err)
		return
	}
	if profiles == nil {
		profiles = []models.RecurringProfile{}
	}

	rw.SuccessWithPagination(profiles, &PaginationMeta{
		Total:   total,
		Count:   len(profiles),
		Offset:  offset,
		Limit:   limit,
		HasMore: int64(offset+len(profiles)) < total,
	})
}

// GetProfile handles GET /api/v1/recurring/profiles/{id}.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	profile, err := h.db.GetProfile(r.Context(), identity.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(rw, err)
		return
	}
	rw.Success(profile)
}

// UpdateProfile handles PATCH /api/v1/recurring/profiles/{id}.
//
// Interval edits apply from the next claim onward; the pending occurrence
// keeps its already-computed next_run_at.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	if req.IsEmpty() {
		rw.BadRequest("Update carries no fields")
		return
	}
	// validator's omitempty treats a pointer to zero as absent, so an explicit
	// "interval_count": 0 sails past the min=1 tag. Reject it here.
	if req.IntervalCount != nil && *req.IntervalCount < 1 {
		rw.BadRequest("interval_count must be at least 1")
		return
	}

	if err := h.gate.AssertFeatureEnabled(r.Context(), identity.UserID, identity.OrganizationID); err != nil {
		respondDomainError(rw, err)
		return
	}

	upd := database.ProfileUpdate{
		ClientID:      req.ClientID,
		IntervalCount: req.IntervalCount,
		DueDays:       req.DueDays,
		AutoSendEmail: req.AutoSendEmail,
	}
	if req.IntervalUnit != nil {
		unit := models.IntervalUnit(*req.IntervalUnit)
		upd.IntervalUnit = &unit
	}
	if req.Variant != nil {
		variant := models.InvoiceVariant(*req.Variant)
		upd.Variant = &variant
	}

	profile, err := h.db.UpdateProfile(r.Context(), identity.OrganizationID, chi.URLParam(r, "id"), upd)
	if err != nil {
		respondDomainError(rw, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogProfileEvent(audit.EventTypeProfileUpdated, identity.OrganizationID, identity.UserID, profile.ID, nil)
	}

	rw.Success(profile)
}

// PauseProfile handles POST /api/v1/recurring/profiles/{id}/pause.
func (h *Handler) PauseProfile(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ProfileStatusPaused, audit.EventTypeProfilePaused)
}

// ResumeProfile handles POST /api/v1/recurring/profiles/{id}/resume.
func (h *Handler) ResumeProfile(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ProfileStatusActive, audit.EventTypeProfileResumed)
}

// CancelProfile handles POST /api/v1/recurring/profiles/{id}/cancel.
// Cancellation is terminal; the profile row and its run history remain
// queryable forever.
func (h *Handler) CancelProfile(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.ProfileStatusCancelled, audit.EventTypeProfileCancelled)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, target models.ProfileStatus, eventType audit.EventType) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	if err := h.gate.AssertFeatureEnabled(r.Context(), identity.UserID, identity.OrganizationID); err != nil {
		respondDomainError(rw, err)
		return
	}

	profile, err := h.db.TransitionProfileStatus(r.Context(), identity.OrganizationID, chi.URLParam(r, "id"), target)
	if err != nil {
		respondDomainError(rw, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogProfileEvent(eventType, identity.OrganizationID, identity.UserID, profile.ID, map[string]interface{}{
			"status": string(profile.Status),
		})
	}

	rw.Success(profile)
}

// TriggerProfile handles POST /api/v1/recurring/profiles/{id}/trigger.
//
// Executes the pending occurrence immediately through the same claim
// protocol as the scheduler tick; a concurrent claim surfaces as 409.
func (h *Handler) TriggerProfile(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	if h.driver == nil {
		rw.ServiceUnavailable("Scheduler is not available")
		return
	}

	if err := h.gate.AssertFeatureEnabled(r.Context(), identity.UserID, identity.OrganizationID); err != nil {
		respondDomainError(rw, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.driver.TriggerNow(r.Context(), identity.OrganizationID, id); err != nil {
		respondDomainError(rw, err)
		return
	}

	if h.auditor != nil {
		h.auditor.LogProfileEvent(audit.EventTypeProfileTriggered, identity.OrganizationID, identity.UserID, id, nil)
	}

	profile, err := h.db.GetProfile(r.Context(), identity.OrganizationID, id)
	if err != nil {
		respondDomainError(rw, err)
		return
	}
	rw.Accepted(profile)
}

// ListRuns handles GET /api/v1/recurring/profiles/{id}/runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	limit, offset := h.pagination(r)

	runs, total, err := h.db.ListRuns(r.Context(), identity.OrganizationID, chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		respondDomainError(rw, err)
		return
	}
	if runs == nil {
		runs = []models.RecurringRun{}
	}

	rw.SuccessWithPagination(runs, &PaginationMeta{
		Total:   total,
		Count:   len(runs),
		Offset:  offset,
		Limit:   limit,
		HasMore: int64(offset+len(runs)) < total,
	})
}

// Stats handles GET /api/v1/recurring/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	identity, ok := h.identity(rw, r)
	if !ok {
		return
	}

	stats, err := h.db.GetRunStats(r.Context(), identity.OrganizationID)
	if err != nil {
		respondDomainError(rw, err)
		return
	}
	rw.Success(stats)
}
