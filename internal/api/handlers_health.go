// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// handlers_health.go - Liveness and readiness probes
package api

import (
	"net/http"
	"time"
)

// HealthResponse is the payload of the health endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_seconds"`
}

// HealthLive handles GET /healthz. Always healthy while the process serves.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(HealthResponse{
		Status:    "ok",
		Version:   h.version,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
	})
}

// HealthReady handles GET /readyz. Ready only when the store answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.db.Ping(r.Context()); err != nil {
		rw.ServiceUnavailable("Database is not reachable")
		return
	}

	rw.Success(HealthResponse{
		Status:    "ready",
		Version:   h.version,
		UptimeSec: int64(time.Since(h.startTime).Seconds()),
	})
}
