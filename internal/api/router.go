// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// router.go - Chi route setup
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fakturo/fakturo/internal/config"
)

// NewRouter assembles the full HTTP surface.
//
// Layout:
//
//	GET  /healthz                                liveness
//	GET  /readyz                                 readiness (store ping)
//	GET  /metrics                                Prometheus exposition
//	POST /api/v1/recurring/profiles              create profile
//	GET  /api/v1/recurring/profiles              list profiles
//	GET  /api/v1/recurring/profiles/{id}         fetch profile
//	PATCH /api/v1/recurring/profiles/{id}        partial update
//	POST /api/v1/recurring/profiles/{id}/pause   pause
//	POST /api/v1/recurring/profiles/{id}/resume  resume
//	POST /api/v1/recurring/profiles/{id}/cancel  cancel (terminal)
//	POST /api/v1/recurring/profiles/{id}/trigger manual trigger
//	GET  /api/v1/recurring/profiles/{id}/runs    run history
//	GET  /api/v1/recurring/stats                 org-wide run stats
//	GET  /api/v1/recurring/audit                 audit events
func NewRouter(handler *Handler, auth *Authenticator, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Recoverer)
	r.Use(RequestLogger)

	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Probes and metrics stay unauthenticated; they carry no tenant data.
	r.Get("/healthz", handler.HealthLive)
	r.Get("/readyz", handler.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/recurring", func(r chi.Router) {
		if !cfg.RateLimitDisabled {
			requests := cfg.RateLimitRequests
			if requests <= 0 {
				requests = 300
			}
			window := cfg.RateLimitWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.LimitByIP(requests, window))
		}
		r.Use(auth.Authenticate)

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/", handler.CreateProfile)
			r.Get("/", handler.ListProfiles)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", handler.GetProfile)
				r.Patch("/", handler.UpdateProfile)
				r.Post("/pause", handler.PauseProfile)
				r.Post("/resume", handler.ResumeProfile)
				r.Post("/cancel", handler.CancelProfile)
				r.Post("/trigger", handler.TriggerProfile)
				r.Get("/runs", handler.ListRuns)
			})
		})

		r.Get("/stats", handler.Stats)
		r.Get("/audit", handler.ListAuditEvents)
	})

	return r
}
