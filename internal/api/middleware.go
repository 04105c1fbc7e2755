// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// middleware.go - Request middleware
//
// Request ID propagation, structured request logging, panic recovery, and
// bearer-token authentication. Every authenticated request carries an
// Identity in its context; handlers read the organization scope from there
// and never from the request body.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fakturo/fakturo/internal/config"
	"github.com/fakturo/fakturo/internal/logging"
	"github.com/fakturo/fakturo/internal/metrics"
)

// Identity describes the authenticated caller.
type Identity struct {
	UserID         string
	OrganizationID string
	Role           string
}

// RoleAdmin is the role claim value granting access to admin-only routes.
const RoleAdmin = "admin"

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// ContextWithIdentity attaches an identity to the context. Exported for tests.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// RequestID assigns each request a unique ID, echoes it in the X-Request-ID
// header, and binds it to the request context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request and records API latency metrics.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		metrics.APIRequestDuration.
			WithLabelValues(r.Method, r.URL.Path, fmt.Sprintf("%d", rec.status)).
			Observe(duration.Seconds())

		logging.Info().
			Str("request_id", logging.RequestIDFromContext(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// Recoverer converts handler panics into 500 responses instead of dropped
// connections.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error().
					Interface("panic", rec).
					Str("path", r.URL.Path).
					Msg("Panic in HTTP handler")
				NewResponseWriter(w, r).InternalError("Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Authenticator verifies bearer tokens and populates the request identity.
type Authenticator struct {
	cfg *config.SecurityConfig
}

// NewAuthenticator creates the auth middleware provider.
func NewAuthenticator(cfg *config.SecurityConfig) *Authenticator {
	return &Authenticator{cfg: cfg}
}

// tokenClaims is the expected JWT claim set (HS256).
type tokenClaims struct {
	OrganizationID string `json:"org"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate requires a valid bearer token on every request it wraps.
// When auth is disabled by configuration, a development identity is injected
// so handlers can still rely on the context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.cfg.AuthDisabled {
			ctx := ContextWithIdentity(r.Context(), &Identity{
				UserID:         "dev",
				OrganizationID: "dev",
				Role:           "admin",
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			NewResponseWriter(w, r).Unauthorized("Missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		identity, err := a.verify(tokenString)
		if err != nil {
			logging.Debug().Err(err).Msg("Token verification failed")
			NewResponseWriter(w, r).Unauthorized("Invalid or expired token")
			return
		}

		ctx := ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verify parses and validates an HS256 token.
func (a *Authenticator) verify(tokenString string) (*Identity, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	if claims.OrganizationID == "" {
		return nil, fmt.Errorf("token has no organization")
	}

	return &Identity{
		UserID:         claims.Subject,
		OrganizationID: claims.OrganizationID,
		Role:           claims.Role,
	}, nil
}
