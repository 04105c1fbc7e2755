// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package plan gates recurring-invoice features on subscription entitlements.
// The engine consults the gate before profile creation and manual triggers;
// billing enforcement itself lives outside this service.
package plan

import (
	"context"
	"errors"
)

// ErrFeatureNotEnabled is returned when the organization's plan does not
// include recurring invoicing.
var ErrFeatureNotEnabled = errors.New("recurring invoicing is not enabled for this plan")

// Gate decides whether an organization may use recurring invoicing.
type Gate interface {
	// AssertFeatureEnabled returns nil when the feature is available, or
	// ErrFeatureNotEnabled (possibly wrapped) when it is not.
	AssertFeatureEnabled(ctx context.Context, userID, orgID string) error
}

// AllowAll is a Gate that grants every request. Used when plan enforcement is
// disabled or handled upstream.
type AllowAll struct{}

// AssertFeatureEnabled always returns nil.
func (AllowAll) AssertFeatureEnabled(ctx context.Context, userID, orgID string) error {
	return nil
}

// DenyAll is a Gate that rejects every request. Used in tests.
type DenyAll struct{}

// AssertFeatureEnabled always returns ErrFeatureNotEnabled.
func (DenyAll) AssertFeatureEnabled(ctx context.Context, userID, orgID string) error {
	return ErrFeatureNotEnabled
}
