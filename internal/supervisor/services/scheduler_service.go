// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package services

import (
	"context"
	"fmt"
)

// SchedulerDriver is the subset of the scheduler driver the wrapper needs.
type SchedulerDriver interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService runs the recurring-invoice scheduler under supervision.
// The driver owns its own tick goroutine; the wrapper starts it, parks on
// the context, and stops it when the supervisor winds down.
type SchedulerService struct {
	driver SchedulerDriver
}

// NewSchedulerService wraps driver as a supervised service.
func NewSchedulerService(driver SchedulerDriver) *SchedulerService {
	return &SchedulerService{driver: driver}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.driver.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.driver.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *SchedulerService) String() string {
	return "recurring-scheduler"
}
