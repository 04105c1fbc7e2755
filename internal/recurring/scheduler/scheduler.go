// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package scheduler drives the recurring-invoice engine.
//
// scheduler.go - Recurring Engine Driver
//
// The driver runs on a configurable tick (default: 1 minute):
//  1. Scans for ACTIVE profiles whose next_run_at is due
//  2. For each due profile, re-fetches a fresh snapshot and attempts a claim
//  3. A won claim advances the schedule and hands the occurrence to the
//     executor; a lost claim is silently dropped (another replica has it)
//
// The tick cadence is purely operational. Correctness under concurrent
// drivers rests entirely on the store's compare-and-set claim.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fakturo/fakturo/internal/config"
	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/internal/interval"
	"github.com/fakturo/fakturo/internal/logging"
	"github.com/fakturo/fakturo/internal/metrics"
	"github.com/fakturo/fakturo/internal/models"
)

// ErrNotActive is returned by TriggerNow for profiles that are paused.
var ErrNotActive = errors.New("profile is not ACTIVE")

// ErrNothingPending is returned by TriggerNow when the profile has no
// pending occurrence to execute.
var ErrNothingPending = errors.New("profile has no pending occurrence")

// Store defines the database operations required by the driver.
type Store interface {
	GetProfilesDue(ctx context.Context, now time.Time, limit int) ([]models.RecurringProfile, error)
	GetProfileByID(ctx context.Context, id string) (*models.RecurringProfile, error)
	GetProfile(ctx context.Context, orgID, id string) (*models.RecurringProfile, error)
	ClaimProfile(ctx context.Context, id string, snapshotNextRunAt time.Time, snapshotVersion int64, newNextRunAt time.Time) error
}

// Executor runs a claimed occurrence or records a skip.
type Executor interface {
	Execute(ctx context.Context, profile *models.RecurringProfile, runAt time.Time) error
	RecordSkip(ctx context.Context, profile *models.RecurringProfile, runAt time.Time, reason string) error
}

// Driver owns the scan/claim/dispatch loop.
type Driver struct {
	store    Store
	executor Executor
	cfg      config.SchedulerConfig

	// Runtime state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDriver creates a scheduler driver.
func NewDriver(store Store, executor Executor, cfg config.SchedulerConfig) *Driver {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 2 * time.Minute
	}

	return &Driver{
		store:    store,
		executor: executor,
		cfg:      cfg,
	}
}

// Start begins the driver loop.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("scheduler driver already running")
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	if !d.cfg.Enabled {
		logging.Info().Msg("Recurring scheduler disabled")
		go func() {
			defer close(d.doneCh)
			<-d.stopCh
		}()
		return nil
	}

	logging.Info().
		Dur("tick_interval", d.cfg.TickInterval).
		Int("batch_size", d.cfg.BatchSize).
		Int("max_concurrent", d.cfg.MaxConcurrent).
		Msg("Starting recurring scheduler")

	go d.run(ctx)
	return nil
}

// Stop stops the driver loop and waits for in-flight work to complete.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	logging.Info().Msg("Stopping recurring scheduler...")
	close(d.stopCh)
	<-d.doneCh

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	logging.Info().Msg("Recurring scheduler stopped")
	return nil
}

// run is the main driver loop.
func (d *Driver) run(ctx context.Context) {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.cfg.TickInterval)
	defer ticker.Stop()

	// Run immediately on start
	d.TickOnce(ctx)

	for {
		select {
		case <-ticker.C:
			d.TickOnce(ctx)
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// TickOnce performs one scan/claim/dispatch pass. Exported so tests and the
// manual trigger path can drive the engine without the ticker.
func (d *Driver) TickOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SchedulerTickDuration.Observe(time.Since(start).Seconds())
	}()

	profiles, err := d.store.GetProfilesDue(ctx, time.Now(), d.cfg.BatchSize)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to scan for due profiles")
		return
	}

	metrics.SchedulerDueBatchSize.Observe(float64(len(profiles)))

	if len(profiles) == 0 {
		logging.Debug().Msg("No profiles due")
		return
	}

	logging.Info().Int("count", len(profiles)).Msg("Found due profiles")

	sem := make(chan struct{}, d.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range profiles {
		wg.Add(1)
		sem <- struct{}{}

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					logging.Error().
						Str("profile_id", id).
						Interface("panic", r).
						Msg("Panic while processing due profile")
				}
			}()

			execCtx, cancel := context.WithTimeout(ctx, d.cfg.ExecutionTimeout)
			defer cancel()

			d.processProfile(execCtx, id)
		}(profiles[i].ID)
	}

	wg.Wait()
}

// processProfile claims and executes one due profile's pending occurrence.
//
// The due scan's snapshot may be arbitrarily stale by the time this runs, so
// the profile is re-fetched and the claim is issued against the fresh
// (next_run_at, version) pair. Losing the claim is normal operation, not an
// error: some other goroutine or replica won the occurrence.
func (d *Driver) processProfile(ctx context.Context, id string) {
	profile, err := d.store.GetProfileByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return
		}
		logging.Error().Err(err).Str("profile_id", id).Msg("Failed to re-fetch due profile")
		return
	}

	if profile.NextRunAt == nil {
		return
	}
	runAt := *profile.NextRunAt

	if !profile.IsActive() {
		// Observed due, then paused or cancelled before we got to it.
		if err := d.executor.RecordSkip(ctx, profile, runAt, "Profile is not ACTIVE"); err != nil {
			logging.Error().Err(err).Str("profile_id", id).Msg("Failed to record skip")
		}
		return
	}

	if runAt.After(time.Now()) {
		// Another claimant already advanced the schedule past now.
		return
	}

	newNextRunAt := interval.Add(runAt, profile.IntervalUnit, profile.IntervalCount)

	err = d.store.ClaimProfile(ctx, id, runAt, profile.Version, newNextRunAt)
	if errors.Is(err, database.ErrClaimLost) {
		logging.Debug().Str("profile_id", id).Msg("Claim lost, occurrence taken elsewhere")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("profile_id", id).Msg("Claim attempt failed")
		return
	}

	// Claim won: from here the occurrence is consumed no matter what.
	if err := d.executor.Execute(ctx, profile, runAt); err != nil {
		logging.Error().Err(err).Str("profile_id", id).Msg("Occurrence execution failed")
	}
}

// TriggerNow executes a profile's pending occurrence immediately, regardless
// of whether it is due yet. The occurrence goes through the same claim
// protocol as the tick path, so a concurrent tick cannot double-execute it;
// the loser of the race receives database.ErrClaimLost.
func (d *Driver) TriggerNow(ctx context.Context, orgID, id string) error {
	profile, err := d.store.GetProfile(ctx, orgID, id)
	if err != nil {
		return err
	}

	switch profile.Status {
	case models.ProfileStatusCancelled:
		return database.ErrProfileCancelled
	case models.ProfileStatusPaused:
		return ErrNotActive
	}

	if profile.NextRunAt == nil {
		return ErrNothingPending
	}
	runAt := *profile.NextRunAt

	newNextRunAt := interval.Add(runAt, profile.IntervalUnit, profile.IntervalCount)

	if err := d.store.ClaimProfile(ctx, id, runAt, profile.Version, newNextRunAt); err != nil {
		return err
	}

	execCtx, cancel := context.WithTimeout(ctx, d.cfg.ExecutionTimeout)
	defer cancel()

	return d.executor.Execute(execCtx, profile, runAt)
}
