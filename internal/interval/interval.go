// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package interval implements the schedule arithmetic for recurring profiles.
//
// The calculator is pure: no I/O, no clock reads, no dependence on the system
// timezone beyond the location already carried by the input timestamp. Month
// and year additions use calendar arithmetic with day-of-month clamping
// rather than time.Time.AddDate, which normalizes overflow (Jan 31 + 1 month
// would become Mar 2/3).
package interval

import (
	"time"

	"github.com/fakturo/fakturo/internal/models"
)

// Add returns the next occurrence after base for the given unit and count.
//
// count is clamped to a minimum of 1; callers relying on validation must
// reject non-positive interval counts upstream.
func Add(base time.Time, unit models.IntervalUnit, count int) time.Time {
	if count < 1 {
		count = 1
	}

	switch unit {
	case models.IntervalDay:
		return base.AddDate(0, 0, count)
	case models.IntervalWeek:
		return base.AddDate(0, 0, 7*count)
	case models.IntervalMonth:
		return addMonths(base, count)
	case models.IntervalYear:
		return addMonths(base, 12*count)
	default:
		// Unknown units are rejected at profile create/update time; treat a
		// corrupt value as daily so the schedule still advances.
		return base.AddDate(0, 0, count)
	}
}

// addMonths adds months calendar-wise, clamping the day-of-month to the
// target month's length. The time-of-day and location are preserved.
func addMonths(t time.Time, months int) time.Time {
	year := t.Year()
	// Normalize to a zero-based month index so negative overflow divides
	// cleanly (months is always positive here, years may still carry).
	monthIdx := int(t.Month()) - 1 + months
	year += monthIdx / 12
	monthIdx %= 12
	if monthIdx < 0 {
		monthIdx += 12
		year--
	}
	month := time.Month(monthIdx + 1)

	day := t.Day()
	if max := daysIn(year, month); day > max {
		day = max
	}

	h, m, s := t.Clock()
	return time.Date(year, month, day, h, m, s, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
