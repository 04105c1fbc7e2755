// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package metrics provides Prometheus instrumentation for the recurring
// engine: scheduler ticks, claim outcomes, run results, invoice
// materialization, email delivery, database queries and the API surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler metrics
	SchedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recurring_scheduler_tick_duration_seconds",
			Help:    "Duration of a full scheduler tick (scan + dispatch)",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulerDueBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recurring_scheduler_due_batch_size",
			Help:    "Number of due profiles found per tick",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	SchedulerClaimsWon = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recurring_scheduler_claims_won_total",
			Help: "Occurrence claims won by this instance",
		},
	)

	SchedulerClaimsLost = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recurring_scheduler_claims_lost_total",
			Help: "Occurrence claims lost to a concurrent instance or a status change",
		},
	)

	// Run executor metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recurring_runs_total",
			Help: "Execution attempts recorded in the run ledger, by outcome",
		},
		[]string{"status"}, // SUCCESS, FAILED, SKIPPED
	)

	InvoiceMaterializationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recurring_invoice_materialization_duration_seconds",
			Help:    "Duration of invoice materialization from a template",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Email delivery metrics
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recurring_email_deliveries_total",
			Help: "Invoice email delivery attempts, by outcome",
		},
		[]string{"outcome"}, // sent, failed, rejected (circuit open)
	)

	EmailBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recurring_email_breaker_state",
			Help: "SMTP circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Database metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// AppInfo carries build metadata as constant labels.
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fakturo_app_info",
			Help: "Application build information",
		},
		[]string{"version"},
	)
)

// ObserveDBQuery records the duration of a store round-trip and counts
// errors. Call with the time the query started.
func ObserveDBQuery(operation, table string, start time.Time, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}
