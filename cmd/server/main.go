// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Command server runs the Fakturo recurring-invoice engine: the HTTP API,
// the scheduler driver, and the audit writer, supervised as one tree.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fakturo/fakturo/internal/api"
	"github.com/fakturo/fakturo/internal/audit"
	"github.com/fakturo/fakturo/internal/config"
	"github.com/fakturo/fakturo/internal/database"
	"github.com/fakturo/fakturo/internal/delivery"
	"github.com/fakturo/fakturo/internal/invoicing"
	"github.com/fakturo/fakturo/internal/logging"
	"github.com/fakturo/fakturo/internal/metrics"
	"github.com/fakturo/fakturo/internal/plan"
	"github.com/fakturo/fakturo/internal/recurring"
	"github.com/fakturo/fakturo/internal/recurring/scheduler"
	"github.com/fakturo/fakturo/internal/supervisor"
	"github.com/fakturo/fakturo/internal/supervisor/services"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Bool("scheduler_enabled", cfg.Scheduler.Enabled).
		Msg("Starting Fakturo server")
	metrics.AppInfo.WithLabelValues(version).Set(1)

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Database close failed")
		}
	}()

	var auditor *audit.Logger
	if cfg.Audit.Enabled {
		auditor = audit.NewLogger(audit.NewDuckDBStore(db.Conn()), &audit.Config{
			Enabled:    true,
			BufferSize: cfg.Audit.BufferSize,
		})
		defer func() {
			if cerr := auditor.Close(); cerr != nil {
				logging.Warn().Err(cerr).Msg("Audit logger close failed")
			}
		}()
	}

	// Email is optional: without an SMTP host the executor records runs
	// normally and leaves auto-send profiles unsent.
	var sender recurring.Sender
	if cfg.SMTP.Host != "" {
		sender = delivery.NewEmailSender(&cfg.SMTP)
	} else {
		logging.Info().Msg("SMTP host not configured, invoice auto-send disabled")
	}

	invoicer := invoicing.NewService(db)
	executor := recurring.NewExecutor(db, invoicer, sender, auditor)
	driver := scheduler.NewDriver(db, executor, cfg.Scheduler)

	handler := api.NewHandler(db, driver, plan.AllowAll{}, auditor, cfg, version)
	router := api.NewRouter(handler, api.NewAuthenticator(&cfg.Security), &cfg.Server)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddSchedulerService(services.NewSchedulerService(driver))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Listening")
	err = tree.Serve(ctx)

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}

	if err != nil && ctx.Err() == nil {
		return err
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}
