// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

// Package config provides configuration management for the recurring engine.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: FAKTURO_* overrides for any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Server    ServerConfig    `koanf:"server"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Security  SecurityConfig  `koanf:"security"`
	API       APIConfig       `koanf:"api"`
	Audit     AuditConfig     `koanf:"audit"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatabaseConfig holds DuckDB configuration.
type DatabaseConfig struct {
	// Path is the database file path, or ":memory:" for an in-memory store.
	Path string `koanf:"path"`

	// MaxMemory limits DuckDB's memory usage (e.g. "512MB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the number of DuckDB worker threads. 0 = NumCPU.
	Threads int `koanf:"threads"`

	// QueryTimeout bounds individual queries when the caller supplies no
	// deadline of its own.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed CORS origins. Empty disables CORS.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests is the per-client request budget per window.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SchedulerConfig holds recurring-engine driver configuration.
//
// The tick cadence is a deployment parameter, not a correctness requirement:
// the claim protocol keeps concurrent drivers (in this process or in other
// replicas) from double-executing an occurrence regardless of cadence.
type SchedulerConfig struct {
	// Enabled controls whether the driver runs. CRUD stays available when
	// disabled; occurrences simply accumulate as due.
	Enabled bool `koanf:"enabled"`

	// TickInterval is how often the driver scans for due profiles.
	TickInterval time.Duration `koanf:"tick_interval"`

	// BatchSize caps the number of due profiles processed per tick.
	BatchSize int `koanf:"batch_size"`

	// MaxConcurrent bounds per-tick executor parallelism.
	MaxConcurrent int `koanf:"max_concurrent"`

	// ExecutionTimeout bounds a single occurrence's execution.
	ExecutionTimeout time.Duration `koanf:"execution_timeout"`
}

// SMTPConfig holds outbound email configuration for invoice auto-send.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
	UseTLS   bool   `koanf:"use_tls"`

	// SendRate is the sustained outbound send rate in messages per second.
	SendRate float64 `koanf:"send_rate"`

	// SendBurst is the burst size allowed above the sustained rate.
	SendBurst int `koanf:"send_burst"`

	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds authentication configuration for the CRUD surface.
// The internal claim/execute path runs with system privilege and never
// consults these settings.
type SecurityConfig struct {
	// JWTSecret signs and verifies bearer tokens (HS256).
	JWTSecret string `koanf:"jwt_secret"`

	// AuthDisabled turns off bearer-token verification. Development only.
	AuthDisabled bool `koanf:"auth_disabled"`
}

// APIConfig holds pagination and response limits.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// AuditConfig holds audit logging configuration.
type AuditConfig struct {
	Enabled     bool `koanf:"enabled"`
	BufferSize  int  `koanf:"buffer_size"`
	LogToStdout bool `koanf:"log_to_stdout"`
}

// LoggingConfig holds log output configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all default values. Defaults are
// applied first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/fakturo.db",
			MaxMemory:    "512MB",
			Threads:      0,
			QueryTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8432,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       nil,
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			TickInterval:     time.Minute,
			BatchSize:        25,
			MaxConcurrent:    5,
			ExecutionTimeout: 2 * time.Minute,
		},
		SMTP: SMTPConfig{
			Host:      "",
			Port:      587,
			FromName:  "Fakturo",
			UseTLS:    true,
			SendRate:  1,
			SendBurst: 5,
			Timeout:   30 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:    "",
			AuthDisabled: false,
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     200,
		},
		Audit: AuditConfig{
			Enabled:     true,
			BufferSize:  1000,
			LogToStdout: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
