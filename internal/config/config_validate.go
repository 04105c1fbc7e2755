// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package config

import (
	"fmt"
)

// Validate checks the configuration for invalid or inconsistent values.
// It is called by Load() after all layers are merged.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitRequests <= 0 {
			return fmt.Errorf("server.rate_limit_requests must be positive when rate limiting is enabled")
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("server.rate_limit_window must be positive when rate limiting is enabled")
		}
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.TickInterval <= 0 {
			return fmt.Errorf("scheduler.tick_interval must be positive")
		}
		if c.Scheduler.BatchSize <= 0 {
			return fmt.Errorf("scheduler.batch_size must be positive")
		}
		if c.Scheduler.MaxConcurrent <= 0 {
			return fmt.Errorf("scheduler.max_concurrent must be positive")
		}
		if c.Scheduler.ExecutionTimeout <= 0 {
			return fmt.Errorf("scheduler.execution_timeout must be positive")
		}
	}

	// SMTP is optional. When a host is configured the sender address must
	// be present too, otherwise auto-send can never produce valid messages.
	if c.SMTP.Host != "" {
		if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
			return fmt.Errorf("smtp.port must be between 1 and 65535, got %d", c.SMTP.Port)
		}
		if c.SMTP.From == "" {
			return fmt.Errorf("smtp.from must be set when smtp.host is configured")
		}
		if c.SMTP.SendRate <= 0 {
			return fmt.Errorf("smtp.send_rate must be positive")
		}
	}

	if !c.Security.AuthDisabled && c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret must be set unless security.auth_disabled is true")
	}
	if !c.Security.AuthDisabled && len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}

	if c.API.DefaultPageSize <= 0 {
		return fmt.Errorf("api.default_page_size must be positive")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size (%d) must be >= api.default_page_size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}

	return nil
}
