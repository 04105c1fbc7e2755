// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestIDRoundTrip(t *testing.T) {
	id := GenerateRequestID()
	if id == "" {
		t.Fatal("expected non-empty request ID")
	}

	ctx := ContextWithRequestID(context.Background(), id)
	if got := RequestIDFromContext(ctx); got != id {
		t.Errorf("expected %q, got %q", id, got)
	}
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty ID from bare context, got %q", got)
	}
}

func TestLoggerFromContextFallsBack(t *testing.T) {
	// A context without a logger yields the global one without panicking.
	l := LoggerFromContext(context.Background())
	l.Debug().Msg("fallback logger works")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&SlogHandler{logger: zerolog.New(&buf)})

	logger.Info("service started", "service", "scheduler", "attempts", int64(3))

	out := buf.String()
	for _, want := range []string{`"level":"info"`, `"service":"scheduler"`, `"attempts":3`, "service started"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&SlogHandler{logger: zerolog.New(&buf)})

	logger.WithGroup("supervisor").Warn("restarting", "service", "http-server")

	if !strings.Contains(buf.String(), `"supervisor.service":"http-server"`) {
		t.Errorf("expected grouped key, got %s", buf.String())
	}
}

func TestSlogHandlerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&SlogHandler{logger: zerolog.New(&buf).Level(zerolog.WarnLevel)})

	logger.Debug("too quiet")
	if buf.Len() != 0 {
		t.Errorf("debug record should be dropped, got %s", buf.String())
	}

	logger.Error("loud enough")
	if !strings.Contains(buf.String(), "loud enough") {
		t.Errorf("error record should pass, got %s", buf.String())
	}
}
