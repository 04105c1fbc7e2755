// Fakturo - Invoicing and Business Operations Backend
// Copyright 2026 Fakturo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fakturo/fakturo

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	release     chan struct{}
	shutdowns   atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{release: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.release
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(ctx context.Context) error {
	m.shutdowns.Add(1)
	close(m.release)
	return m.shutdownErr
}

func TestHTTPServiceGracefulShutdown(t *testing.T) {
	server := newMockHTTPServer()
	svc := NewHTTPService(server, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	// Let the listener goroutine start, then request shutdown.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if got := server.shutdowns.Load(); got != 1 {
		t.Errorf("expected 1 shutdown call, got %d", got)
	}
}

func TestHTTPServiceListenFailure(t *testing.T) {
	server := newMockHTTPServer()
	server.listenErr = errors.New("address in use")
	svc := NewHTTPService(server, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, server.listenErr) {
		t.Errorf("expected listen error, got %v", err)
	}
}

type mockDriver struct {
	startErr error
	stopErr  error
	started  atomic.Int32
	stopped  atomic.Int32
}

func (m *mockDriver) Start(ctx context.Context) error {
	m.started.Add(1)
	return m.startErr
}

func (m *mockDriver) Stop() error {
	m.stopped.Add(1)
	return m.stopErr
}

func TestSchedulerServiceLifecycle(t *testing.T) {
	driver := &mockDriver{}
	svc := NewSchedulerService(driver)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if driver.started.Load() != 1 || driver.stopped.Load() != 1 {
		t.Errorf("expected 1 start and 1 stop, got %d/%d", driver.started.Load(), driver.stopped.Load())
	}
}

func TestSchedulerServiceStartFailure(t *testing.T) {
	driver := &mockDriver{startErr: errors.New("already running")}
	svc := NewSchedulerService(driver)

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("expected error when driver fails to start")
	}
	if driver.stopped.Load() != 0 {
		t.Error("Stop must not be called when Start fails")
	}
}

func TestServiceNames(t *testing.T) {
	if got := NewHTTPService(newMockHTTPServer(), 0).String(); got != "http-server" {
		t.Errorf("unexpected name %q", got)
	}
	if got := NewSchedulerService(&mockDriver{}).String(); got != "recurring-scheduler" {
		t.Errorf("unexpected name %q", got)
	}
}
