// Showreel - Movie Recommendations with Poster Resolution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/showreel

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type mockServer struct {
	started  chan struct{}
	release  chan struct{}
	shutdown atomic.Bool
}

func newMockServer() *mockServer {
	return &mockServer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (m *mockServer) ListenAndServe() error {
	close(m.started)
	<-m.release
	return errors.New("http: Server closed")
}

func (m *mockServer) Shutdown(_ context.Context) error {
	m.shutdown.Store(true)
	close(m.release)
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newMockServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}

	if !srv.shutdown.Load() {
		t.Error("expected Shutdown to be called")
	}
}

func TestHTTPServerServiceReportsStartupFailure(t *testing.T) {
	failing := &failingServer{err: errors.New("listen tcp: address in use")}
	svc := NewHTTPServerService(failing, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, failing.err) {
		t.Errorf("expected wrapped startup error, got %v", err)
	}
}

type failingServer struct{ err error }

func (f *failingServer) ListenAndServe() error            { return f.err }
func (f *failingServer) Shutdown(_ context.Context) error { return nil }

type countingFlusher struct{ flushes atomic.Int64 }

func (c *countingFlusher) Flush() error {
	c.flushes.Add(1)
	return nil
}

func TestCacheFlushServicePeriodicAndShutdownFlush(t *testing.T) {
	flusher := &countingFlusher{}
	svc := NewCacheFlushService(flusher, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(70 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flush service did not stop")
	}

	// At least two periodic ticks plus the shutdown flush.
	if got := flusher.flushes.Load(); got < 3 {
		t.Errorf("expected >= 3 flushes, got %d", got)
	}
}
