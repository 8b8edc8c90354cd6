package shutdown

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// InFlightTracker tracks background work started from request paths so
// graceful shutdown can wait for it to complete
type InFlightTracker struct {
	wg         sync.WaitGroup
	mu         sync.RWMutex
	shutdownCh chan struct{}
	logger     *zap.Logger
	name       string
	closed     bool
}

// NewInFlightTracker creates a new in-flight work tracker
func NewInFlightTracker(name string, logger *zap.Logger) *InFlightTracker {
	return &InFlightTracker{
		shutdownCh: make(chan struct{}),
		logger:     logger,
		name:       name,
	}
}

// Add increments the in-flight work counter.
// Returns false if shutdown has been initiated (don't start new work).
func (ift *InFlightTracker) Add() bool {
	ift.mu.RLock()
	defer ift.mu.RUnlock()
	if ift.closed {
		return false
	}
	ift.wg.Add(1)
	return true
}

// Done decrements the in-flight work counter
func (ift *InFlightTracker) Done() {
	ift.wg.Done()
}

// Go runs fn on a new goroutine as tracked work.
// Returns false without running fn once shutdown has started.
func (ift *InFlightTracker) Go(fn func()) bool {
	if !ift.Add() {
		return false
	}
	go func() {
		defer ift.Done()
		fn()
	}()
	return true
}

// Wait blocks until all tracked work finishes or ctx is done, without
// rejecting new work. Used by tests and by the sweep.
func (ift *InFlightTracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		ift.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown rejects new work and waits for in-flight work to complete
func (ift *InFlightTracker) Shutdown(ctx context.Context) error {
	ift.mu.Lock()
	if !ift.closed {
		ift.closed = true
		close(ift.shutdownCh)
	}
	ift.mu.Unlock()

	ift.logger.Info("Waiting for in-flight work to complete",
		zap.String("tracker", ift.name),
	)

	if err := ift.Wait(ctx); err != nil {
		ift.logger.Warn("Shutdown timeout - some work may be incomplete",
			zap.String("tracker", ift.name),
		)
		return err
	}

	ift.logger.Info("All in-flight work completed",
		zap.String("tracker", ift.name),
	)
	return nil
}

// IsShuttingDown returns true if shutdown has been initiated
func (ift *InFlightTracker) IsShuttingDown() bool {
	select {
	case <-ift.shutdownCh:
		return true
	default:
		return false
	}
}
