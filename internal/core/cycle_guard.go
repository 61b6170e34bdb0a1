package core

// cycle_guard.go implements the mutual exclusion used for sync cycles and
// individual tables.
//
// A guard is a one-slot semaphore. Callers never wait for it: a cycle that
// finds the guard held is skipped, not queued. WaitForDrain supports graceful
// shutdown by blocking until the holder releases.

import (
	"context"
	"sync"
	"time"
)

// CycleGuard allows at most one holder at a time.
type CycleGuard struct {
	semaphore chan struct{}

	mu      sync.RWMutex
	since   time.Time
	holding bool
}

// NewCycleGuard creates an unheld guard.
func NewCycleGuard() *CycleGuard {
	return &CycleGuard{semaphore: make(chan struct{}, 1)}
}

// TryAcquire takes the guard without blocking.
// Returns true if acquired; the caller MUST call Release.
func (g *CycleGuard) TryAcquire() bool {
	select {
	case g.semaphore <- struct{}{}:
		g.mu.Lock()
		g.holding = true
		g.since = time.Now()
		g.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees the guard.
// Must be called exactly once for each successful TryAcquire.
func (g *CycleGuard) Release() {
	g.mu.Lock()
	g.holding = false
	g.since = time.Time{}
	g.mu.Unlock()

	<-g.semaphore
}

// Held reports whether the guard is currently taken.
func (g *CycleGuard) Held() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.holding
}

// HeldSince returns when the current holder acquired the guard,
// or the zero time if it is free.
func (g *CycleGuard) HeldSince() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.since
}

// WaitForDrain blocks until the guard is free or ctx is done.
func (g *CycleGuard) WaitForDrain(ctx context.Context) error {
	if !g.Held() {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !g.Held() {
				return nil
			}
		}
	}
}
