package core

// commit_limiter.go bounds how many commits run against the executor at once.
//
// Sessions are independent, so several operators may confirm imports for
// different record types at the same moment. The limiter keeps the number of
// in-flight commits at a configurable maximum; a confirm that cannot get a
// slot within maxWait fails with ErrTooManyCommits and leaves its session
// classified.
//
// WaitForDrain supports graceful shutdown by blocking until every in-flight
// commit has returned.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrentCommits is the default limit for parallel commits.
const DefaultMaxConcurrentCommits = 4

// DefaultCommitWait is how long a confirm waits for a slot before rejecting.
const DefaultCommitWait = 10 * time.Second

// CommitLimiter is a counting semaphore over commit executor calls.
type CommitLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	active  int
	drained chan struct{} // closed whenever active drops to zero
}

// NewCommitLimiter allows at most maxConcurrent simultaneous commits.
// Non-positive arguments fall back to the package defaults.
func NewCommitLimiter(maxConcurrent int, maxWait time.Duration) *CommitLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentCommits
	}
	if maxWait <= 0 {
		maxWait = DefaultCommitWait
	}

	drained := make(chan struct{})
	close(drained)

	return &CommitLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		drained: drained,
	}
}

// Acquire waits for a commit slot. It returns ErrTooManyCommits when maxWait
// passes first, or the context error if ctx ends first.
// Every successful Acquire must be paired with one Release.
func (l *CommitLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.enter()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyCommits
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *CommitLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.enter()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *CommitLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.drained)
	}
	l.mu.Unlock()

	<-l.slots
}

func (l *CommitLimiter) enter() {
	l.mu.Lock()
	if l.active == 0 {
		l.drained = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

// ActiveCount returns the number of commits currently holding a slot.
func (l *CommitLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *CommitLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no commit holds a slot or ctx ends.
func (l *CommitLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	drained := l.drained
	l.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CommitLimiterStatus is a point-in-time view of the limiter.
type CommitLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *CommitLimiter) Status() CommitLimiterStatus {
	active := l.ActiveCount()
	return CommitLimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
