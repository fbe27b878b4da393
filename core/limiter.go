package core

import (
	"fmt"
	"sync"
)

// ActionLimiter enforces a maximum number of actions executed per turn.
type ActionLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewActionLimiter creates a new limiter with a max number of actions.
// If max == 0, unlimited actions are allowed.
func NewActionLimiter(max int) *ActionLimiter {
	return &ActionLimiter{max: max}
}

// Increment increases the action counter and returns an error wrapping
// ErrLoopGuardTripped if the limit is exceeded.
func (l *ActionLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%w: exceeded max actions per turn: %d", ErrLoopGuardTripped, l.max)
	}

	return nil
}

// Count returns the number of actions counted so far.
func (l *ActionLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many actions are left before hitting the limit.
func (l *ActionLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1 // unlimited
	}

	return l.max - l.count
}
