package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrLimitExceeded is wrapped by Limiter.Increment once the budget is spent.
var ErrLimitExceeded = errors.New("limit exceeded")

// Limiter counts model rounds within one run.
type Limiter struct {
	name  string
	max   int
	count int
	mu    sync.Mutex
}

// NewLimiter creates a limiter allowing max increments; 0 means unlimited.
func NewLimiter(name string, max int) *Limiter {
	return &Limiter{name: name, max: max}
}

// Increment records one use and fails when the budget is exceeded.
func (l *Limiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%s: %w (max %d)", l.name, ErrLimitExceeded, l.max)
	}

	return nil
}

// Count returns the number of recorded uses.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns the uses left, or -1 when unlimited.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1
	}

	return max(l.max-l.count, 0)
}
