package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStepLimitExceeded is returned once a run executes more nodes than allowed.
var ErrStepLimitExceeded = errors.New("step limit exceeded")

// StepLimiter enforces a maximum number of node executions per run. It guards
// against routing loops (e.g. a leader that never answers FINISH).
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a new limiter. If max == 0, unlimited steps are allowed.
func NewStepLimiter(max int) *StepLimiter {
	return &StepLimiter{max: max}
}

// Increment records a step and returns an error wrapping ErrStepLimitExceeded
// when the limit is exceeded.
func (l *StepLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%w: %d", ErrStepLimitExceeded, l.max)
	}

	return nil
}

// Count returns the number of steps taken so far.
func (l *StepLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many steps are left, or -1 when unlimited.
func (l *StepLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1
	}

	return l.max - l.count
}
