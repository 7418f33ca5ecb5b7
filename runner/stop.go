package runner

import "sync"

// StopSignal reports whether a cooperative stop was requested for a thread.
type StopSignal interface {
	IsStopRequested(userID, threadID string) bool
}

// StopRegistry is an in-memory StopSignal. It is safe for concurrent use.
type StopRegistry struct {
	mu    sync.Mutex
	stops map[stopKey]struct{}
}

type stopKey struct {
	userID   string
	threadID string
}

// NewStopRegistry creates an empty registry.
func NewStopRegistry() *StopRegistry {
	return &StopRegistry{stops: make(map[stopKey]struct{})}
}

// Request asks the run on (userID, threadID) to stop.
func (r *StopRegistry) Request(userID, threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops[stopKey{userID, threadID}] = struct{}{}
}

// IsStopRequested implements StopSignal.
func (r *StopRegistry) IsStopRequested(userID, threadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stops[stopKey{userID, threadID}]
	return ok
}

// Clear withdraws a stop request.
func (r *StopRegistry) Clear(userID, threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stops, stopKey{userID, threadID})
}
