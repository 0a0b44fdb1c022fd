package scan

import (
	"sync"
	"sync/atomic"
)

// Registry tracks in-flight runs so a stop request can reach the goroutine
// driving the run. Entries exist only while the run executes.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*atomic.Bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*atomic.Bool)}
}

// register adds a run and returns its stop flag plus a release func the
// orchestrator defers.
func (r *Registry) register(runID string) (*atomic.Bool, func()) {
	flag := &atomic.Bool{}
	r.mu.Lock()
	r.runs[runID] = flag
	r.mu.Unlock()
	return flag, func() {
		r.mu.Lock()
		delete(r.runs, runID)
		r.mu.Unlock()
	}
}

// Stop requests a graceful halt of the given run. It reports whether the run
// was found in flight; stopping an unknown or already finished run is a
// no-op.
func (r *Registry) Stop(runID string) bool {
	r.mu.Lock()
	flag, ok := r.runs[runID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	flag.Store(true)
	return true
}

// Active reports whether the run is currently executing.
func (r *Registry) Active(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.runs[runID]
	return ok
}
