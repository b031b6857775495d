package orchestrator

import (
	"sync"
	"sync/atomic"
)

// handle serialises the owner of a run and carries its cancellation request.
type handle struct {
	sync.Mutex
	cancelled atomic.Bool
}

// registry tracks handles of runs known to this process.
type registry struct {
	mu      sync.Mutex
	handles map[string]*handle
}

func newRegistry() *registry {
	return &registry{handles: make(map[string]*handle)}
}

// get returns the handle of id, creating it when missing.
func (r *registry) get(id string) *handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[id]; ok {
		return existing
	}
	ret := &handle{}
	r.handles[id] = ret
	return ret
}

func (r *registry) delete(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
