// Package jobs runs queued jobs on a pool of workers.
//
// Workers claim the oldest pending job from the store, look up the handler
// registered for its type and record the handler's outcome on the job row.
// Claim, handler and outcome each commit on their own.
package jobs

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// Handler runs one job. A string result is stored as is; any other non-nil
// result is stored JSON-encoded.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Registry maps job types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register binds h to jobType, replacing any earlier binding.
func (r *Registry) Register(jobType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[jobType] = h
}

// Lookup returns the handler of jobType.
func (r *Registry) Lookup(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns the registered job types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
