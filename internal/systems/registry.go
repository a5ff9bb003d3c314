package systems

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownSystem indicates a lookup for a system id nobody registered.
var ErrUnknownSystem = errors.New("unknown game system")

// Registry maps system-identifier strings to adapters. The active adapter is
// selected once at startup; the orchestrator never branches on system ids.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds an adapter under its own id. Duplicate ids are a wiring bug
// and fail loudly.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("adapter is required")
	}
	id := adapter.ID()
	if id == "" {
		return fmt.Errorf("adapter id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("adapter %q already registered", id)
	}
	r.adapters[id] = adapter
	return nil
}

// Get returns the adapter registered under the given id.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, id)
	}
	return adapter, nil
}

// IDs lists the registered system ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
