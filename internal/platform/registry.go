// internal/platform/registry.go
package platform

import (
	"fmt"
	"sync"
)

// Adapter bundles the two halves of one platform integration.
type Adapter struct {
	Client    Client
	Registrar Registrar
}

// Registry maps platform names (e.g. "telegram") to adapters so
// configuration can select the platform at startup.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter under the given platform name.
func (r *Registry) Register(name string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = a
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return Adapter{}, fmt.Errorf("no platform adapter registered for: %s", name)
	}
	return a, nil
}
