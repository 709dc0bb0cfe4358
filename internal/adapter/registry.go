package adapter

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ecotrack/sync-core/internal/config"
)

// Factory creates a backend instance from the loaded configuration.
type Factory func(cfg *config.Config, log *slog.Logger) (DataAdapter, error)

// Descriptor provides metadata about a backend variant.
type Descriptor struct {
	ID          string
	Title       string
	Description string
}

// Registry holds the closed set of backend factories indexed by backend ID.
type Registry struct {
	factories   map[string]Factory
	descriptors map[string]*Descriptor
	mu          sync.RWMutex
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		factories:   make(map[string]Factory),
		descriptors: make(map[string]*Descriptor),
	}
}

// Register adds a factory for the given backend ID.
// Panics if the ID is already registered.
func (r *Registry) Register(id string, desc *Descriptor, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[id]; exists {
		panic(fmt.Sprintf("backend factory already registered: %s", id))
	}
	r.factories[id] = factory
	r.descriptors[id] = desc
}

// Get returns the factory for the given backend ID.
func (r *Registry) Get(id string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[id]
	return factory, ok
}

// Describe returns the descriptor for the given backend ID.
func (r *Registry) Describe(id string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	desc, ok := r.descriptors[id]
	return desc, ok
}

// List returns all registered backend IDs.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}

// Create instantiates the backend selected by the configuration.
func (r *Registry) Create(id string, cfg *config.Config, log *slog.Logger) (DataAdapter, error) {
	factory, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", id)
	}
	return factory(cfg, log)
}

// --- Default Global Registry ---

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global backend registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry.
func Register(id string, desc *Descriptor, factory Factory) {
	defaultRegistry.Register(id, desc, factory)
}

// Create instantiates a backend from the default registry.
func Create(id string, cfg *config.Config, log *slog.Logger) (DataAdapter, error) {
	return defaultRegistry.Create(id, cfg, log)
}
