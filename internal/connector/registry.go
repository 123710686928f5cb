package connector

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/nucleus/dq-core/internal/yamlconfig"
)

// Registry holds connector factories indexed by class name.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty connector registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for the given class name.
// Panics if the class name is already registered.
func (r *Registry) Register(className string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[className]; exists {
		panic(fmt.Sprintf("data connector factory already registered: %s", className))
	}
	r.factories[className] = factory
}

// Get returns the factory for the given class name.
func (r *Registry) Get(className string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[className]
	return factory, ok
}

// List returns all registered class names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create instantiates the connector described by cfg.
func (r *Registry) Create(cfg *yamlconfig.DataConnectorConfig, opts Options) (DataConnector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("data connector config is required")
	}
	factory, ok := r.Get(cfg.ClassName)
	if !ok {
		return nil, fmt.Errorf("unknown data connector class: %s", cfg.ClassName)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return factory(cfg, opts)
}

// --- Default Global Registry ---

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global connector registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry.
func Register(className string, factory Factory) {
	defaultRegistry.Register(className, factory)
}
