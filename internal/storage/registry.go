package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"clinic-console/internal/common/errors"
)

// Registry maps DATABASE_TYPE values to the backend that opens them. Backends
// register from init; a binary opts into a driver with a blank import.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]StorageFactory
}

func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]StorageFactory)}
}

// Register adds factory under factory.GetType() and panics on a duplicate
func (r *Registry) Register(factory StorageFactory) {
	storageType := factory.GetType()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.backends[storageType]; dup {
		panic("storage: Register called twice for " + storageType)
	}
	r.backends[storageType] = factory
}

// Open validates config and opens the backend named by config.GetType().
// "postgresql" is accepted as an alias for "postgres".
func (r *Registry) Open(config StorageConfig) (Storage, error) {
	storageType := config.GetType()
	if storageType == "postgresql" {
		storageType = "postgres"
	}

	r.mu.RLock()
	factory, ok := r.backends[storageType]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("database type %q has no backend (available: %s; is the driver package imported?)",
			storageType, strings.Join(r.Types(), ", ")))
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s storage config: %v", storageType, err))
	}
	return factory.Create(config)
}

// Types lists the registered database types in name order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.backends))
	for storageType := range r.backends {
		types = append(types, storageType)
	}
	sort.Strings(types)
	return types
}

var DefaultRegistry = NewRegistry()

func Register(factory StorageFactory) {
	DefaultRegistry.Register(factory)
}

func Open(config StorageConfig) (Storage, error) {
	return DefaultRegistry.Open(config)
}
