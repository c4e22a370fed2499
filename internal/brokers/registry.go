package brokers

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"clinic-console/internal/common/errors"
)

// Registry holds the publishers CTI events can be exported through, keyed by
// the EXPORT_BROKER value each one answers to. Backends add themselves from
// init, so export only has to import the subpackages.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]PublisherFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]PublisherFactory)}
}

// Register adds factory under factory.GetType(). Registering a type twice is a
// wiring mistake and panics, as database/sql.Register does.
func (r *Registry) Register(factory PublisherFactory) {
	brokerType := factory.GetType()
	if brokerType == "" {
		panic("brokers: Register called with an empty broker type")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[brokerType]; dup {
		panic("brokers: Register called twice for " + brokerType)
	}
	r.factories[brokerType] = factory
}

// Create builds the publisher for config.GetType() after validating config.
// Unknown types and invalid settings are both reported as config errors since
// they can only come from the environment.
func (r *Registry) Create(config BrokerConfig) (Publisher, error) {
	brokerType := config.GetType()

	r.mu.RLock()
	factory, ok := r.factories[brokerType]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("export broker %q is not registered (available: %s)",
			brokerType, strings.Join(r.Types(), ", ")))
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("invalid %s export config: %v", brokerType, err))
	}
	return factory.Create(config)
}

// Types lists the registered broker types in name order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for brokerType := range r.factories {
		types = append(types, brokerType)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) Has(brokerType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[brokerType]
	return ok
}

var DefaultRegistry = NewRegistry()

func Register(factory PublisherFactory) {
	DefaultRegistry.Register(factory)
}

func Create(config BrokerConfig) (Publisher, error) {
	return DefaultRegistry.Create(config)
}

func Types() []string {
	return DefaultRegistry.Types()
}
