package circuitbreaker

import (
	"sort"
	"sync"

	"clinic-console/internal/common/logging"
)

// Manager hands out one named breaker per dependency
type Manager struct {
	breakers map[string]*Breaker
	logger   logging.Logger
	mu       sync.Mutex
}

func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Component("circuitbreaker")
	}
	return &Manager{
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// GetOrCreate returns the breaker registered under name, creating it with
// config on first use
func (m *Manager) GetOrCreate(name string, config Config) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[name]; ok {
		return b
	}
	b := New(name, config, m.logger)
	m.breakers[name] = b
	return b
}

// AllStats returns statistics for every breaker sorted by name
func (m *Manager) AllStats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, b := range m.breakers {
		stats = append(stats, b.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
