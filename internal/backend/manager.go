package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"

	"kirsch-edgemap/internal/kirsch"
)

// Manager is the registry of execution strategies, looked up by name once
// per run.
type Manager struct {
	backends map[string]Backend
	mu       sync.RWMutex
}

func NewManager(backends ...Backend) *Manager {
	m := &Manager{backends: make(map[string]Backend)}
	for _, b := range backends {
		m.Register(b)
	}
	return m
}

// Register adds b, replacing any backend with the same name.
func (m *Manager) Register(b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backends[b.Name()] = b
}

func (m *Manager) Get(name string) (Backend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if b, ok := m.backends[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", kirsch.ErrInvalidParameter, name)
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := lo.Keys(m.backends)
	sort.Strings(names)
	return names
}
