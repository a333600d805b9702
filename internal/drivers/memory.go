package drivers

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryDriver is an in-process storage driver, local by definition. It
// backs tests and gives the gateway a working driver without depending on
// a filesystem or network round trip.
type MemoryDriver struct {
	name string
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryDriver constructs a MemoryDriver registered under name.
func NewMemoryDriver(name string) *MemoryDriver {
	return &MemoryDriver{name: name, data: make(map[string][]byte)}
}

// Name implements Driver.
func (m *MemoryDriver) Name() string { return m.name }

// Local implements Driver. Memory storage is always local.
func (m *MemoryDriver) Local() bool { return true }

func (m *MemoryDriver) url(id string) string {
	return fmt.Sprintf("mem://%s/%s", m.name, id)
}

// URLFor implements Driver.
func (m *MemoryDriver) URLFor(id string) string { return m.url(id) }

// Owns implements Driver.
func (m *MemoryDriver) Owns(url string) bool {
	return strings.HasPrefix(url, fmt.Sprintf("mem://%s/", m.name))
}

// Get implements Driver.
func (m *MemoryDriver) Get(_ context.Context, url string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[url]
	if !ok {
		return nil, fmt.Errorf("memory driver %s: no object at %s", m.name, url)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Put implements Driver.
func (m *MemoryDriver) Put(_ context.Context, id string, data []byte) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	url := m.url(id)
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[url] = stored
	return []string{url}, nil
}

// Delete implements Driver.
func (m *MemoryDriver) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, m.url(id))
	return nil
}
