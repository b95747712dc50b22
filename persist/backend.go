package persist

import (
	"context"
	"errors"
	"sync"
)

// ErrNoRecord is returned by Backend.Load when nothing is stored under the
// namespace. It is the expected cold-start state.
var ErrNoRecord = errors.New("persist: no record")

// Backend stores one opaque record per namespace.
type Backend interface {
	Load(ctx context.Context, namespace string) ([]byte, error)
	Save(ctx context.Context, namespace string, record []byte) error
	Delete(ctx context.Context, namespace string) error
	Close() error
}

// MemoryBackend keeps records in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string][]byte
	writes  int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

func (m *MemoryBackend) Load(_ context.Context, ns string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.records[ns]
	if !ok {
		return nil, ErrNoRecord
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryBackend) Save(_ context.Context, ns string, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[ns] = append([]byte(nil), record...)
	m.writes++
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, ns string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, ns)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// Writes reports how many Save calls succeeded.
func (m *MemoryBackend) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
