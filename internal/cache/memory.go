package cache

import (
	"context"
	"sync"

	"github.com/dunamismax/imagekit/internal/domain"
)

// MemoryBackend stores artifacts in an in-process map. Useful for
// tests and single-instance deployments without a durable cache dir.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewMemoryBackend builds an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Artifact)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (Artifact, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.entries[key]
	if !ok {
		return Artifact{}, false, nil
	}
	return Artifact{Bytes: append([]byte(nil), a.Bytes...), Format: a.Format}, true, nil
}

func (m *MemoryBackend) Put(ctx context.Context, key string, data []byte, format domain.Format) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Artifact{Bytes: append([]byte(nil), data...), Format: format}
	return nil
}

func (m *MemoryBackend) Stats(ctx context.Context) (BackendStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := BackendStats{Entries: int64(len(m.entries))}
	for _, a := range m.entries {
		stats.Bytes += int64(len(a.Bytes))
	}
	return stats, nil
}
