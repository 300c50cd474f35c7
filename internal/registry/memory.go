package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps servers in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	servers map[string]Server
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{servers: make(map[string]Server)}
}

// List returns all servers ordered by creation time.
func (m *MemoryStore) List(_ context.Context) ([]Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Server, 0, len(m.servers))
	for _, s := range m.servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Create stores s.
func (m *MemoryStore) Create(_ context.Context, s Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers[s.ID] = s
	return nil
}

// Delete removes the server with id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[id]; !ok {
		return ErrNotFound
	}
	delete(m.servers, id)
	return nil
}
