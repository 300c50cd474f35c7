package tokenstore

import (
	"context"
	"sync"

	"github.com/teemow/mailcal/internal/token"
)

// MemoryStore keeps encoded records in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	sealer  *Sealer
}

// NewMemoryStore returns an empty MemoryStore. sealer may be nil.
func NewMemoryStore(sealer *Sealer) *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
		sealer:  sealer,
	}
}

// Load returns the bundle of sessionID.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (*token.Bundle, error) {
	s.mu.RLock()
	data, ok := s.records[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return decode(s.sealer, data)
}

// Replace stores bundle for sessionID.
func (s *MemoryStore) Replace(_ context.Context, sessionID string, bundle *token.Bundle) error {
	if err := validSessionID(sessionID); err != nil {
		return err
	}
	data, err := encode(s.sealer, bundle)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = data
	return nil
}

// Delete removes the bundle of sessionID.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
