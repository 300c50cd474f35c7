package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailcal/internal/token"
)

// putRaw plants data without encoding.
func (s *MemoryStore) putRaw(sessionID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = data
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store { return NewMemoryStore(nil) })
}

func TestMemoryStore_Sealed(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	raw, err := KeyFromBase64(key)
	require.NoError(t, err)
	sealer, err := NewSealer(raw)
	require.NoError(t, err)

	testStoreContract(t, func(t *testing.T) Store { return NewMemoryStore(sealer) })
}

func TestMemoryStore_Malformed(t *testing.T) {
	s := NewMemoryStore(nil)
	s.putRaw("s1", []byte("{not json"))

	_, err := s.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, token.ErrMalformed)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%5)
			_ = s.Replace(ctx, id, testBundle())
			_, _ = s.Load(ctx, id)
			if i%7 == 0 {
				_ = s.Delete(ctx, id)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 5)
}
