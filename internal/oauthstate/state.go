// Package oauthstate issues and consumes the one-time state values that bind
// a consent redirect to the browser session that started it.
package oauthstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teemow/mailcal/internal/google"
	"github.com/teemow/mailcal/internal/logging"
)

// DefaultTTL is how long a consent redirect may take.
const DefaultTTL = 10 * time.Minute

// ErrInvalidState is returned for an unknown, expired, reused or foreign state.
var ErrInvalidState = errors.New("invalid oauth state")

// Entry is what a state value stands for.
type Entry struct {
	SessionID    string              `json:"session_id"`
	Capabilities []google.Capability `json:"capabilities"`
	ExpiresAt    time.Time           `json:"expires_at"`
}

// Store issues and consumes state values. Consume succeeds at most once per value.
type Store interface {
	Issue(ctx context.Context, sessionID string, caps []google.Capability) (string, error)
	Consume(ctx context.Context, state, sessionID string) (*Entry, error)
}

// MemoryStore keeps states in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewMemoryStore returns a MemoryStore. Expired entries are dropped
// periodically until ctx is done.
func NewMemoryStore(ctx context.Context, ttl time.Duration, logger *slog.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &MemoryStore{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logging.WithComponent(logger, "oauthstate"),
	}
	go s.cleanup(ctx)
	return s
}

// Issue creates a state value for sessionID.
func (s *MemoryStore) Issue(_ context.Context, sessionID string, caps []google.Capability) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id cannot be empty")
	}
	state := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[state] = &Entry{
		SessionID:    sessionID,
		Capabilities: append([]google.Capability(nil), caps...),
		ExpiresAt:    s.now().Add(s.ttl),
	}
	return state, nil
}

// Consume returns and removes the entry for state.
func (s *MemoryStore) Consume(_ context.Context, state, sessionID string) (*Entry, error) {
	s.mu.Lock()
	entry, ok := s.entries[state]
	delete(s.entries, state)
	s.mu.Unlock()

	return check(entry, ok, sessionID, s.now())
}

func (s *MemoryStore) cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

func (s *MemoryStore) removeExpired() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for state, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, state)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("removed expired oauth states", slog.Int("count", removed))
	}
}

func check(entry *Entry, ok bool, sessionID string, now time.Time) (*Entry, error) {
	switch {
	case !ok || entry == nil:
		return nil, fmt.Errorf("%w: unknown", ErrInvalidState)
	case now.After(entry.ExpiresAt):
		return nil, fmt.Errorf("%w: expired", ErrInvalidState)
	case entry.SessionID != sessionID:
		return nil, fmt.Errorf("%w: issued for another session", ErrInvalidState)
	}
	return entry, nil
}

const redisKeyPrefix = "mailcal:state:"

// RedisStore keeps states in redis so any instance can finish a consent flow.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore returns a RedisStore on client.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// Issue creates a state value for sessionID.
func (s *RedisStore) Issue(ctx context.Context, sessionID string, caps []google.Capability) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id cannot be empty")
	}
	state := uuid.NewString()
	data, err := json.Marshal(Entry{
		SessionID:    sessionID,
		Capabilities: caps,
		ExpiresAt:    s.now().Add(s.ttl),
	})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, redisKeyPrefix+state, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store oauth state: %w", err)
	}
	return state, nil
}

// Consume atomically reads and deletes the entry for state.
func (s *RedisStore) Consume(ctx context.Context, state, sessionID string) (*Entry, error) {
	data, err := s.client.GetDel(ctx, redisKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return check(nil, false, sessionID, s.now())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load oauth state: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return check(&entry, true, sessionID, s.now())
}
