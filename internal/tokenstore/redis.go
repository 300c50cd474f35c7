package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teemow/mailcal/internal/token"
)

// DefaultKeyPrefix prefixes every token key in redis.
const DefaultKeyPrefix = "mailcal:token:"

// DefaultTTL matches the session cookie lifetime.
const DefaultTTL = 30 * 24 * time.Hour

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
	// TTL defaults to DefaultTTL. Every Replace resets it.
	TTL time.Duration
}

// RedisStore keeps token records in redis.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	sealer *Sealer
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// NewRedisStore returns a store on client. sealer may be nil.
func NewRedisStore(client redis.UniversalClient, opts RedisOptions, sealer *Sealer) *RedisStore {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, sealer: sealer}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Load returns the bundle of sessionID.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*token.Bundle, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	return decode(s.sealer, data)
}

// Replace stores bundle for sessionID and resets its TTL.
func (s *RedisStore) Replace(ctx context.Context, sessionID string, bundle *token.Bundle) error {
	if err := validSessionID(sessionID); err != nil {
		return err
	}
	data, err := encode(s.sealer, bundle)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Delete removes the bundle of sessionID.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Ping checks the redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
