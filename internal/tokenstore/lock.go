package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a lock could not be acquired before the
// context ended.
var ErrLockTimeout = errors.New("timed out waiting for lock")

// Locker provides mutual exclusion across processes.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx ends. The returned
	// function releases it.
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

const (
	// DefaultLockTTL bounds how long a crashed holder can block others.
	DefaultLockTTL = 30 * time.Second
	// DefaultLockRetry is the polling interval while waiting for a lock.
	DefaultLockRetry = 50 * time.Millisecond
	lockKeyPrefix    = "mailcal:lock:"
)

// releaseScript deletes the lock only when it still carries our value.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker returns a locker on client. Zero durations take the defaults.
func NewRedisLocker(client redis.UniversalClient, ttl, retry time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if retry <= 0 {
		retry = DefaultLockRetry
	}
	return &RedisLocker{client: client, ttl: ttl, retry: retry}
}

// Acquire takes the lock for key.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	lockKey := lockKeyPrefix + key
	value := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, value, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				return releaseScript.Run(ctx, l.client, []string{lockKey}, value).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}
