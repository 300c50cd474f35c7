package tokenstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailcal/internal/token"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		_, client := setupRedis(t)
		return NewRedisStore(client, RedisOptions{}, nil)
	})
}

func TestRedisStore_KeyAndTTL(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore(client, RedisOptions{KeyPrefix: "test:", TTL: time.Hour}, newTestSealer(t))
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, "s1", testBundle()))
	assert.True(t, mr.Exists("test:s1"))
	assert.Equal(t, time.Hour, mr.TTL("test:s1"))

	raw, err := mr.Get("test:s1")
	require.NoError(t, err)
	assert.NotContains(t, raw, "ya29.access")

	mr.FastForward(2 * time.Hour)
	_, err = s.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Malformed(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore(client, RedisOptions{}, nil)

	require.NoError(t, mr.Set(DefaultKeyPrefix+"s1", `{"refresh_token":"x"}`))
	_, err := s.Load(context.Background(), "s1")
	assert.ErrorIs(t, err, token.ErrMalformed)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	mr, client := setupRedis(t)
	s := NewRedisStore(client, RedisOptions{}, nil)
	mr.Close()

	_, err := s.Load(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Ping(context.Background()))
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	_ = client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), RedisOptions{Addr: mr.Addr()})
	assert.Error(t, err)
}
