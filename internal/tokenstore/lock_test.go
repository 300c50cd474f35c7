package tokenstore

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_Exclusive(t *testing.T) {
	_, client := setupRedis(t)
	locker := NewRedisLocker(client, time.Second, 5*time.Millisecond)
	ctx := context.Background()

	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "s1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestRedisLocker_Timeout(t *testing.T) {
	_, client := setupRedis(t)
	locker := NewRedisLocker(client, time.Minute, 5*time.Millisecond)

	release, err := locker.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, client := setupRedis(t)
	locker := NewRedisLocker(client, time.Second, 5*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "s1")
	require.NoError(t, err)

	// the lock expired and another holder took it
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(lockKeyPrefix+"s1", "someone-else"))

	require.NoError(t, release(ctx))
	v, err := mr.Get(lockKeyPrefix + "s1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}
