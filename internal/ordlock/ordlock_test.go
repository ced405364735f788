package ordlock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExcludesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(context.Background(), Key("ord-1"))
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = release(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.slots)
}

func TestLocalLockerTimesOut(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Lock(context.Background(), Key("ord-1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, Key("ord-1"))
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := locker.Lock(context.Background(), Key("ord-2"))
	require.NoError(t, err)
	require.NoError(t, other(context.Background()))

	require.NoError(t, release(context.Background()))
	require.NoError(t, release(context.Background()))

	again, err := locker.Lock(context.Background(), Key("ord-1"))
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("FURNIDESK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set FURNIDESK_TEST_REDIS_ADDR to run redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client, 2*time.Second)
	key := Key("it-" + time.Now().Format("150405.000000000"))

	release, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, key)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, release(context.Background()))

	again, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, again(context.Background()))
}
