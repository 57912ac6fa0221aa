package dlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardis/testkit"
	"github.com/ceyewan/shardis/xerrors"
)

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrConfigNil)

	_, err = New(&Config{})
	assert.Equal(t, xerrors.CodeConfig, xerrors.GetCode(err))

	_, err = New(&Config{Driver: "zookeeper"})
	assert.Equal(t, xerrors.CodeConfig, xerrors.GetCode(err))

	_, err = New(&Config{Driver: DriverRedis})
	assert.ErrorIs(t, err, ErrConnectorNil)

	_, err = New(&Config{Driver: DriverEtcd})
	assert.ErrorIs(t, err, ErrConnectorNil)

	l, err := New(&Config{Driver: DriverMemory}, WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter()))
	require.NoError(t, err)
	assert.NoError(t, l.Close())
}

func TestConfigDefaults(t *testing.T) {
	c := &Config{Driver: DriverEtcd}
	c.setDefaults()
	assert.Equal(t, "/shardis/lock/", c.Prefix)
	assert.Equal(t, 10*time.Second, c.DefaultTTL)

	c = &Config{Driver: DriverRedis, Prefix: "app:"}
	c.setDefaults()
	assert.Equal(t, "app:", c.Prefix)

	assert.Equal(t, 3*time.Second, c.lockOptions([]LockOption{WithTTL(3 * time.Second)}).ttl)
	assert.Equal(t, c.DefaultTTL, c.lockOptions([]LockOption{WithTTL(-1)}).ttl)
}

func newMemoryLocker(t *testing.T) Locker {
	l, err := New(&Config{Driver: DriverMemory}, WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestMemoryLocker(t *testing.T) {
	// memory Locker 只在实例内互斥，所有调用方共享同一个实例
	shared := newMemoryLocker(t)
	runSuite(t, func(*testing.T) Locker { return shared })
}

func TestMemoryLocker_SharedWaits(t *testing.T) {
	kit := testkit.NewKit(t)
	l := newMemoryLocker(t)

	require.NoError(t, l.Lock(kit.Ctx, "k"))
	acquired := make(chan struct{})
	go func() {
		assert.NoError(t, l.Lock(kit.Ctx, "k"))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock must wait for Unlock")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, l.Unlock(kit.Ctx, "k"))
	<-acquired
	require.NoError(t, l.Unlock(kit.Ctx, "k"))
}

// runSuite 各后端共用的行为检查，newLocker 每次返回一个独立的 Locker 实例
func runSuite(t *testing.T, newLocker func(t *testing.T) Locker) {
	t.Run("lock unlock", func(t *testing.T) {
		kit := testkit.NewKit(t)
		l := newLocker(t)
		key := "k:" + testkit.NewID()

		require.NoError(t, l.Lock(kit.Ctx, key))
		require.NoError(t, l.Unlock(kit.Ctx, key))
		require.NoError(t, l.Lock(kit.Ctx, key), "lock is reusable after unlock")
		require.NoError(t, l.Unlock(kit.Ctx, key))
	})

	t.Run("unlock not held", func(t *testing.T) {
		kit := testkit.NewKit(t)
		l := newLocker(t)
		assert.ErrorIs(t, l.Unlock(kit.Ctx, "never:"+testkit.NewID()), ErrLockNotHeld)
	})

	t.Run("try lock contention", func(t *testing.T) {
		kit := testkit.NewKit(t)
		a, b := newLocker(t), newLocker(t)
		key := "k:" + testkit.NewID()

		ok, err := a.TryLock(kit.Ctx, key)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = b.TryLock(kit.Ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, a.Unlock(kit.Ctx, key))
		ok, err = b.TryLock(kit.Ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, b.Unlock(kit.Ctx, key))
	})

	t.Run("lock respects context", func(t *testing.T) {
		kit := testkit.NewKit(t)
		a, b := newLocker(t), newLocker(t)
		key := "k:" + testkit.NewID()

		require.NoError(t, a.Lock(kit.Ctx, key))
		defer func() { _ = a.Unlock(kit.Ctx, key) }()

		ctx, cancel := context.WithTimeout(kit.Ctx, 200*time.Millisecond)
		defer cancel()
		err := b.Lock(ctx, key)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("mutual exclusion", func(t *testing.T) {
		kit := testkit.NewKit(t)
		key := "k:" + testkit.NewID()

		var (
			wg      sync.WaitGroup
			inside  atomic.Int32
			maxSeen atomic.Int32
			counter atomic.Int32
		)
		for range 5 {
			l := newLocker(t)
			wg.Go(func() {
				for range 5 {
					if !assert.NoError(t, l.Lock(kit.Ctx, key)) {
						return
					}
					n := inside.Add(1)
					if n > maxSeen.Load() {
						maxSeen.Store(n)
					}
					counter.Add(1)
					inside.Add(-1)
					assert.NoError(t, l.Unlock(kit.Ctx, key))
				}
			})
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxSeen.Load())
		assert.Equal(t, int32(25), counter.Load())
	})
}
