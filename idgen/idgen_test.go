package idgen

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardis/dlock"
	"github.com/ceyewan/shardis/testkit"
	"github.com/ceyewan/shardis/xerrors"
)

func newMemoryLocker(t *testing.T) dlock.Locker {
	t.Helper()
	l, err := dlock.New(&dlock.Config{Driver: dlock.DriverMemory})
	require.NoError(t, err)
	return l
}

func newAllocator(t *testing.T, store CounterStore, locker dlock.Locker, cfg *Config) *Allocator {
	t.Helper()
	a, err := New(store, locker, cfg, WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter()))
	require.NoError(t, err)
	return a
}

func TestNew(t *testing.T) {
	_, err := New(nil, newMemoryLocker(t), nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	_, err = New(NewMemoryStore(), nil, nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = NewStore(&Config{Driver: "zookeeper"})
	assert.Equal(t, xerrors.CodeConfig, xerrors.GetCode(err))
	_, err = NewStore(&Config{Driver: DriverEtcd})
	assert.ErrorIs(t, err, ErrConnectorNil)
	_, err = NewStore(&Config{Driver: DriverRedis})
	assert.ErrorIs(t, err, ErrConnectorNil)

	s, err := NewStore(nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestConfigDefaults(t *testing.T) {
	c := &Config{Root: "/app/ids/"}
	c.setDefaults()
	assert.Equal(t, "app/ids", c.Root)
	assert.Equal(t, 100, c.BatchSize)
	assert.Equal(t, 3, c.MaxRetries)

	c = &Config{MaxRetries: -1}
	c.setDefaults()
	assert.Equal(t, 0, c.MaxRetries)
}

func TestAllocateBatch_Range(t *testing.T) {
	kit := testkit.NewKit(t)
	store := NewMemoryStore()
	a := newAllocator(t, store, newMemoryLocker(t), nil)

	ids, err := a.AllocateBatch(kit.Ctx, "c1", "user", 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)

	ids, err = a.AllocateBatch(kit.Ctx, "c1", "user", 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 7, 8}, ids)

	c, err := store.Load(kit.Ctx, "c1", "user")
	require.NoError(t, err)
	assert.Equal(t, int64(8), c)

	// 不同计数器相互独立
	ids, err = a.AllocateBatch(kit.Ctx, "c1", "order", 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestAllocate_BufferedFIFO(t *testing.T) {
	kit := testkit.NewKit(t)
	store := NewMemoryStore()
	a := newAllocator(t, store, newMemoryLocker(t), &Config{BatchSize: 10})

	for want := int64(1); want <= 25; want++ {
		id, err := a.Allocate(kit.Ctx, "c1", "user")
		require.NoError(t, err)
		require.Equal(t, want, id)
	}
	assert.Equal(t, 5, a.Buffered("c1", "user"))

	c, err := store.Load(kit.Ctx, "c1", "user")
	require.NoError(t, err)
	assert.Equal(t, int64(30), c, "store is advanced one batch at a time")
}

func TestAllocateBatch_ConcurrentContiguous(t *testing.T) {
	kit := testkit.NewKit(t)
	a := newAllocator(t, NewMemoryStore(), newMemoryLocker(t), nil)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all []int64
	)
	for range 10 {
		wg.Go(func() {
			ids, err := a.AllocateBatch(kit.Ctx, "c1", "user", 100)
			if !assert.NoError(t, err) {
				return
			}
			assert.Len(t, ids, 100)
			assert.True(t, slices.IsSorted(ids))
			assert.Equal(t, ids[0]+99, ids[99], "each batch is contiguous")
			mu.Lock()
			all = append(all, ids...)
			mu.Unlock()
		})
	}
	wg.Wait()

	slices.Sort(all)
	want := make([]int64, 1000)
	for i := range want {
		want[i] = int64(i + 1)
	}
	assert.Equal(t, want, all)
}

func TestAllocate_SharedStoreAcrossAllocators(t *testing.T) {
	kit := testkit.NewKit(t)
	store := NewMemoryStore()
	locker := newMemoryLocker(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for range 4 {
		a := newAllocator(t, store, locker, &Config{BatchSize: 7})
		wg.Go(func() {
			for range 50 {
				id, err := a.Allocate(kit.Ctx, "c1", "user")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				assert.False(t, seen[id], "duplicate id %d", id)
				seen[id] = true
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	assert.Len(t, seen, 200)
}

func TestAllocate_RetriesOnZero(t *testing.T) {
	kit := testkit.NewKit(t)
	store := NewMemoryStore()
	require.NoError(t, store.Store(kit.Ctx, "c1", "user", -3))
	a := newAllocator(t, store, newMemoryLocker(t), &Config{RetryInterval: time.Millisecond})

	ids, err := a.AllocateBatch(kit.Ctx, "c1", "user", 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4, 5, 6, 7}, ids, "range [-2, 2] contains zero and is skipped")
}

func TestAllocate_DegenerateAfterRetries(t *testing.T) {
	kit := testkit.NewKit(t)
	store := NewMemoryStore()
	require.NoError(t, store.Store(kit.Ctx, "c1", "user", -100))
	a := newAllocator(t, store, newMemoryLocker(t), &Config{MaxRetries: -1})

	_, err := a.AllocateBatch(kit.Ctx, "c1", "user", 200)
	assert.ErrorIs(t, err, ErrDegenerateID)
	assert.Equal(t, xerrors.CodeAllocation, xerrors.GetCode(err))
}

func TestAllocate_InvalidRequest(t *testing.T) {
	kit := testkit.NewKit(t)
	a := newAllocator(t, NewMemoryStore(), newMemoryLocker(t), nil)

	_, err := a.AllocateBatch(kit.Ctx, "c1", "user", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = a.Allocate(kit.Ctx, "", "user")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = a.AllocateBatch(kit.Ctx, "c1", "", 1)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

type failingStore struct{ err error }

func (s failingStore) Load(context.Context, string, string) (int64, error) { return 0, s.err }
func (s failingStore) Store(context.Context, string, string, int64) error { return s.err }

type failingLocker struct {
	dlock.Locker
	err error
}

func (l failingLocker) Lock(context.Context, string, ...dlock.LockOption) error { return l.err }

func TestAllocate_FailuresPropagate(t *testing.T) {
	kit := testkit.NewKit(t)
	errStore := errors.New("store down")
	a := newAllocator(t, failingStore{err: errStore}, newMemoryLocker(t), nil)
	_, err := a.Allocate(kit.Ctx, "c1", "user")
	assert.ErrorIs(t, err, errStore)

	// 失败后锁已释放，下一次调用不会卡住
	_, err = a.AllocateBatch(kit.Ctx, "c1", "user", 1)
	assert.ErrorIs(t, err, errStore)

	errLock := errors.New("lock down")
	a = newAllocator(t, NewMemoryStore(), failingLocker{err: errLock}, nil)
	_, err = a.Allocate(kit.Ctx, "c1", "user")
	assert.ErrorIs(t, err, errLock)
	assert.Zero(t, a.Buffered("c1", "user"))
}

func TestParseCounter(t *testing.T) {
	v, err := parseCounter("k", []byte(" 42\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	_, err = parseCounter("k", []byte("forty-two"))
	assert.ErrorIs(t, err, ErrCorruptCounter)
}
