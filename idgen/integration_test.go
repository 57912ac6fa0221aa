package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardis/dlock"
	"github.com/ceyewan/shardis/testkit"
)

func TestEtcdStore_Integration(t *testing.T) {
	conn := testkit.NewEtcdConnector(t)
	kit := testkit.NewKit(t)
	root := "it-" + testkit.NewID()

	store, err := NewStore(&Config{Driver: DriverEtcd, Root: root}, WithEtcdConnector(conn))
	require.NoError(t, err)

	c, err := store.Load(kit.Ctx, "c1", "user")
	require.NoError(t, err)
	assert.Zero(t, c)

	// 首次读取即创建节点
	resp, err := conn.GetClient().Get(kit.Ctx, "/"+root+"/c1/user")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.Equal(t, "0", string(resp.Kvs[0].Value))

	require.NoError(t, store.Store(kit.Ctx, "c1", "user", 300))
	resp, err = conn.GetClient().Get(kit.Ctx, "/"+root+"/c1/user")
	require.NoError(t, err)
	assert.Equal(t, "300", string(resp.Kvs[0].Value))
}

func TestEtcdAllocator_ConcurrentProcesses_Integration(t *testing.T) {
	conn := testkit.NewEtcdConnector(t)
	kit := testkit.NewKit(t)
	root := "it-" + testkit.NewID()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all = make(map[int64]bool)
	)
	// 每个分配器有自己的 etcd session，模拟多个进程
	for range 5 {
		locker, err := dlock.New(&dlock.Config{Driver: dlock.DriverEtcd}, dlock.WithEtcdConnector(conn))
		require.NoError(t, err)
		t.Cleanup(func() { _ = locker.Close() })
		store := NewEtcdStore(conn.GetClient(), root)
		a := newAllocator(t, store, locker, &Config{BatchSize: 10})

		wg.Go(func() {
			for range 2 {
				ids, err := a.AllocateBatch(kit.Ctx, "c1", "user", 100)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				for _, id := range ids {
					assert.False(t, all[id], "duplicate id %d", id)
					all[id] = true
				}
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	assert.Len(t, all, 1000)
	for id := int64(1); id <= 1000; id++ {
		assert.True(t, all[id], "missing id %d", id)
	}
}

func TestRedisAllocator_Integration(t *testing.T) {
	conn := testkit.NewRedisConnector(t)
	kit := testkit.NewKit(t)
	root := "it:" + testkit.NewID()

	store, err := NewStore(&Config{Driver: DriverRedis, Root: root}, WithRedisConnector(conn))
	require.NoError(t, err)
	locker, err := dlock.New(&dlock.Config{Driver: dlock.DriverRedis}, dlock.WithRedisConnector(conn))
	require.NoError(t, err)
	a := newAllocator(t, store, locker, &Config{BatchSize: 3})

	for want := int64(1); want <= 7; want++ {
		id, err := a.Allocate(kit.Ctx, "c1", "user")
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	raw, err := conn.GetClient().Get(kit.Ctx, root+":c1:user").Result()
	require.NoError(t, err)
	assert.Equal(t, "9", raw)
}
