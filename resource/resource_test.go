package resource

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ceyewan/shardis/pool"
	"github.com/ceyewan/shardis/router"
	"github.com/ceyewan/shardis/testkit"
	"github.com/ceyewan/shardis/topology"
	"github.com/ceyewan/shardis/txn"
)

// countingProvider 统计元数据探测次数，可注入探测失败
type countingProvider struct {
	*pool.Manager
	probes  atomic.Int32
	failing atomic.Bool
}

func (p *countingProvider) DB(ctx context.Context, db *topology.Database) (*gorm.DB, error) {
	p.probes.Add(1)
	if p.failing.Load() {
		return nil, errors.New("probe refused")
	}
	return p.Manager.DB(ctx, db)
}

type fixture struct {
	ctx      context.Context
	provider *countingProvider
	router   router.Router
	meta     topology.TableMeta
	d1, d2   *topology.Database
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d1 := testkit.NewSQLiteDescriptor("d1")
	d2 := testkit.NewSQLiteDescriptor("d2")
	topo, err := topology.New(&topology.Config{Clusters: []topology.ClusterConfig{{
		Name:    "c1",
		Catalog: "app",
		Regions: []topology.RegionConfig{{Capacity: "1-100", Masters: []*topology.Database{d1, d2}}},
	}}})
	require.NoError(t, err)

	rt, err := router.New(topo)
	require.NoError(t, err)

	m, err := pool.New(pool.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	f := &fixture{
		ctx:      context.Background(),
		provider: &countingProvider{Manager: m},
		router:   rt,
		meta:     topology.TableMeta{TableName: "user", ClusterName: "c1", ShardingNum: 3},
	}
	f.d1, _ = topo.Database("d1")
	f.d2, _ = topo.Database("d2")

	// key 2 -> (d1, user2)，key 3 -> (d2, user0)
	f.exec(t, f.d1, "CREATE TABLE user2 (id INTEGER PRIMARY KEY, name TEXT)")
	f.exec(t, f.d2, "CREATE TABLE user0 (id INTEGER PRIMARY KEY, name TEXT)")
	return f
}

func (f *fixture) exec(t *testing.T, db *topology.Database, sql string) {
	t.Helper()
	gdb, err := f.provider.Manager.DB(f.ctx, db)
	require.NoError(t, err)
	require.NoError(t, gdb.Exec(sql).Error)
}

func (f *fixture) count(t *testing.T, db *topology.Database, table string) int64 {
	t.Helper()
	gdb, err := f.provider.Manager.DB(f.ctx, db)
	require.NoError(t, err)
	var n int64
	require.NoError(t, gdb.Table(table).Count(&n).Error)
	return n
}

func (f *fixture) route(t *testing.T, key int) router.Route {
	t.Helper()
	rt, err := f.router.Route(f.meta, router.Key("c1", key), topology.Master)
	require.NoError(t, err)
	return rt
}

func (f *fixture) resolver(t *testing.T, cfg *Config) *Resolver {
	t.Helper()
	r, err := New(f.provider, cfg, WithLogger(testkit.NewLogger()), WithMeter(testkit.NewMeter()))
	require.NoError(t, err)
	return r
}

func insert(t *testing.T, res *Resource, id int, name string) {
	t.Helper()
	require.NoError(t, res.DB().Table(res.Table()).Create(map[string]any{"id": id, "name": name}).Error)
}

func TestResolveCommit(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)

	res, err := r.Resolve(f.ctx, f.route(t, 2))
	require.NoError(t, err)
	assert.Equal(t, "user2", res.Table())
	assert.False(t, res.Enlisted())

	id := res.Identity()
	assert.Equal(t, "c1.d1.1100.user2", id.CachePrefix())
	assert.Equal(t, "sqlite", res.Meta().Dialect)
	assert.Equal(t, "app", res.Meta().Catalog)

	insert(t, res, 2, "alice")
	require.NoError(t, res.Commit(f.ctx))
	assert.ErrorIs(t, res.Commit(f.ctx), ErrAlreadyFinished)
	assert.ErrorIs(t, res.Rollback(f.ctx), ErrAlreadyFinished)
	require.NoError(t, res.Close())
	require.NoError(t, res.Close())
	assert.ErrorIs(t, res.Commit(f.ctx), ErrClosed)

	assert.EqualValues(t, 1, f.count(t, f.d1, "user2"))
}

func TestResolveRollbackAndCloseWithoutDecision(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)

	res, err := r.Resolve(f.ctx, f.route(t, 2))
	require.NoError(t, err)
	insert(t, res, 2, "alice")
	require.NoError(t, res.Rollback(f.ctx))
	require.NoError(t, res.Close())

	res, err = r.Resolve(f.ctx, f.route(t, 2))
	require.NoError(t, err)
	insert(t, res, 8, "bob")
	require.NoError(t, res.Close())

	assert.Zero(t, f.count(t, f.d1, "user2"))
}

func TestFreshConnectionPerResolve(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)

	a, err := r.Resolve(f.ctx, f.route(t, 2))
	require.NoError(t, err)
	defer a.Close()
	b, err := r.Resolve(f.ctx, f.route(t, 2))
	require.NoError(t, err)
	defer b.Close()

	assert.NotSame(t, a.conn, b.conn)
	assert.Equal(t, a.Identity(), b.Identity())
	assert.Same(t, a.entry, b.entry)

	stats, ok := f.provider.Stats("d1")
	require.True(t, ok)
	assert.GreaterOrEqual(t, stats.InUse, 2)
}

func TestIdentityProbedOnce(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)
	rt := f.route(t, 2)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Go(func() {
			res, err := r.Resolve(f.ctx, rt)
			if assert.NoError(t, err) {
				assert.NoError(t, res.Close())
			}
		})
	}
	wg.Wait()

	assert.EqualValues(t, 1, f.provider.probes.Load())
	assert.Equal(t, 1, r.CachedIdentities())
}

func TestProbeFailureNotCached(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)
	rt := f.route(t, 2)

	f.provider.failing.Store(true)
	_, err := r.Resolve(f.ctx, rt)
	assert.ErrorIs(t, err, ErrProbe)
	assert.Zero(t, r.CachedIdentities())

	f.provider.failing.Store(false)
	res, err := r.Resolve(f.ctx, rt)
	require.NoError(t, err)
	require.NoError(t, res.Close())
	assert.EqualValues(t, 2, f.provider.probes.Load())
}

func TestIdentityReclaimedByGC(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, &Config{HotIdentities: -1})

	res, err := r.Resolve(f.ctx, f.route(t, 2))
	require.NoError(t, err)
	require.NoError(t, res.Close())
	res = nil

	assert.Eventually(t, func() bool {
		runtime.GC()
		return r.CachedIdentities() == 0
	}, 5*time.Second, 20*time.Millisecond)

	// 回收后透明地重新探测
	res, err = r.Resolve(f.ctx, f.route(t, 2))
	require.NoError(t, err)
	require.NoError(t, res.Close())
	assert.EqualValues(t, 2, f.provider.probes.Load())
}

func TestPoolExhaustedSurfaces(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)
	f.d1.Pool = topology.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1, WaitTimeout: 50 * time.Millisecond}

	// 连接池在第一次使用时按描述符创建
	m, err := pool.New()
	require.NoError(t, err)
	defer m.Close()
	f.provider.Manager = m
	f.exec(t, f.d1, "CREATE TABLE IF NOT EXISTS user2 (id INTEGER PRIMARY KEY, name TEXT)")

	res, err := r.Resolve(f.ctx, f.route(t, 2))
	require.NoError(t, err)
	defer res.Close()

	_, err = r.Resolve(f.ctx, f.route(t, 2))
	assert.ErrorIs(t, err, pool.ErrPoolExhausted)
}

type failingParticipant struct{ released int }

func (p *failingParticipant) Prepare(context.Context) error  { return errors.New("vote no") }
func (p *failingParticipant) Commit(context.Context) error   { return nil }
func (p *failingParticipant) Rollback(context.Context) error { return nil }
func (p *failingParticipant) Release() error                 { p.released++; return nil }

func TestEnlistedRollbackOnPrepareFailure(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)

	ctx, tx := txn.Begin(f.ctx)
	a, err := r.Resolve(ctx, f.route(t, 2))
	require.NoError(t, err)
	require.True(t, a.Enlisted())

	// 第一个资源准备之后协调器失败
	fp := &failingParticipant{}
	require.NoError(t, tx.Enlist(fp))

	b, err := r.Resolve(ctx, f.route(t, 3))
	require.NoError(t, err)
	assert.Equal(t, "user0", b.Table())

	insert(t, a, 2, "alice")
	insert(t, b, 3, "bob")

	assert.ErrorIs(t, a.Commit(ctx), ErrEnlisted)
	assert.ErrorIs(t, a.Rollback(ctx), ErrEnlisted)
	require.NoError(t, a.Close())

	err = tx.Commit(ctx)
	assert.ErrorIs(t, err, txn.ErrRolledBack)
	assert.Equal(t, 1, fp.released)

	assert.Zero(t, f.count(t, f.d1, "user2"))
	assert.Zero(t, f.count(t, f.d2, "user0"))
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestEnlistedCommit(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)

	ctx, tx := txn.Begin(f.ctx)
	resources, err := r.ResolveAll(ctx, []router.Route{f.route(t, 2), f.route(t, 3)})
	require.NoError(t, err)
	insert(t, resources[0], 2, "alice")
	insert(t, resources[1], 3, "bob")

	require.NoError(t, tx.Commit(ctx))
	assert.EqualValues(t, 1, f.count(t, f.d1, "user2"))
	assert.EqualValues(t, 1, f.count(t, f.d2, "user0"))

	// 事务结束后解析的资源是自治的
	res, err := r.Resolve(ctx, f.route(t, 2))
	require.NoError(t, err)
	assert.False(t, res.Enlisted())
	require.NoError(t, res.Close())
}

func TestEnlistedSurvivesResolveContextCancel(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)

	ctx, tx := txn.Begin(f.ctx)
	callCtx, cancel := context.WithCancel(ctx)
	a, err := r.Resolve(callCtx, f.route(t, 2))
	require.NoError(t, err)
	insert(t, a, 2, "alice")
	cancel()

	b, err := r.Resolve(ctx, f.route(t, 3))
	require.NoError(t, err)
	insert(t, b, 3, "bob")

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, txn.StatusCommitted, tx.Status())
	assert.EqualValues(t, 1, f.count(t, f.d1, "user2"))
	assert.EqualValues(t, 1, f.count(t, f.d2, "user0"))
}

func TestPrepareDetectsFinishedTransaction(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)

	ctx, tx := txn.Begin(f.ctx)
	a, err := r.Resolve(ctx, f.route(t, 2))
	require.NoError(t, err)
	insert(t, a, 2, "alice")

	b, err := r.Resolve(ctx, f.route(t, 3))
	require.NoError(t, err)
	insert(t, b, 3, "bob")

	// 底层事务被驱动提前结束，Resource 自身状态仍是 open
	require.NoError(t, b.db.Rollback().Error)

	err = tx.Commit(ctx)
	assert.ErrorIs(t, err, txn.ErrRolledBack)
	assert.Zero(t, f.count(t, f.d1, "user2"))
	assert.Zero(t, f.count(t, f.d2, "user0"))
}

func TestDo(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, nil)

	err := r.Do(f.ctx, f.route(t, 2), func(res *Resource) error {
		insert(t, res, 2, "alice")
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = r.Do(f.ctx, f.route(t, 2), func(res *Resource) error {
		insert(t, res, 8, "bob")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.EqualValues(t, 1, f.count(t, f.d1, "user2"))

	stats, ok := f.provider.Stats("d1")
	require.True(t, ok)
	assert.Zero(t, stats.InUse)
}
