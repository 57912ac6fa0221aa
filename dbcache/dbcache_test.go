package dbcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardis/cache"
	"github.com/ceyewan/shardis/resource"
	"github.com/ceyewan/shardis/testkit"
	"github.com/ceyewan/shardis/topology"
)

type user struct {
	ID   int64  `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

var (
	user2 = resource.Identity{Cluster: "c1", DatabaseID: "d1", Table: "user", TableIndex: 2, RangeStart: 1, RangeEnd: 100}
	user0 = resource.Identity{Cluster: "c1", DatabaseID: "d2", Table: "user", TableIndex: 0, RangeStart: 1, RangeEnd: 100}
	conf  = resource.Identity{Cluster: "c1", DatabaseID: "g0", Table: "config", TableIndex: -1, Global: true}
)

func newCache(t *testing.T) cache.Cache {
	c, err := cache.New(&cache.Config{Driver: cache.DriverMemory})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "c1.d1.1100.user2.7", rowKey(user2, int64(7)))
	assert.Equal(t, "c1.d1.1100.user2.count", countKey(user2))
	assert.Equal(t, "c1.d1.1100.user2.gen", generationKey(user2))
	assert.Equal(t, "c1.d1.1100.user2.5."+WhereHash("age > 1"), queryKey(user2, 5, "age > 1"))
	assert.Equal(t, "c1.config.k", rowKey(conf, "k"))
	assert.Equal(t, "c1.config.count", countKey(conf))

	slave := user2
	slave.Role = topology.Slave(0)
	assert.Equal(t, rowKey(user2, 1), rowKey(slave, 1), "master and slaves share cache entries")
}

func TestWhereHash(t *testing.T) {
	assert.Equal(t, WhereHash("id = 1"), WhereHash("id = 1"))
	assert.NotEqual(t, WhereHash("id = 1"), WhereHash("id = 2"))
	assert.Regexp(t, "^[0-9a-f]+$", WhereHash("name = 'alice'"))
}

func TestPrimary_Rows(t *testing.T) {
	kit := testkit.NewKit(t)
	p, err := NewPrimary(newCache(t), nil, WithLogger(kit.Logger), WithMeter(kit.Meter))
	require.NoError(t, err)

	p.PutRow(kit.Ctx, user2, int64(7), user{ID: 7, Name: "alice"})

	var got user
	require.True(t, p.GetRow(kit.Ctx, user2, int64(7), &got))
	assert.Equal(t, "alice", got.Name)
	assert.False(t, p.GetRow(kit.Ctx, user0, int64(7), &got), "identities are isolated")

	p.RemoveRow(kit.Ctx, user2, int64(7))
	assert.False(t, p.GetRow(kit.Ctx, user2, int64(7), &got))

	p.PutRows(kit.Ctx, user2,
		Row{PK: 1, Value: user{ID: 1, Name: "a"}},
		Row{PK: 3, Value: user{ID: 3, Name: "c"}},
	)
	var u1, u2, u3 user
	found := p.GetRows(kit.Ctx, user2, []any{1, 2, 3}, []any{&u1, &u2, &u3})
	assert.Equal(t, []bool{true, false, true}, found)
	assert.Equal(t, "c", u3.Name)

	p.RemoveRows(kit.Ctx, user2, 1, 3)
	found = p.GetRows(kit.Ctx, user2, []any{1, 3}, []any{&u1, &u3})
	assert.Equal(t, []bool{false, false}, found)
}

func TestPrimary_RowTTL(t *testing.T) {
	kit := testkit.NewKit(t)
	p, err := NewPrimary(newCache(t), &Config{RowTTL: 50 * time.Millisecond})
	require.NoError(t, err)

	p.PutRow(kit.Ctx, user2, 1, user{ID: 1})
	assert.Eventually(t, func() bool {
		var u user
		return !p.GetRow(kit.Ctx, user2, 1, &u)
	}, 3*time.Second, 20*time.Millisecond)
}

func TestPrimary_Counts(t *testing.T) {
	kit := testkit.NewKit(t)
	p, err := NewPrimary(newCache(t), nil)
	require.NoError(t, err)

	assert.Equal(t, CountUnknown, p.GetCount(kit.Ctx, user2))

	// 未缓存时增减不会凭空产生行数
	p.IncrCount(kit.Ctx, user2)
	p.DecrCount(kit.Ctx, user2)
	assert.Equal(t, CountUnknown, p.GetCount(kit.Ctx, user2))

	p.SetCount(kit.Ctx, user2, 10)
	p.IncrCount(kit.Ctx, user2)
	p.IncrCount(kit.Ctx, user2)
	assert.Equal(t, int64(12), p.GetCount(kit.Ctx, user2))
	p.DecrCount(kit.Ctx, user2)
	p.DecrCount(kit.Ctx, user2)
	assert.Equal(t, int64(10), p.GetCount(kit.Ctx, user2))

	p.SetCount(kit.Ctx, user2, 0)
	assert.Equal(t, int64(0), p.GetCount(kit.Ctx, user2))

	p.RemoveCount(kit.Ctx, user2)
	assert.Equal(t, CountUnknown, p.GetCount(kit.Ctx, user2))
}

func TestSecondary_GenerationalInvalidation(t *testing.T) {
	kit := testkit.NewKit(t)
	c := newCache(t)
	s, err := NewSecondary(c, nil, WithLogger(kit.Logger), WithMeter(kit.Meter))
	require.NoError(t, err)

	where := "age > 18"
	rows := []user{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
	s.Put(kit.Ctx, user2, where, rows)

	var got []user
	require.True(t, s.Get(kit.Ctx, user2, where, &got))
	assert.Equal(t, rows, got)

	gen, err := c.GetInt(kit.Ctx, generationKey(user2))
	require.NoError(t, err)
	assert.Positive(t, gen)
	oldKey := queryKey(user2, gen, where)

	s.InvalidateAll(kit.Ctx, user2)
	assert.False(t, s.Get(kit.Ctx, user2, where, &got))

	// 旧代条目没有被删除，只是不再可达
	ok, err := c.Has(kit.Ctx, oldKey)
	require.NoError(t, err)
	assert.True(t, ok)

	next, err := c.GetInt(kit.Ctx, generationKey(user2))
	require.NoError(t, err)
	assert.Equal(t, gen+1, next)

	// 其它物理表不受影响
	s.Put(kit.Ctx, user0, where, rows)
	s.InvalidateAll(kit.Ctx, user2)
	assert.True(t, s.Get(kit.Ctx, user0, where, &got))
}

func TestSecondary_LostGenerationNeverRewinds(t *testing.T) {
	kit := testkit.NewKit(t)
	c := newCache(t)
	s, err := NewSecondary(c, nil)
	require.NoError(t, err)

	base := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return base }
	s.Put(kit.Ctx, user2, "w", []user{{ID: 1}})
	first, err := c.GetInt(kit.Ctx, generationKey(user2))
	require.NoError(t, err)
	assert.Equal(t, base.UnixNano(), first)

	// 代数丢失，重新播种的值大于此前用过的任何代数
	require.NoError(t, c.Delete(kit.Ctx, generationKey(user2)))
	s.now = func() time.Time { return base.Add(time.Second) }
	s.InvalidateAll(kit.Ctx, user2)

	second, err := c.GetInt(kit.Ctx, generationKey(user2))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	var got []user
	assert.False(t, s.Get(kit.Ctx, user2, "w", &got))
}

func TestSecondary_QueryTTL(t *testing.T) {
	kit := testkit.NewKit(t)
	s, err := NewSecondary(newCache(t), &Config{QueryTTL: 50 * time.Millisecond})
	require.NoError(t, err)

	s.Put(kit.Ctx, conf, "1=1", []string{"x"})
	assert.Eventually(t, func() bool {
		var got []string
		return !s.Get(kit.Ctx, conf, "1=1", &got)
	}, 3*time.Second, 20*time.Millisecond)
}

// brokenCache 模拟缓存后端不可用
type brokenCache struct {
	cache.Cache
}

var errDown = errors.New("backend down")

func (brokenCache) Set(context.Context, string, any, time.Duration) error { return errDown }
func (brokenCache) Get(context.Context, string, any) error { return errDown }
func (brokenCache) MGet(context.Context, []string, []any) ([]bool, error) {
	return nil, errDown
}
func (brokenCache) Delete(context.Context, string) error { return errDown }
func (brokenCache) MDelete(context.Context, ...string) error { return errDown }
func (brokenCache) SetInt(context.Context, string, int64, time.Duration) error { return errDown }
func (brokenCache) GetInt(context.Context, string) (int64, error) { return 0, errDown }
func (brokenCache) IncrBy(context.Context, string, int64) (int64, error) { return 0, errDown }
func (brokenCache) SetNX(context.Context, string, int64, time.Duration) (bool, error) {
	return false, errDown
}

func TestFailuresAreSwallowed(t *testing.T) {
	kit := testkit.NewKit(t)
	p, err := NewPrimary(brokenCache{}, nil, WithLogger(kit.Logger))
	require.NoError(t, err)
	s, err := NewSecondary(brokenCache{}, nil, WithLogger(kit.Logger))
	require.NoError(t, err)

	var u user
	assert.NotPanics(t, func() {
		p.PutRow(kit.Ctx, user2, 1, u)
		p.RemoveRow(kit.Ctx, user2, 1)
		p.RemoveRows(kit.Ctx, user2, 1, 2)
		p.SetCount(kit.Ctx, user2, 1)
		p.IncrCount(kit.Ctx, user2)
		p.DecrCount(kit.Ctx, user2)
		p.RemoveCount(kit.Ctx, user2)
		s.Put(kit.Ctx, user2, "w", []user{u})
		s.InvalidateAll(kit.Ctx, user2)
	})
	assert.False(t, p.GetRow(kit.Ctx, user2, 1, &u))
	assert.Equal(t, []bool{false, false}, p.GetRows(kit.Ctx, user2, []any{1, 2}, []any{&u, &u}))
	assert.Equal(t, CountUnknown, p.GetCount(kit.Ctx, user2))
	assert.False(t, s.Get(kit.Ctx, user2, "w", &[]user{}))
}

func TestNewRequiresCache(t *testing.T) {
	_, err := NewPrimary(nil, nil)
	assert.Error(t, err)
	_, err = NewSecondary(nil, nil)
	assert.Error(t, err)
}
