package router

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shardis/topology"
	"github.com/ceyewan/shardis/xerrors"
)

func db(id string) *topology.Database {
	return &topology.Database{ID: id, Driver: topology.DriverMySQL, Host: id + ".local"}
}

func newTestRouter(t *testing.T, capacity string, masters ...string) Router {
	t.Helper()
	region := topology.RegionConfig{Capacity: capacity}
	var slaves []*topology.Database
	for _, m := range masters {
		region.Masters = append(region.Masters, db(m))
		slaves = append(slaves, db(m+"-s"))
	}
	region.Slaves = [][]*topology.Database{slaves}

	topo, err := topology.New(&topology.Config{Clusters: []topology.ClusterConfig{{
		Name: "c1",
		Global: &topology.GlobalConfig{
			Master: db("g0"),
			Slaves: []*topology.Database{db("g1")},
		},
		Regions: []topology.RegionConfig{region},
	}}})
	require.NoError(t, err)

	r, err := New(topo)
	require.NoError(t, err)
	return r
}

func userMeta(n int) topology.TableMeta {
	return topology.TableMeta{TableName: "user", ClusterName: "c1", ShardingByField: "uid", ShardingNum: n}
}

func TestRouteScenario(t *testing.T) {
	r := newTestRouter(t, "1-100", "d1", "d2")
	meta := userMeta(3)

	rt, err := r.Route(meta, Key("c1", 2), topology.Master)
	require.NoError(t, err)
	assert.Equal(t, "d1", rt.Database.ID)
	assert.Equal(t, 2, rt.TableIndex)
	assert.Equal(t, "user2", rt.PhysicalTable())
	assert.Equal(t, 0, rt.RegionIndex())

	rt, err = r.Route(meta, Key("c1", int64(3)), topology.Master)
	require.NoError(t, err)
	assert.Equal(t, "d2", rt.Database.ID)
	assert.Equal(t, 0, rt.TableIndex)

	// 从库与主库形状一致，落到同一位置
	rt, err = r.Route(meta, Key("c1", 3), topology.Slave(0))
	require.NoError(t, err)
	assert.Equal(t, "d2-s", rt.Database.ID)
	assert.Equal(t, 0, rt.TableIndex)
}

func TestRouteCoverageAndDisjointness(t *testing.T) {
	r := newTestRouter(t, "1-100", "d1", "d2")
	meta := userMeta(5)

	type slot struct {
		db    string
		index int
	}
	seen := make(map[slot]int)
	for v := 1; v <= 100; v++ {
		rt, err := r.Route(meta, Key("c1", v), topology.Master)
		require.NoError(t, err)

		again, err := r.Route(meta, Key("c1", v), topology.Master)
		require.NoError(t, err)
		assert.Equal(t, rt.Database.ID, again.Database.ID)
		assert.Equal(t, rt.TableIndex, again.TableIndex)

		seen[slot{rt.Database.ID, rt.TableIndex}]++
	}

	assert.Len(t, seen, 10)
	for s, n := range seen {
		assert.Equal(t, 10, n, "%v", s)
	}
}

func TestRouteErrors(t *testing.T) {
	r := newTestRouter(t, "1-100", "d1", "d2")
	meta := userMeta(3)

	_, err := r.Route(meta, Key("c1", 101), topology.Master)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, xerrors.CodeRouting, xerrors.GetCode(err))

	_, err = r.Route(meta, Key("c2", 1), topology.Master)
	assert.ErrorIs(t, err, ErrClusterMismatch)

	_, err = r.Route(topology.TableMeta{TableName: "x", ClusterName: "c9", ShardingNum: 2}, Key("c9", 1), topology.Master)
	assert.ErrorIs(t, err, ErrUnknownCluster)

	for _, v := range []any{nil, 0, uint8(0), "", []byte{}, 1.5} {
		_, err = r.Route(meta, Key("c1", v), topology.Master)
		assert.ErrorIs(t, err, ErrInvalidShardKey, "%v", v)
	}

	_, err = r.Route(meta, Key("c1", 1), topology.Slave(1))
	assert.ErrorIs(t, err, ErrNoSuchRole)

	_, err = r.Route(userMeta(-1), Key("c1", 1), topology.Master)
	assert.ErrorIs(t, err, ErrInvalidTableMeta)
}

func TestRouteNegativeAndStringKeys(t *testing.T) {
	r := newTestRouter(t, "1-100000", "d1", "d2")
	meta := userMeta(4)

	pos, err := r.Route(meta, Key("c1", 42), topology.Master)
	require.NoError(t, err)
	neg, err := r.Route(meta, Key("c1", -42), topology.Master)
	require.NoError(t, err)
	assert.Equal(t, pos.Database.ID, neg.Database.ID)
	assert.Equal(t, pos.TableIndex, neg.TableIndex)

	// "abc" 的 Java 哈希为 96354，96354 mod 8 = 2
	rt, err := r.Route(meta, Key("c1", "abc"), topology.Master)
	require.NoError(t, err)
	assert.Equal(t, "d1", rt.Database.ID)
	assert.Equal(t, 2, rt.TableIndex)
}

func TestRouteGlobal(t *testing.T) {
	r := newTestRouter(t, "1-100", "d1", "d2")
	meta := topology.TableMeta{TableName: "config", ClusterName: "c1"}

	rt, err := r.Route(meta, Key("c1", 7), topology.Master)
	require.NoError(t, err)
	assert.True(t, rt.Global)
	assert.Equal(t, "g0", rt.Database.ID)
	assert.Equal(t, "config", rt.PhysicalTable())
	assert.Equal(t, -1, rt.RegionIndex())

	rt, err = r.RouteGlobal(meta, topology.Slave(0))
	require.NoError(t, err)
	assert.Equal(t, "g1", rt.Database.ID)

	_, err = r.RouteGlobal(meta, topology.Slave(3))
	assert.ErrorIs(t, err, ErrNoSuchRole)

	for _, v := range []any{nil, 0, int64(0), "", []byte{}, 1.5} {
		_, err := r.Route(meta, Key("c1", v), topology.Master)
		assert.ErrorIs(t, err, ErrInvalidShardKey, "value %#v", v)
	}
	_, err = r.Route(meta, Key("c2", 7), topology.Master)
	assert.ErrorIs(t, err, ErrClusterMismatch)
}

func TestRouteAll(t *testing.T) {
	r := newTestRouter(t, "1-100", "d1", "d2")

	routes, err := r.RouteAll(userMeta(3), topology.Master)
	require.NoError(t, err)
	require.Len(t, routes, 6)
	assert.Equal(t, "d1", routes[0].Database.ID)
	assert.Equal(t, "user0", routes[0].PhysicalTable())
	assert.Equal(t, "d2", routes[5].Database.ID)
	assert.Equal(t, "user2", routes[5].PhysicalTable())

	routes, err = r.RouteAll(topology.TableMeta{TableName: "config", ClusterName: "c1"}, topology.Master)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.True(t, routes[0].Global)

	_, err = r.RouteAll(userMeta(3), topology.Slave(2))
	assert.ErrorIs(t, err, ErrNoSuchRole)
}

func TestRouteConcurrent(t *testing.T) {
	r := newTestRouter(t, "1-100", "d1", "d2")
	meta := userMeta(5)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Go(func() {
			for v := 1; v <= 100; v++ {
				rt, err := r.Route(meta, Key("c1", v), topology.Master)
				assert.NoError(t, err)
				assert.Equal(t, (v%10)%5, rt.TableIndex)
			}
		})
	}
	wg.Wait()
}
