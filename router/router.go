// Package router 将逻辑表与分片键映射到物理库和物理表下标。
//
// 路由是拓扑快照上的纯函数：无锁、无 I/O，相同输入总是得到相同输出。
//
//	total      = ShardingNum × len(databases(role))
//	slot       = v mod total
//	dbIndex    = slot / ShardingNum
//	tableIndex = slot mod ShardingNum
//
// 区域按配置顺序扫描，第一个容量区间包含 v 的区域胜出；没有区域覆盖 v 时返回 ErrOutOfRange，
// 不会退回到任何默认区域。
package router

import (
	"context"
	"strconv"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
	"github.com/ceyewan/shardis/topology"
	"github.com/ceyewan/shardis/xerrors"
)

// Router 分片路由器，并发安全
type Router interface {
	// Route 路由一个分片键；全局表直接返回全局库
	Route(meta topology.TableMeta, key ShardKey, role topology.Role) (Route, error)

	// RouteGlobal 返回全局表所在的库：主库或第 N 个全局从库
	RouteGlobal(meta topology.TableMeta, role topology.Role) (Route, error)

	// RouteAll 返回所有区域中该角色下的每个 (库, 表下标)，用于全表扫描与计数
	RouteAll(meta topology.TableMeta, role topology.Role) ([]Route, error)

	// Topology 返回路由使用的拓扑快照
	Topology() *topology.Topology
}

// Route 一次路由的结果
type Route struct {
	Cluster  *topology.Cluster
	Region   *topology.Region // 全局表为 nil
	Database *topology.Database
	Role     topology.Role

	// Table 逻辑表名
	Table string
	// TableIndex 物理表下标，全局表为 -1
	TableIndex int
	Global     bool
}

// RegionIndex 区域下标，全局表为 -1
func (r Route) RegionIndex() int {
	if r.Region == nil {
		return -1
	}
	return r.Region.Index
}

// PhysicalTable 物理表名：全局表为逻辑表名，分片表为逻辑表名加下标
func (r Route) PhysicalTable() string {
	if r.Global {
		return r.Table
	}
	return PhysicalTableName(r.Table, r.TableIndex)
}

// PhysicalTableName 分片物理表名，例如 user3
func PhysicalTableName(table string, index int) string {
	return table + strconv.Itoa(index)
}

type router struct {
	topo   *topology.Topology
	logger clog.Logger
	routes metrics.Counter
}

// Option 路由器选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 设置日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("router")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// New 创建路由器
func New(topo *topology.Topology, opts ...Option) (Router, error) {
	if topo == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "router: topology is nil")
	}
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	routes, err := o.meter.Counter("shardis_route_total", "Shard routing decisions")
	if err != nil {
		return nil, xerrors.Wrap(err, "router: create counter")
	}
	return &router{topo: topo, logger: o.logger, routes: routes}, nil
}

func (r *router) Topology() *topology.Topology { return r.topo }

func (r *router) Route(meta topology.TableMeta, key ShardKey, role topology.Role) (rt Route, err error) {
	defer func() { r.observe(meta.ClusterName, err) }()

	if key.ClusterName != meta.ClusterName {
		return Route{}, xerrors.Wrapf(ErrClusterMismatch, "key %q, table %s in %q",
			key.ClusterName, meta.TableName, meta.ClusterName)
	}
	if meta.ShardingNum < 0 {
		return Route{}, xerrors.Wrapf(ErrInvalidTableMeta, "table %s: sharding num %d", meta.TableName, meta.ShardingNum)
	}
	cluster, ok := r.topo.Cluster(meta.ClusterName)
	if !ok {
		return Route{}, xerrors.Wrapf(ErrUnknownCluster, "%q", meta.ClusterName)
	}
	// 全局表不使用键值定位，但键值本身仍需合法
	v, err := Normalize(key.Value, cluster.Hash)
	if err != nil {
		return Route{}, err
	}
	if meta.IsGlobal() {
		return r.global(cluster, meta, role)
	}
	region, ok := cluster.RegionFor(v)
	if !ok {
		return Route{}, xerrors.Wrapf(ErrOutOfRange, "cluster %q: value %d", cluster.Name, v)
	}
	dbs, ok := region.Databases(role)
	if !ok {
		return Route{}, xerrors.Wrapf(ErrNoSuchRole, "cluster %q region %d: %s", cluster.Name, region.Index, role)
	}

	n := uint64(meta.ShardingNum)
	slot := v % (n * uint64(len(dbs)))
	return Route{
		Cluster:    cluster,
		Region:     region,
		Database:   dbs[slot/n],
		Role:       role,
		Table:      meta.TableName,
		TableIndex: int(slot % n),
	}, nil
}

func (r *router) RouteGlobal(meta topology.TableMeta, role topology.Role) (rt Route, err error) {
	defer func() { r.observe(meta.ClusterName, err) }()

	cluster, ok := r.topo.Cluster(meta.ClusterName)
	if !ok {
		return Route{}, xerrors.Wrapf(ErrUnknownCluster, "%q", meta.ClusterName)
	}
	return r.global(cluster, meta, role)
}

func (r *router) global(cluster *topology.Cluster, meta topology.TableMeta, role topology.Role) (Route, error) {
	if !cluster.HasGlobal() {
		return Route{}, xerrors.Wrapf(ErrNoGlobal, "cluster %q", cluster.Name)
	}
	db, ok := cluster.GlobalDatabase(role)
	if !ok {
		return Route{}, xerrors.Wrapf(ErrNoSuchRole, "cluster %q global: %s", cluster.Name, role)
	}
	return Route{
		Cluster:    cluster,
		Database:   db,
		Role:       role,
		Table:      meta.TableName,
		TableIndex: -1,
		Global:     true,
	}, nil
}

func (r *router) RouteAll(meta topology.TableMeta, role topology.Role) ([]Route, error) {
	cluster, ok := r.topo.Cluster(meta.ClusterName)
	if !ok {
		return nil, xerrors.Wrapf(ErrUnknownCluster, "%q", meta.ClusterName)
	}
	if meta.ShardingNum < 0 {
		return nil, xerrors.Wrapf(ErrInvalidTableMeta, "table %s: sharding num %d", meta.TableName, meta.ShardingNum)
	}
	if meta.IsGlobal() {
		rt, err := r.global(cluster, meta, role)
		if err != nil {
			return nil, err
		}
		return []Route{rt}, nil
	}

	var routes []Route
	for _, region := range cluster.Regions {
		dbs, ok := region.Databases(role)
		if !ok {
			return nil, xerrors.Wrapf(ErrNoSuchRole, "cluster %q region %d: %s", cluster.Name, region.Index, role)
		}
		for _, db := range dbs {
			for idx := 0; idx < meta.ShardingNum; idx++ {
				routes = append(routes, Route{
					Cluster:    cluster,
					Region:     region,
					Database:   db,
					Role:       role,
					Table:      meta.TableName,
					TableIndex: idx,
				})
			}
		}
	}
	return routes, nil
}

func (r *router) observe(cluster string, err error) {
	r.routes.Inc(context.Background(),
		metrics.L(metrics.LabelCluster, cluster),
		metrics.L(metrics.LabelResult, metrics.Result(err)),
	)
	if err != nil {
		r.logger.Debug("route failed", clog.String("cluster", cluster), clog.Error(err))
	}
}
