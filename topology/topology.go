// Package topology 描述分片集群的物理拓扑：集群、区域、容量区间、主从库。
//
// 拓扑在启动时一次性构建并校验，之后只读，可以被任意多个 goroutine 无锁并发访问。
// 配置错误（容量格式、字段缺失、未知哈希算法）在构建时返回 ErrInvalidTopology，集群不会启动。
//
//	topo, err := topology.Load(loader, "shardis")
//	if err != nil {
//		return err
//	}
//	c, _ := topo.Cluster("c1")
package topology

import (
	"maps"
	"slices"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/config"
	"github.com/ceyewan/shardis/xerrors"
)

// Topology 进程内的集群拓扑快照
type Topology struct {
	hash      HashAlgorithm
	clusters  map[string]*Cluster
	order     []string
	databases map[string]*Database
}

// Cluster 一个逻辑数据库：可选的全局数据集加一个或多个分片区域
type Cluster struct {
	Name    string
	Catalog string
	Hash    HashAlgorithm

	GlobalMaster *Database
	GlobalSlaves []*Database

	Regions []*Region
}

// Region 分片区域：声明若干容量区间，由一组主库及若干代从库承载
type Region struct {
	Index    int
	Capacity []Range
	Masters  []*Database
	Slaves   [][]*Database
}

// Option 拓扑构建选项
type Option func(*options)

type options struct {
	logger clog.Logger
}

// WithLogger 设置日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("topology")
		}
	}
}

// New 根据配置构建并校验拓扑
func New(cfg *Config, opts ...Option) (*Topology, error) {
	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	if cfg == nil || len(cfg.Clusters) == 0 {
		return nil, xerrors.Wrap(ErrInvalidTopology, "no cluster configured")
	}
	hash, err := ParseHashAlgorithm(cfg.Hash)
	if err != nil {
		return nil, xerrors.Attach(ErrInvalidTopology, err)
	}

	t := &Topology{
		hash:      hash,
		clusters:  make(map[string]*Cluster, len(cfg.Clusters)),
		databases: make(map[string]*Database),
	}
	for i := range cfg.Clusters {
		c, err := t.buildCluster(&cfg.Clusters[i])
		if err != nil {
			return nil, err
		}
		t.clusters[c.Name] = c
		t.order = append(t.order, c.Name)
	}

	o.logger.Info("topology built",
		clog.Int("clusters", len(t.order)),
		clog.Int("databases", len(t.databases)),
		clog.String("hash", string(hash)))
	return t, nil
}

// Load 从配置加载器中读取 key 对应的拓扑段并构建
func Load(loader config.Loader, key string, opts ...Option) (*Topology, error) {
	var cfg Config
	if err := loader.UnmarshalKey(key, &cfg); err != nil {
		return nil, xerrors.Attach(ErrInvalidTopology, err)
	}
	return New(&cfg, opts...)
}

func (t *Topology) buildCluster(cc *ClusterConfig) (*Cluster, error) {
	if cc.Name == "" {
		return nil, xerrors.Wrap(ErrInvalidTopology, "cluster name is required")
	}
	if _, dup := t.clusters[cc.Name]; dup {
		return nil, xerrors.Wrapf(ErrInvalidTopology, "duplicate cluster %q", cc.Name)
	}
	if len(cc.Regions) == 0 {
		return nil, xerrors.Wrapf(ErrInvalidTopology, "cluster %q: no region configured", cc.Name)
	}

	hash := t.hash
	if cc.Hash != "" {
		h, err := ParseHashAlgorithm(cc.Hash)
		if err != nil {
			return nil, xerrors.Attach(ErrInvalidTopology, xerrors.Wrapf(err, "cluster %q", cc.Name))
		}
		hash = h
	}

	c := &Cluster{Name: cc.Name, Catalog: cc.Catalog, Hash: hash}

	if g := cc.Global; g != nil && g.Master != nil {
		master, err := t.addDatabase(cc.Name, g.Master, Master)
		if err != nil {
			return nil, err
		}
		c.GlobalMaster = master
		for i, s := range g.Slaves {
			slave, err := t.addDatabase(cc.Name, s, Slave(i))
			if err != nil {
				return nil, err
			}
			c.GlobalSlaves = append(c.GlobalSlaves, slave)
		}
	}

	var all []Range
	for i := range cc.Regions {
		r, err := t.buildRegion(cc.Name, i, &cc.Regions[i])
		if err != nil {
			return nil, err
		}
		all = append(all, r.Capacity...)
		c.Regions = append(c.Regions, r)
	}
	if err := checkDisjoint(all); err != nil {
		return nil, xerrors.Attach(ErrInvalidTopology, xerrors.Wrapf(err, "cluster %q", cc.Name))
	}
	return c, nil
}

func (t *Topology) buildRegion(cluster string, idx int, rc *RegionConfig) (*Region, error) {
	capacity, err := ParseCapacity(rc.Capacity)
	if err != nil {
		return nil, xerrors.Attach(ErrInvalidTopology, xerrors.Wrapf(err, "cluster %q region %d", cluster, idx))
	}
	if len(rc.Masters) == 0 {
		return nil, xerrors.Wrapf(ErrInvalidTopology, "cluster %q region %d: no master database", cluster, idx)
	}

	r := &Region{Index: idx, Capacity: capacity}
	for _, m := range rc.Masters {
		db, err := t.addDatabase(cluster, m, Master)
		if err != nil {
			return nil, err
		}
		r.Masters = append(r.Masters, db)
	}
	for gen, group := range rc.Slaves {
		if len(group) != len(rc.Masters) {
			return nil, xerrors.Wrapf(ErrInvalidTopology,
				"cluster %q region %d: slave generation %d has %d databases, masters have %d",
				cluster, idx, gen, len(group), len(rc.Masters))
		}
		dbs := make([]*Database, 0, len(group))
		for _, s := range group {
			db, err := t.addDatabase(cluster, s, Slave(gen))
			if err != nil {
				return nil, err
			}
			dbs = append(dbs, db)
		}
		r.Slaves = append(r.Slaves, dbs)
	}
	return r, nil
}

// addDatabase 校验描述符并拷贝一份，拓扑不持有调用方的指针
func (t *Topology) addDatabase(cluster string, d *Database, role Role) (*Database, error) {
	if d == nil {
		return nil, xerrors.Wrapf(ErrInvalidTopology, "cluster %q: empty database descriptor", cluster)
	}
	if d.ID == "" {
		return nil, xerrors.Wrapf(ErrInvalidTopology, "cluster %q: database id is required", cluster)
	}
	if _, dup := t.databases[d.ID]; dup {
		return nil, xerrors.Wrapf(ErrInvalidTopology, "duplicate database id %q", d.ID)
	}
	switch d.Driver {
	case DriverMySQL, DriverPostgres:
		if d.DSN == "" && d.Host == "" {
			return nil, xerrors.Wrapf(ErrInvalidTopology, "database %q: dsn or host is required", d.ID)
		}
	case DriverSQLite:
		if d.DSN == "" {
			return nil, xerrors.Wrapf(ErrInvalidTopology, "database %q: sqlite requires dsn", d.ID)
		}
	default:
		return nil, xerrors.Wrapf(ErrInvalidTopology, "database %q: unsupported driver %q", d.ID, d.Driver)
	}

	db := *d
	db.Role = role
	t.databases[db.ID] = &db
	return &db, nil
}

// HashAlgorithm 部署级默认哈希算法
func (t *Topology) HashAlgorithm() HashAlgorithm { return t.hash }

// Cluster 按名称查找集群
func (t *Topology) Cluster(name string) (*Cluster, bool) {
	c, ok := t.clusters[name]
	return c, ok
}

// Clusters 按配置顺序返回所有集群
func (t *Topology) Clusters() []*Cluster {
	out := make([]*Cluster, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.clusters[name])
	}
	return out
}

// Database 按 ID 查找数据库描述
func (t *Topology) Database(id string) (*Database, bool) {
	d, ok := t.databases[id]
	return d, ok
}

// Databases 返回所有数据库描述，按 ID 排序
func (t *Topology) Databases() []*Database {
	ids := slices.Sorted(maps.Keys(t.databases))
	out := make([]*Database, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.databases[id])
	}
	return out
}

// HasGlobal 集群是否配置了全局数据集
func (c *Cluster) HasGlobal() bool { return c.GlobalMaster != nil }

// GlobalDatabase 返回全局数据集中指定角色的库
func (c *Cluster) GlobalDatabase(role Role) (*Database, bool) {
	if c.GlobalMaster == nil {
		return nil, false
	}
	if role.IsMaster() {
		return c.GlobalMaster, true
	}
	n := role.SlaveIndex()
	if n >= len(c.GlobalSlaves) {
		return nil, false
	}
	return c.GlobalSlaves[n], true
}

// RegionFor 返回第一个容量区间包含 v 的区域
func (c *Cluster) RegionFor(v uint64) (*Region, bool) {
	for _, r := range c.Regions {
		if r.Contains(v) {
			return r, true
		}
	}
	return nil, false
}

// Contains 区域是否覆盖 v
func (r *Region) Contains(v uint64) bool {
	for _, rg := range r.Capacity {
		if rg.Contains(v) {
			return true
		}
	}
	return false
}

// Databases 返回区域内指定角色的库，顺序即路由顺序
func (r *Region) Databases(role Role) ([]*Database, bool) {
	if role.IsMaster() {
		return r.Masters, true
	}
	n := role.SlaveIndex()
	if n >= len(r.Slaves) {
		return nil, false
	}
	return r.Slaves[n], true
}

// Start 区域第一个容量区间的起点
func (r *Region) Start() uint64 { return r.Capacity[0].Start }

// End 区域第一个容量区间的终点
func (r *Region) End() uint64 { return r.Capacity[0].End }
