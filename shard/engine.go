// Package shard 是分片中间件的组合根：按配置装配拓扑、路由器、连接池、资源解析器、
// 两级缓存与 ID 分配器，并提供路由加解析的便捷入口。
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{Name: "shardis", Paths: []string{"./config"}})
//	_ = loader.Load(ctx)
//	engine, _ := shard.Load(loader, "shardis", shard.WithLogger(logger))
//	defer engine.Close()
//
//	id, _ := engine.NextID(ctx, userMeta)
//	err := engine.Do(ctx, userMeta, router.Key("c1", id), topology.Master, func(res *resource.Resource) error {
//	    return res.DB().Table(res.Table()).Create(&User{ID: id}).Error
//	})
package shard

import (
	"context"
	"sync/atomic"

	"github.com/ceyewan/shardis/cache"
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/config"
	"github.com/ceyewan/shardis/dbcache"
	"github.com/ceyewan/shardis/dlock"
	"github.com/ceyewan/shardis/idgen"
	"github.com/ceyewan/shardis/metrics"
	"github.com/ceyewan/shardis/pool"
	"github.com/ceyewan/shardis/resource"
	"github.com/ceyewan/shardis/router"
	"github.com/ceyewan/shardis/topology"
	"github.com/ceyewan/shardis/xerrors"
)

// Engine 分片引擎，并发安全
type Engine struct {
	cfg    Config
	logger clog.Logger

	topo      *topology.Topology
	router    router.Router
	pool      *pool.Manager
	resolver  *resource.Resolver
	cache     cache.Cache
	primary   *dbcache.Primary
	secondary *dbcache.Secondary
	locker    dlock.Locker
	ids       *idgen.Allocator

	closed atomic.Bool
}

// Load 从配置加载器读取 key 下的拓扑与 key.engine 下的引擎配置并创建引擎
func Load(loader config.Loader, key string, opts ...Option) (*Engine, error) {
	o := applyOptions(opts)
	topo, err := topology.Load(loader, key, topology.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := loader.UnmarshalKey(key+".engine", &cfg); err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.Wrap(err, "shard: load engine config")
	}
	return New(topo, &cfg, opts...)
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// New 在已构建的拓扑上装配引擎；cfg 为 nil 时全部使用进程内后端
func New(topo *topology.Topology, cfg *Config, opts ...Option) (e *Engine, err error) {
	if topo == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "shard: topology is nil")
	}
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	o := applyOptions(opts)

	e = &Engine{cfg: c, logger: o.logger.WithNamespace("shard"), topo: topo}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	if e.router, err = router.New(topo, router.WithLogger(o.logger), router.WithMeter(o.meter)); err != nil {
		return nil, err
	}
	if e.pool, err = pool.New(pool.WithLogger(o.logger), pool.WithMeter(o.meter)); err != nil {
		return nil, err
	}
	if e.resolver, err = resource.New(e.pool, &c.Resource,
		resource.WithLogger(o.logger), resource.WithMeter(o.meter)); err != nil {
		return nil, err
	}

	if e.cache, err = cache.New(&c.Cache, cache.WithLogger(o.logger), cache.WithRedisConnector(o.redis)); err != nil {
		return nil, err
	}
	if e.primary, err = dbcache.NewPrimary(e.cache, &c.DBCache,
		dbcache.WithLogger(o.logger), dbcache.WithMeter(o.meter)); err != nil {
		return nil, err
	}
	if e.secondary, err = dbcache.NewSecondary(e.cache, &c.DBCache,
		dbcache.WithLogger(o.logger), dbcache.WithMeter(o.meter)); err != nil {
		return nil, err
	}

	if e.locker, err = dlock.New(&c.Lock, dlock.WithLogger(o.logger), dlock.WithMeter(o.meter),
		dlock.WithRedisConnector(o.redis), dlock.WithEtcdConnector(o.etcd)); err != nil {
		return nil, err
	}
	store, err := idgen.NewStore(&c.IDGen, idgen.WithRedisConnector(o.redis), idgen.WithEtcdConnector(o.etcd))
	if err != nil {
		return nil, err
	}
	if e.ids, err = idgen.New(store, e.locker, &c.IDGen,
		idgen.WithLogger(o.logger), idgen.WithMeter(o.meter)); err != nil {
		return nil, err
	}

	e.logger.Info("engine ready",
		clog.Int("clusters", len(topo.Clusters())),
		clog.Int("databases", len(topo.Databases())),
		clog.String("cache", c.Cache.Driver),
		clog.String("idgen", c.IDGen.Driver))
	return e, nil
}

func (e *Engine) Topology() *topology.Topology { return e.topo }
func (e *Engine) Router() router.Router { return e.router }
func (e *Engine) Pool() *pool.Manager { return e.pool }
func (e *Engine) Resolver() *resource.Resolver { return e.resolver }
func (e *Engine) Primary() *dbcache.Primary { return e.primary }
func (e *Engine) Secondary() *dbcache.Secondary { return e.secondary }
func (e *Engine) IDs() *idgen.Allocator { return e.ids }

// Resolve 路由分片键并解析出资源
func (e *Engine) Resolve(ctx context.Context, meta topology.TableMeta, key router.ShardKey, role topology.Role) (*resource.Resource, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	rt, err := e.router.Route(meta, key, role)
	if err != nil {
		return nil, err
	}
	return e.resolver.Resolve(ctx, rt)
}

// ResolveGlobal 解析全局表所在库的资源
func (e *Engine) ResolveGlobal(ctx context.Context, meta topology.TableMeta, role topology.Role) (*resource.Resource, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	rt, err := e.router.RouteGlobal(meta, role)
	if err != nil {
		return nil, err
	}
	return e.resolver.Resolve(ctx, rt)
}

// Do 路由并在资源上执行 fn，提交、回滚与关闭语义同 resource.Resolver.Do
func (e *Engine) Do(ctx context.Context, meta topology.TableMeta, key router.ShardKey, role topology.Role, fn func(*resource.Resource) error) error {
	if e.closed.Load() {
		return ErrClosed
	}
	rt, err := e.router.Route(meta, key, role)
	if err != nil {
		return err
	}
	return e.resolver.Do(ctx, rt, fn)
}

// NextID 为逻辑表分配一个主键，计数器名为表名
func (e *Engine) NextID(ctx context.Context, meta topology.TableMeta) (int64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	return e.ids.Allocate(ctx, meta.ClusterName, meta.TableName)
}

// Close 关闭缓存、锁与全部连接池；注入的连接器由调用方关闭
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if e.cache != nil {
		errs = append(errs, e.cache.Close())
	}
	if e.locker != nil {
		errs = append(errs, e.locker.Close())
	}
	if e.pool != nil {
		errs = append(errs, e.pool.Close())
	}
	err := xerrors.Combine(errs...)
	if err != nil {
		e.logger.Error("engine close failed", clog.Error(err))
		return err
	}
	e.logger.Info("engine closed")
	return nil
}
