// Package resource 将路由结果解析为受事务管理的数据库资源。
//
// 每次解析都从连接池借一个新的独占连接，并在其上开启事务（关闭自动提交）；
// 资源的身份与元数据则只在首次解析时探测一次，缓存在弱引用表中复用。
// 复用的是元数据，连接从不复用。
//
// ctx 中存在活动事务（txn.Begin）时资源自动登记为参与者，直接 Commit/Rollback 返回 ErrEnlisted，
// Close 为空操作，由协调器统一决定并释放。否则资源是自治的：调用方必须在每条路径上
// 恰好调用一次 Commit 或 Rollback，然后 Close。Do 封装了这一约定。
package resource

import (
	"context"
	"database/sql"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
	"github.com/ceyewan/shardis/router"
	"github.com/ceyewan/shardis/topology"
	"github.com/ceyewan/shardis/txn"
	"github.com/ceyewan/shardis/xerrors"
)

// ConnProvider 连接池协作方，pool.Manager 实现了该接口
type ConnProvider interface {
	// DB 返回库的共享句柄，用于元数据探测
	DB(ctx context.Context, db *topology.Database) (*gorm.DB, error)
	// Acquire 借出一个独占连接
	Acquire(ctx context.Context, db *topology.Database) (*gorm.DB, *sql.Conn, error)
}

// Resolver 资源解析器，并发安全
type Resolver struct {
	provider ConnProvider
	cache    *identityCache
	group    singleflight.Group
	logger   clog.Logger

	resolves metrics.Counter
	latency  metrics.Histogram
	probes   metrics.Counter
}

// New 创建资源解析器
func New(provider ConnProvider, cfg *Config, opts ...Option) (*Resolver, error) {
	if provider == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "resource: provider is nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	cache, err := newIdentityCache(cfg.HotIdentities)
	if err != nil {
		return nil, err
	}

	r := &Resolver{provider: provider, cache: cache, logger: o.logger}
	if r.resolves, err = o.meter.Counter("shardis_resource_resolve_total", "Resource resolutions"); err != nil {
		return nil, err
	}
	if r.latency, err = o.meter.Histogram("shardis_resource_resolve_seconds", "Resource resolution latency",
		metrics.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.probes, err = o.meter.Counter("shardis_identity_probe_total", "Metadata probes on identity cache miss"); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve 解析路由结果为资源，角色取自 rt.Role
//
// 连接池耗尽或探测失败时直接返回错误，不在内部重试。
func (r *Resolver) Resolve(ctx context.Context, rt router.Route) (res *Resource, err error) {
	start := time.Now()
	defer func() {
		labels := []metrics.Label{
			metrics.L(metrics.LabelCluster, rt.Cluster.Name),
			metrics.L(metrics.LabelRole, rt.Role.String()),
			metrics.L(metrics.LabelResult, metrics.Result(err)),
		}
		r.resolves.Inc(ctx, labels...)
		r.latency.Record(ctx, time.Since(start).Seconds(), labels...)
	}()

	ent, err := r.identity(ctx, rt)
	if err != nil {
		return nil, err
	}

	gdb, conn, err := r.provider.Acquire(ctx, rt.Database)
	if err != nil {
		return nil, xerrors.Wrapf(err, "resource: resolve %s", ent.id)
	}

	// database/sql 在 BeginTx 的 ctx 取消时回滚事务，事务的生命周期只由 Commit/Rollback 决定
	sess := gdb.Session(&gorm.Session{NewDB: true, Context: context.WithoutCancel(ctx)})
	sess.Statement.ConnPool = conn
	tx := sess.Begin()
	if tx.Error != nil {
		_ = conn.Close()
		return nil, xerrors.Wrapf(tx.Error, "resource: begin on %s", ent.id)
	}
	tx = tx.WithContext(ctx)

	res = &Resource{
		entry:  ent,
		route:  rt,
		db:     tx,
		conn:   conn,
		logger: r.logger,
	}

	if t, ok := txn.FromContext(ctx); ok && t.Active() {
		if err := t.Enlist(participant{res}); err != nil {
			_ = res.release()
			return nil, xerrors.Wrapf(err, "resource: enlist %s", ent.id)
		}
		res.enlisted = true
	}
	return res, nil
}

// ResolveAll 依次解析多个路由；中途失败时关闭已解析的自治资源
func (r *Resolver) ResolveAll(ctx context.Context, routes []router.Route) ([]*Resource, error) {
	out := make([]*Resource, 0, len(routes))
	for _, rt := range routes {
		res, err := r.Resolve(ctx, rt)
		if err != nil {
			for _, done := range out {
				_ = done.Close()
			}
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Do 解析资源并执行 fn：fn 成功则提交，失败则回滚，任何路径都会关闭资源
//
// 资源登记在事务中时只执行 fn，提交与释放交给协调器。
func (r *Resolver) Do(ctx context.Context, rt router.Route, fn func(*Resource) error) (err error) {
	res, err := r.Resolve(ctx, rt)
	if err != nil {
		return err
	}
	defer func() {
		err = xerrors.Combine(err, res.Close())
	}()

	if err := fn(res); err != nil {
		if !res.Enlisted() {
			return xerrors.Combine(err, res.Rollback(ctx))
		}
		return err
	}
	if res.Enlisted() {
		return nil
	}
	return res.Commit(ctx)
}

// CachedIdentities 当前存活的身份缓存条目数
func (r *Resolver) CachedIdentities() int { return r.cache.len() }

// identity 查找身份缓存，未命中时合并并发请求，只探测一次
func (r *Resolver) identity(ctx context.Context, rt router.Route) (*entry, error) {
	id := IdentityOf(rt)
	if e := r.cache.get(id); e != nil {
		return e, nil
	}

	v, err, _ := r.group.Do(id.String(), func() (any, error) {
		if e := r.cache.get(id); e != nil {
			return e, nil
		}
		meta, err := r.probe(ctx, rt)
		r.probes.Inc(ctx, metrics.L(metrics.LabelResult, metrics.Result(err)))
		if err != nil {
			return nil, err
		}
		e := &entry{id: id, meta: meta}
		r.cache.put(e)
		r.logger.Debug("identity cached", clog.String("identity", id.String()), clog.String("dialect", meta.Dialect))
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*entry), nil
}

// probe 通过共享连接池借一个连接探测方言、主机与当前库
func (r *Resolver) probe(ctx context.Context, rt router.Route) (Meta, error) {
	gdb, err := r.provider.DB(ctx, rt.Database)
	if err != nil {
		return Meta{}, xerrors.Attach(ErrProbe, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return Meta{}, xerrors.Attach(ErrProbe, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		r.logger.Warn("metadata probe failed", clog.String("database", rt.Database.ID), clog.Error(err))
		return Meta{}, xerrors.Attach(ErrProbe, xerrors.Wrapf(err, "database %s", rt.Database.ID))
	}

	current := gdb.WithContext(ctx).Migrator().CurrentDatabase()
	catalog := rt.Cluster.Catalog
	if catalog == "" {
		catalog = current
	}
	return Meta{
		Dialect:  gdb.Dialector.Name(),
		Host:     rt.Database.Host,
		Catalog:  catalog,
		Database: current,
		ProbedAt: time.Now(),
	}, nil
}
