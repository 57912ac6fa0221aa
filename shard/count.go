package shard

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/dbcache"
	"github.com/ceyewan/shardis/resource"
	"github.com/ceyewan/shardis/router"
	"github.com/ceyewan/shardis/topology"
)

// Count 统计逻辑表在所有物理表上的总行数
//
// 对 RouteAll 的每个物理表并发执行 SELECT COUNT(*)，最多 ScatterLimit 个同时进行；
// 表开启缓存时优先使用一级缓存中的行数，未命中则查询后回填。全局表只统计全局库。任一分片失败则整体失败。
func (e *Engine) Count(ctx context.Context, meta topology.TableMeta, role topology.Role) (int64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	routes, err := e.router.RouteAll(meta, role)
	if err != nil {
		return 0, err
	}

	counts := make([]int64, len(routes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ScatterLimit)
	for i, rt := range routes {
		g.Go(func() error {
			n, err := e.countShard(gctx, meta, rt)
			counts[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	e.logger.DebugContext(ctx, "count",
		clog.String("table", meta.TableName),
		clog.Int("shards", len(routes)),
		clog.Int64("total", total))
	return total, nil
}

func (e *Engine) countShard(ctx context.Context, meta topology.TableMeta, rt router.Route) (int64, error) {
	id := resource.IdentityOf(rt)
	if meta.CacheEnabled {
		if n := e.primary.GetCount(ctx, id); n != dbcache.CountUnknown {
			return n, nil
		}
	}

	var n int64
	err := e.resolver.Do(ctx, rt, func(res *resource.Resource) error {
		return res.DB().Table(res.Table()).Count(&n).Error
	})
	if err != nil {
		return 0, err
	}
	if meta.CacheEnabled {
		e.primary.SetCount(ctx, id, n)
	}
	return n, nil
}
