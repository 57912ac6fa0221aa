// Package dbcache 在分片后端之上协调两级缓存。
//
// Primary 缓存单行与表行数，按主键失效；Secondary 缓存查询结果，
// 通过递增每个物理表的代数整体失效，不做任何模式匹配删除，旧代条目自然过期。
// 键以 resource.Identity 的缓存前缀开头，不含角色，主从共享。
//
// 缓存只是建议性的：后端的任何失败都被记录后吞掉，读退化为未命中，写退化为空操作。
package dbcache

import (
	"context"

	"github.com/ceyewan/shardis/cache"
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
	"github.com/ceyewan/shardis/xerrors"
)

const (
	tierPrimary   = "primary"
	tierSecondary = "secondary"
)

// tier 两级缓存共用的请求计数与失败处理
type tier struct {
	name     string
	cache    cache.Cache
	logger   clog.Logger
	requests metrics.Counter
}

func newTier(name string, c cache.Cache, o *options) (tier, error) {
	if c == nil {
		return tier{}, xerrors.Wrap(xerrors.ErrInvalidInput, "dbcache: cache is nil")
	}
	requests, err := o.meter.Counter("shardis_cache_requests_total", "Cache coordinator requests")
	if err != nil {
		return tier{}, err
	}
	return tier{
		name:     name,
		cache:    c,
		logger:   o.logger.With(clog.String("tier", name)),
		requests: requests,
	}, nil
}

// observe 记录一次请求；err 为 ErrMiss 视为未命中，其它错误记 Warn 后吞掉
func (t tier) observe(ctx context.Context, op, key string, err error) {
	result := metrics.ResultSuccess
	switch {
	case err == nil:
	case xerrors.Is(err, cache.ErrMiss):
		result = metrics.ResultMiss
	default:
		result = metrics.ResultError
		t.logger.WarnContext(ctx, "cache operation failed",
			clog.String("op", op), clog.String("key", key), clog.Error(err))
	}
	t.requests.Inc(ctx,
		metrics.L(metrics.LabelTier, t.name),
		metrics.L(metrics.LabelOperation, op),
		metrics.L(metrics.LabelResult, result),
	)
}

func (t tier) hit(ctx context.Context, op string) {
	t.requests.Inc(ctx,
		metrics.L(metrics.LabelTier, t.name),
		metrics.L(metrics.LabelOperation, op),
		metrics.L(metrics.LabelResult, metrics.ResultHit),
	)
}
