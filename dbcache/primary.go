package dbcache

import (
	"context"
	"time"

	"github.com/ceyewan/shardis/cache"
	"github.com/ceyewan/shardis/resource"
)

// CountUnknown 表行数未缓存
const CountUnknown int64 = -1

// Row 待缓存的一行
type Row struct {
	PK    any
	Value any
}

// Primary 行与行数缓存
type Primary struct {
	tier
	ttl time.Duration
}

// NewPrimary 创建一级缓存
func NewPrimary(c cache.Cache, cfg *Config, opts ...Option) (*Primary, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	t, err := newTier(tierPrimary, c, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Primary{tier: t, ttl: cfg.RowTTL}, nil
}

// PutRow 缓存一行
func (p *Primary) PutRow(ctx context.Context, id resource.Identity, pk, row any) {
	key := rowKey(id, pk)
	p.observe(ctx, "put_row", key, p.cache.Set(ctx, key, row, p.ttl))
}

func (p *Primary) PutRows(ctx context.Context, id resource.Identity, rows ...Row) {
	for _, r := range rows {
		p.PutRow(ctx, id, r.PK, r.Value)
	}
}

// GetRow 读取一行到 dest，返回是否命中
func (p *Primary) GetRow(ctx context.Context, id resource.Identity, pk, dest any) bool {
	key := rowKey(id, pk)
	if err := p.cache.Get(ctx, key, dest); err != nil {
		p.observe(ctx, "get_row", key, err)
		return false
	}
	p.hit(ctx, "get_row")
	return true
}

// GetRows 批量读取，dests 与 pks 一一对应，返回每行是否命中
func (p *Primary) GetRows(ctx context.Context, id resource.Identity, pks []any, dests []any) []bool {
	keys := make([]string, len(pks))
	for i, pk := range pks {
		keys[i] = rowKey(id, pk)
	}
	found, err := p.cache.MGet(ctx, keys, dests)
	if err != nil {
		p.observe(ctx, "get_rows", id.CachePrefix(), err)
		return make([]bool, len(pks))
	}
	for _, ok := range found {
		if ok {
			p.hit(ctx, "get_rows")
		} else {
			p.observe(ctx, "get_rows", "", cache.ErrMiss)
		}
	}
	return found
}

// RemoveRow 行被修改或删除后调用
func (p *Primary) RemoveRow(ctx context.Context, id resource.Identity, pk any) {
	key := rowKey(id, pk)
	p.observe(ctx, "remove_row", key, p.cache.Delete(ctx, key))
}

func (p *Primary) RemoveRows(ctx context.Context, id resource.Identity, pks ...any) {
	if len(pks) == 0 {
		return
	}
	keys := make([]string, len(pks))
	for i, pk := range pks {
		keys[i] = rowKey(id, pk)
	}
	p.observe(ctx, "remove_rows", id.CachePrefix(), p.cache.MDelete(ctx, keys...))
}

// SetCount 缓存物理表行数
func (p *Primary) SetCount(ctx context.Context, id resource.Identity, n int64) {
	key := countKey(id)
	p.observe(ctx, "set_count", key, p.cache.SetInt(ctx, key, n, p.ttl))
}

// GetCount 读取行数，未缓存返回 CountUnknown
func (p *Primary) GetCount(ctx context.Context, id resource.Identity) int64 {
	key := countKey(id)
	n, err := p.cache.GetInt(ctx, key)
	if err != nil {
		p.observe(ctx, "get_count", key, err)
		return CountUnknown
	}
	p.hit(ctx, "get_count")
	return n
}

// IncrCount 插入一行后调用，只调整已缓存的行数
func (p *Primary) IncrCount(ctx context.Context, id resource.Identity) {
	p.adjustCount(ctx, id, 1, "incr_count")
}

// DecrCount 删除一行后调用，只调整已缓存的行数
func (p *Primary) DecrCount(ctx context.Context, id resource.Identity) {
	p.adjustCount(ctx, id, -1, "decr_count")
}

func (p *Primary) adjustCount(ctx context.Context, id resource.Identity, delta int64, op string) {
	key := countKey(id)
	_, err := p.cache.IncrBy(ctx, key, delta)
	p.observe(ctx, op, key, err)
}

func (p *Primary) RemoveCount(ctx context.Context, id resource.Identity) {
	key := countKey(id)
	p.observe(ctx, "remove_count", key, p.cache.Delete(ctx, key))
}
