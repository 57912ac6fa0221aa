package dbcache

import (
	"context"
	"time"

	"github.com/ceyewan/shardis/cache"
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/resource"
	"github.com/ceyewan/shardis/xerrors"
)

// Secondary 查询结果缓存
//
// 条目键带有物理表当前的代数，InvalidateAll 只递增代数，旧条目不再可达并在 QueryTTL 后过期。
type Secondary struct {
	tier
	ttl time.Duration
	now func() time.Time
}

// NewSecondary 创建二级缓存
func NewSecondary(c cache.Cache, cfg *Config, opts ...Option) (*Secondary, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	t, err := newTier(tierSecondary, c, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Secondary{tier: t, ttl: cfg.QueryTTL, now: time.Now}, nil
}

// Put 缓存 where 条件下的查询结果
func (s *Secondary) Put(ctx context.Context, id resource.Identity, where string, rows any) {
	gen, err := s.generation(ctx, id)
	if err != nil {
		s.observe(ctx, "put", generationKey(id), err)
		return
	}
	key := queryKey(id, gen, where)
	s.observe(ctx, "put", key, s.cache.Set(ctx, key, rows, s.ttl))
}

// Get 读取当前代的查询结果到 dest，返回是否命中
func (s *Secondary) Get(ctx context.Context, id resource.Identity, where string, dest any) bool {
	gen, err := s.generation(ctx, id)
	if err != nil {
		s.observe(ctx, "get", generationKey(id), err)
		return false
	}
	key := queryKey(id, gen, where)
	if err := s.cache.Get(ctx, key, dest); err != nil {
		s.observe(ctx, "get", key, err)
		return false
	}
	s.hit(ctx, "get")
	return true
}

// InvalidateAll 使物理表的全部查询结果失效
func (s *Secondary) InvalidateAll(ctx context.Context, id resource.Identity) {
	key := generationKey(id)
	gen, err := s.cache.IncrBy(ctx, key, 1)
	if xerrors.Is(err, cache.ErrMiss) {
		// 代数丢失时以当前时间重新播种，新值必然大于此前用过的任何代数
		gen, err = s.seed(ctx, key)
	}
	s.observe(ctx, "invalidate", key, err)
	if err == nil {
		s.logger.DebugContext(ctx, "query cache invalidated",
			clog.String("identity", id.CachePrefix()), clog.Int64("generation", gen))
	}
}

// generation 读取当前代数，不存在则播种
func (s *Secondary) generation(ctx context.Context, id resource.Identity) (int64, error) {
	key := generationKey(id)
	gen, err := s.cache.GetInt(ctx, key)
	if err == nil {
		return gen, nil
	}
	if !xerrors.Is(err, cache.ErrMiss) {
		return 0, err
	}
	return s.seed(ctx, key)
}

func (s *Secondary) seed(ctx context.Context, key string) (int64, error) {
	seed := s.now().UnixNano()
	ok, err := s.cache.SetNX(ctx, key, seed, 0)
	if err != nil {
		return 0, err
	}
	if ok {
		return seed, nil
	}
	// 并发播种时以胜出者为准
	return s.cache.GetInt(ctx, key)
}
