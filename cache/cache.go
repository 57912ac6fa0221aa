// Package cache 提供分片中间件使用的键值缓存抽象。
//
// 两类值共用一个命名空间：
//   - 对象值经 Serializer 编码后存储，通过 Set/Get/MGet 读写；
//   - 计数器是原生整数，通过 SetInt/GetInt/IncrBy/SetNX 读写，
//     IncrBy 只调整已存在的计数器，键不存在时返回 ErrMiss。
//
// 基本使用：
//
//	c, _ := cache.New(&cache.Config{Driver: cache.DriverRedis},
//	    cache.WithRedisConnector(redisConn), cache.WithLogger(logger))
//
//	_ = c.Set(ctx, "c1.d1.1100.user2:row:7", row, 30*time.Minute)
//	var got Row
//	if err := c.Get(ctx, "c1.d1.1100.user2:row:7", &got); errors.Is(err, cache.ErrMiss) {
//	    // 回源
//	}
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/ceyewan/shardis/cache/serializer"
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

// Cache 键值缓存。ttl <= 0 表示不过期。
type Cache interface {
	// Set 编码并写入对象值
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get 读取并解码到 dest，键不存在返回 ErrMiss
	Get(ctx context.Context, key string, dest any) error
	// MGet 批量读取，dests 与 keys 一一对应，返回每个键是否命中
	MGet(ctx context.Context, keys []string, dests []any) ([]bool, error)
	Delete(ctx context.Context, key string) error
	MDelete(ctx context.Context, keys ...string) error
	Has(ctx context.Context, key string) (bool, error)
	// Expire 重设过期时间，键不存在返回 ErrMiss
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// SetInt 写入计数器
	SetInt(ctx context.Context, key string, value int64, ttl time.Duration) error
	// GetInt 读取计数器，键不存在返回 ErrMiss
	GetInt(ctx context.Context, key string) (int64, error)
	// IncrBy 原子地调整已存在的计数器并返回新值，保留原有过期时间
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	// SetNX 计数器不存在时写入，返回是否写入成功
	SetNX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)

	Close() error
}

// New 按 cfg.Driver 创建缓存实例
func New(cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "config is nil")
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	ser, err := serializer.New(c.Serializer)
	if err != nil {
		return nil, xerrors.Attach(ErrConfig, err)
	}

	switch strings.ToLower(c.Driver) {
	case DriverRedis:
		if o.redisConn == nil {
			return nil, xerrors.Wrap(ErrConfig, "redis connector is required, use WithRedisConnector")
		}
		return newRedis(o.redisConn.GetClient(), c.Prefix, ser, o.logger), nil
	default:
		return newMemory(c.Memory.Capacity, c.Prefix, ser, o.logger)
	}
}
