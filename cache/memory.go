package cache

import (
	"context"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/shardis/cache/serializer"
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

// noExpiry 未指定 TTL 时的过期时间（100 年）
const noExpiry = 24 * 365 * 100 * time.Hour

// entry 对象值保存编码后的字节，与 Redis 驱动一样每次 Get 都得到独立副本
type entry struct {
	data      []byte
	n         int64
	counter   bool
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type memoryCache struct {
	cache  *otter.Cache[string, entry]
	stats  *stats.Counter
	prefix string
	ser    serializer.Serializer
	logger clog.Logger

	// mu 串行化写操作，IncrBy/SetNX 的读改写依赖它保证原子性
	mu sync.Mutex
}

func newMemory(capacity int, prefix string, ser serializer.Serializer, logger clog.Logger) (Cache, error) {
	counter := stats.NewCounter()
	c, err := otter.New(&otter.Options[string, entry]{
		MaximumSize:      capacity,
		StatsRecorder:    counter,
		ExpiryCalculator: otter.ExpiryWriting[string, entry](noExpiry),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "cache: build otter cache")
	}
	return &memoryCache{
		cache:  c,
		stats:  counter,
		prefix: prefix,
		ser:    ser,
		logger: logger.With(clog.String("driver", DriverMemory)),
	}, nil
}

func (c *memoryCache) key(k string) string { return c.prefix + k }

func (c *memoryCache) load(k string) (entry, bool) {
	e, ok := c.cache.GetIfPresent(k)
	if !ok || e.expired(time.Now()) {
		return entry{}, false
	}
	return e, true
}

// store 写入条目；expiresAt 为零值表示不过期
func (c *memoryCache) store(k string, e entry) {
	c.cache.Set(k, e)
	if e.expiresAt.IsZero() {
		return
	}
	if d := time.Until(e.expiresAt); d > 0 {
		c.cache.SetExpiresAfter(k, d)
		return
	}
	c.cache.Invalidate(k)
}

func deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func (c *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := c.ser.Marshal(value)
	if err != nil {
		return xerrors.Wrapf(err, "cache: marshal %s", key)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(c.key(key), entry{data: data, expiresAt: deadline(ttl)})
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string, dest any) error {
	e, ok := c.load(c.key(key))
	if !ok {
		return ErrMiss
	}
	return c.decode(key, e, dest)
}

func (c *memoryCache) decode(key string, e entry, dest any) error {
	data := e.data
	if e.counter {
		// 计数器先按当前序列化器编码再解码到 dest
		var err error
		if data, err = c.ser.Marshal(e.n); err != nil {
			return err
		}
	}
	if err := c.ser.Unmarshal(data, dest); err != nil {
		return xerrors.Wrapf(err, "cache: unmarshal %s", key)
	}
	return nil
}

func (c *memoryCache) MGet(_ context.Context, keys []string, dests []any) ([]bool, error) {
	if len(keys) != len(dests) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "cache: keys and dests length mismatch")
	}
	found := make([]bool, len(keys))
	for i, k := range keys {
		e, ok := c.load(c.key(k))
		if !ok {
			continue
		}
		if err := c.decode(k, e, dests[i]); err != nil {
			return nil, err
		}
		found[i] = true
	}
	return found, nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Invalidate(c.key(key))
	return nil
}

func (c *memoryCache) MDelete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.cache.Invalidate(c.key(k))
	}
	return nil
}

func (c *memoryCache) Has(_ context.Context, key string) (bool, error) {
	_, ok := c.load(c.key(key))
	return ok, nil
}

func (c *memoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(key)
	e, ok := c.load(k)
	if !ok {
		return ErrMiss
	}
	e.expiresAt = deadline(ttl)
	c.store(k, e)
	return nil
}

func (c *memoryCache) SetInt(_ context.Context, key string, value int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(c.key(key), entry{n: value, counter: true, expiresAt: deadline(ttl)})
	return nil
}

func (c *memoryCache) GetInt(_ context.Context, key string) (int64, error) {
	e, ok := c.load(c.key(key))
	if !ok {
		return 0, ErrMiss
	}
	if !e.counter {
		return 0, ErrNotInteger
	}
	return e.n, nil
}

func (c *memoryCache) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(key)
	e, ok := c.load(k)
	if !ok {
		return 0, ErrMiss
	}
	if !e.counter {
		return 0, ErrNotInteger
	}
	e.n += delta
	c.store(k, e)
	return e.n, nil
}

func (c *memoryCache) SetNX(_ context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(key)
	if _, ok := c.load(k); ok {
		return false, nil
	}
	c.store(k, entry{n: value, counter: true, expiresAt: deadline(ttl)})
	return true, nil
}

func (c *memoryCache) Close() error {
	s := c.stats.Snapshot()
	c.logger.Debug("memory cache closed",
		clog.Uint64("hits", s.Hits),
		clog.Uint64("misses", s.Misses),
		clog.Uint64("evictions", s.Evictions),
	)
	c.cache.StopAllGoroutines()
	return nil
}
