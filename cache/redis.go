package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/shardis/cache/serializer"
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

// incrExisting 仅当计数器存在时 INCRBY，不存在返回 nil
var incrExisting = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("INCRBY", KEYS[1], ARGV[1])
end
return false
`)

type redisCache struct {
	client *redis.Client
	prefix string
	ser    serializer.Serializer
	logger clog.Logger
}

func newRedis(client *redis.Client, prefix string, ser serializer.Serializer, logger clog.Logger) Cache {
	return &redisCache{
		client: client,
		prefix: prefix,
		ser:    ser,
		logger: logger.With(clog.String("driver", DriverRedis)),
	}
}

func (c *redisCache) key(k string) string { return c.prefix + k }

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := c.ser.Marshal(value)
	if err != nil {
		return xerrors.Wrapf(err, "cache: marshal %s", key)
	}
	return c.client.Set(ctx, c.key(key), data, expiration(ttl)).Err()
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return mapRedisErr(err)
	}
	if err := c.ser.Unmarshal(data, dest); err != nil {
		return xerrors.Wrapf(err, "cache: unmarshal %s", key)
	}
	return nil
}

func (c *redisCache) MGet(ctx context.Context, keys []string, dests []any) ([]bool, error) {
	if len(keys) != len(dests) {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "cache: keys and dests length mismatch")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	vals, err := c.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}

	found := make([]bool, len(keys))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if err := c.ser.Unmarshal([]byte(s), dests[i]); err != nil {
			return nil, xerrors.Wrapf(err, "cache: unmarshal %s", keys[i])
		}
		found[i] = true
	}
	return found, nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *redisCache) MDelete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

func (c *redisCache) Has(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	k := c.key(key)
	if ttl <= 0 {
		ok, err := c.Has(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMiss
		}
		return c.client.Persist(ctx, k).Err()
	}

	ok, err := c.client.Expire(ctx, k, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrMiss
	}
	return nil
}

func (c *redisCache) SetInt(ctx context.Context, key string, value int64, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, expiration(ttl)).Err()
}

func (c *redisCache) GetInt(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Get(ctx, c.key(key)).Int64()
	if err != nil {
		return 0, mapRedisErr(err)
	}
	return n, nil
}

func (c *redisCache) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := incrExisting.Run(ctx, c.client, []string{c.key(key)}, delta).Int64()
	if err != nil {
		return 0, mapRedisErr(err)
	}
	return n, nil
}

func (c *redisCache) SetNX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.key(key), value, expiration(ttl)).Result()
}

// Close 客户端归 RedisConnector 所有，这里不关闭
func (c *redisCache) Close() error {
	return nil
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func mapRedisErr(err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		return ErrMiss
	case strings.Contains(err.Error(), "not an integer"):
		return xerrors.Attach(ErrNotInteger, err)
	case errors.As(err, new(*strconv.NumError)):
		return xerrors.Attach(ErrNotInteger, err)
	default:
		return err
	}
}
