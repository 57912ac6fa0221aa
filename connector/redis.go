package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

type redisConnector struct {
	cfg     *RedisConfig
	client  *redis.Client
	logger  clog.Logger
	metrics *connectMetrics
	healthy atomic.Bool
	mu      sync.Mutex
	closed  bool
}

// NewRedis 创建 Redis 连接器，客户端立即创建，Connect 时 Ping
func NewRedis(cfg *RedisConfig, opts ...Option) (RedisConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "redis: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	c := &redisConnector{
		cfg:     cfg,
		logger:  o.logger.With(clog.String("connector", "redis"), clog.String("name", cfg.Name)),
		metrics: newConnectMetrics(o.meter),
	}
	c.client = redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	})
	return c, nil
}

func (c *redisConnector) Connect(ctx context.Context) error {
	if c.healthy.Load() {
		return nil
	}
	err := c.client.Ping(ctx).Err()
	c.metrics.observe(ctx, "redis", c.cfg.Name, err)
	if err != nil {
		c.logger.Error("connect failed", clog.Error(err), clog.String("addr", c.cfg.Addr))
		return xerrors.Attach(ErrConnection, xerrors.Wrapf(err, "redis connector[%s]", c.cfg.Name))
	}

	c.healthy.Store(true)
	c.logger.Info("connected", clog.String("addr", c.cfg.Addr))
	return nil
}

func (c *redisConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.client.Close(); err != nil {
		c.logger.Error("close failed", clog.Error(err))
		return err
	}
	c.logger.Info("closed")
	return nil
}

func (c *redisConnector) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("health check failed", clog.Error(err))
		return xerrors.Attach(ErrHealthCheck, err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *redisConnector) IsHealthy() bool { return c.healthy.Load() }

func (c *redisConnector) Name() string { return c.cfg.Name }

func (c *redisConnector) GetClient() *redis.Client { return c.client }
