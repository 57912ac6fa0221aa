// Package dlock 提供分布式锁，ID 分配器用它串行化同一计数器的读改写。
//
// 三种后端：
//   - redis：SET NX + 随机 token，watchdog 按 TTL/3 续期，Lua 脚本校验 token 后释放；
//   - etcd：concurrency.Mutex，锁节点挂在 session 租约上，进程退出后自动删除；
//   - memory：进程内实现，用于单机部署与测试。
//
// 同一个 redis/etcd Locker 不可重入，重复加锁返回 ErrLockAlreadyHeld；
// memory Locker 在同一实例内等待释放，可被多个调用方共享。
package dlock

import (
	"context"
	"time"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
)

// Locker 分布式锁
type Locker interface {
	// Lock 阻塞直到加锁成功或 ctx 结束
	Lock(ctx context.Context, key string, opts ...LockOption) error

	// TryLock 非阻塞加锁，锁被占用时返回 false, nil
	TryLock(ctx context.Context, key string, opts ...LockOption) (bool, error)

	// Unlock 释放锁，只有持有者才能释放
	Unlock(ctx context.Context, key string) error

	// Close 释放 Locker 自身的资源，不关闭连接器
	Close() error
}

// New 按 cfg.Driver 创建 Locker
func New(cfg *Config, opts ...Option) (Locker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	c := *cfg
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.setDefaults()

	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With(clog.String("driver", string(c.Driver)))
	m, err := newLockMetrics(o.meter, string(c.Driver))
	if err != nil {
		return nil, err
	}

	switch c.Driver {
	case DriverRedis:
		if o.redisConnector == nil {
			return nil, ErrConnectorNil
		}
		return newRedis(o.redisConnector.GetClient(), &c, logger, m), nil
	case DriverEtcd:
		if o.etcdConnector == nil {
			return nil, ErrConnectorNil
		}
		return newEtcd(o.etcdConnector.GetClient(), &c, logger, m)
	default:
		return newMemory(&c, logger, m), nil
	}
}

type lockMetrics struct {
	driver string
	ops    metrics.Counter
	held   metrics.Histogram
}

func newLockMetrics(meter metrics.Meter, driver string) (*lockMetrics, error) {
	m := &lockMetrics{driver: driver}
	var err error
	if m.ops, err = meter.Counter("shardis_lock_total", "Distributed lock operations"); err != nil {
		return nil, err
	}
	if m.held, err = meter.Histogram("shardis_lock_hold_seconds", "Distributed lock hold duration",
		metrics.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *lockMetrics) observe(ctx context.Context, op string, err error) {
	m.ops.Inc(ctx,
		metrics.L("driver", m.driver),
		metrics.L(metrics.LabelOperation, op),
		metrics.L(metrics.LabelResult, metrics.Result(err)),
	)
}

func (m *lockMetrics) released(ctx context.Context, since time.Time) {
	m.held.Record(ctx, time.Since(since).Seconds(), metrics.L("driver", m.driver))
}
