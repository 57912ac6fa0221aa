package dlock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

type redisLocker struct {
	client  *redis.Client
	cfg     *Config
	logger  clog.Logger
	metrics *lockMetrics

	mu    sync.Mutex
	locks map[string]*redisLease
}

// redisLease 本实例持有的一把锁
type redisLease struct {
	key      string
	token    string
	ttl      time.Duration
	acquired time.Time
	stop     chan struct{}
	done     chan struct{}
}

func newRedis(client *redis.Client, cfg *Config, logger clog.Logger, m *lockMetrics) Locker {
	return &redisLocker{
		client:  client,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		locks:   make(map[string]*redisLease),
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string, opts ...LockOption) error {
	lo := l.cfg.lockOptions(opts)
	ticker := time.NewTicker(l.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.acquire(ctx, key, lo)
		if err != nil || ok {
			l.metrics.observe(ctx, "lock", err)
			return err
		}
		select {
		case <-ctx.Done():
			l.metrics.observe(ctx, "lock", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *redisLocker) TryLock(ctx context.Context, key string, opts ...LockOption) (bool, error) {
	ok, err := l.acquire(ctx, key, l.cfg.lockOptions(opts))
	l.metrics.observe(ctx, "try_lock", err)
	return ok, err
}

func (l *redisLocker) acquire(ctx context.Context, key string, lo lockOptions) (bool, error) {
	l.mu.Lock()
	if _, held := l.locks[key]; held {
		l.mu.Unlock()
		return false, xerrors.Wrapf(ErrLockAlreadyHeld, "key: %s", key)
	}
	l.mu.Unlock()

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.cfg.Prefix+key, token, lo.ttl).Result()
	if err != nil {
		return false, xerrors.Wrapf(err, "dlock: acquire %s", key)
	}
	if !ok {
		return false, nil
	}

	lease := &redisLease{
		key:      key,
		token:    token,
		ttl:      lo.ttl,
		acquired: time.Now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	l.mu.Lock()
	if _, held := l.locks[key]; held {
		l.mu.Unlock()
		// 并发的另一次加锁已在本地登记，归还刚拿到的锁
		_ = releaseScript.Run(ctx, l.client, []string{l.cfg.Prefix + key}, token).Err()
		return false, xerrors.Wrapf(ErrLockAlreadyHeld, "key: %s", key)
	}
	l.locks[key] = lease
	l.mu.Unlock()

	go l.watchdog(lease)
	l.logger.DebugContext(ctx, "lock acquired", clog.String("key", key), clog.Duration("ttl", lo.ttl))
	return true, nil
}

// watchdog 每 TTL/3 续期一次，所有权丢失或续期失败后退出
func (l *redisLocker) watchdog(lease *redisLease) {
	defer close(lease.done)

	interval := max(lease.ttl/3, 100*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-lease.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := renewScript.Run(ctx, l.client, []string{l.cfg.Prefix + lease.key},
				lease.token, lease.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				l.logger.Error("watchdog renew failed", clog.String("key", lease.key), clog.Error(err))
				return
			}
			if n == 0 {
				l.logger.Warn("watchdog lost ownership", clog.String("key", lease.key))
				return
			}
		}
	}
}

func (l *redisLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	lease, held := l.locks[key]
	if !held {
		l.mu.Unlock()
		return xerrors.Wrapf(ErrLockNotHeld, "key: %s", key)
	}
	delete(l.locks, key)
	l.mu.Unlock()

	close(lease.stop)
	<-lease.done

	n, err := releaseScript.Run(ctx, l.client, []string{l.cfg.Prefix + key}, lease.token).Int64()
	switch {
	case err != nil:
		err = xerrors.Wrapf(err, "dlock: release %s", key)
	case n == 0:
		err = xerrors.Wrapf(ErrOwnershipLost, "key: %s", key)
	}
	l.metrics.observe(ctx, "unlock", err)
	l.metrics.released(ctx, lease.acquired)
	if err != nil {
		return err
	}
	l.logger.DebugContext(ctx, "lock released", clog.String("key", key))
	return nil
}

// Close 停止所有 watchdog，未释放的锁随 TTL 过期
func (l *redisLocker) Close() error {
	l.mu.Lock()
	leases := l.locks
	l.locks = make(map[string]*redisLease)
	l.mu.Unlock()

	for _, lease := range leases {
		close(lease.stop)
		<-lease.done
	}
	return nil
}
