package dlock

import (
	"context"
	"errors"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

type etcdLocker struct {
	client  *clientv3.Client
	session *concurrency.Session
	cfg     *Config
	logger  clog.Logger
	metrics *lockMetrics

	mu    sync.Mutex
	locks map[string]*etcdLease
}

type etcdLease struct {
	mutex    *concurrency.Mutex
	session  *concurrency.Session
	owned    bool // session 为本次加锁单独创建
	acquired time.Time
}

func newEtcd(client *clientv3.Client, cfg *Config, logger clog.Logger, m *lockMetrics) (Locker, error) {
	session, err := concurrency.NewSession(client, concurrency.WithTTL(ttlSeconds(cfg.DefaultTTL)))
	if err != nil {
		return nil, xerrors.Wrap(err, "dlock: create etcd session")
	}
	return &etcdLocker{
		client:  client,
		session: session,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		locks:   make(map[string]*etcdLease),
	}, nil
}

func ttlSeconds(d time.Duration) int {
	return max(int(d.Seconds()), 1)
}

func (l *etcdLocker) Lock(ctx context.Context, key string, opts ...LockOption) error {
	err := l.lock(ctx, key, false, l.cfg.lockOptions(opts))
	l.metrics.observe(ctx, "lock", err)
	return err
}

func (l *etcdLocker) TryLock(ctx context.Context, key string, opts ...LockOption) (bool, error) {
	err := l.lock(ctx, key, true, l.cfg.lockOptions(opts))
	if errors.Is(err, concurrency.ErrLocked) {
		l.metrics.observe(ctx, "try_lock", nil)
		return false, nil
	}
	l.metrics.observe(ctx, "try_lock", err)
	return err == nil, err
}

func (l *etcdLocker) lock(ctx context.Context, key string, try bool, lo lockOptions) error {
	l.mu.Lock()
	if _, held := l.locks[key]; held {
		l.mu.Unlock()
		return xerrors.Wrapf(ErrLockAlreadyHeld, "key: %s", key)
	}
	l.mu.Unlock()

	session, owned := l.session, false
	if lo.ttl != l.cfg.DefaultTTL {
		s, err := concurrency.NewSession(l.client, concurrency.WithTTL(ttlSeconds(lo.ttl)))
		if err != nil {
			return xerrors.Wrap(err, "dlock: create etcd session")
		}
		session, owned = s, true
	}

	mutex := concurrency.NewMutex(session, l.cfg.Prefix+key)
	var err error
	if try {
		err = mutex.TryLock(ctx)
	} else {
		err = mutex.Lock(ctx)
	}
	if err != nil {
		if owned {
			_ = session.Close()
		}
		if errors.Is(err, concurrency.ErrLocked) {
			return err
		}
		return xerrors.Wrapf(err, "dlock: lock %s", key)
	}

	l.mu.Lock()
	l.locks[key] = &etcdLease{mutex: mutex, session: session, owned: owned, acquired: time.Now()}
	l.mu.Unlock()

	l.logger.DebugContext(ctx, "lock acquired", clog.String("key", key), clog.String("node", mutex.Key()))
	return nil
}

func (l *etcdLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	lease, held := l.locks[key]
	if !held {
		l.mu.Unlock()
		return xerrors.Wrapf(ErrLockNotHeld, "key: %s", key)
	}
	delete(l.locks, key)
	l.mu.Unlock()

	err := lease.mutex.Unlock(ctx)
	if lease.owned {
		_ = lease.session.Close()
	}
	if err != nil {
		err = xerrors.Wrapf(err, "dlock: unlock %s", key)
	}
	l.metrics.observe(ctx, "unlock", err)
	l.metrics.released(ctx, lease.acquired)
	if err != nil {
		return err
	}
	l.logger.DebugContext(ctx, "lock released", clog.String("key", key))
	return nil
}

// Close 关闭 session，租约撤销后锁节点随之删除
func (l *etcdLocker) Close() error {
	l.mu.Lock()
	for key, lease := range l.locks {
		if lease.owned {
			_ = lease.session.Close()
		}
		delete(l.locks, key)
	}
	l.mu.Unlock()
	return l.session.Close()
}
