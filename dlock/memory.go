package dlock

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

// memoryLocker 每个键一个容量为 1 的信号量，TTL 不生效
type memoryLocker struct {
	logger  clog.Logger
	metrics *lockMetrics

	mu   sync.Mutex
	sems map[string]chan struct{}
	held map[string]time.Time
}

func newMemory(_ *Config, logger clog.Logger, m *lockMetrics) Locker {
	return &memoryLocker{
		logger:  logger,
		metrics: m,
		sems:    make(map[string]chan struct{}),
		held:    make(map[string]time.Time),
	}
}

func (l *memoryLocker) sem(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.sems[key] = s
	}
	return s
}

func (l *memoryLocker) acquired(key string) {
	l.mu.Lock()
	l.held[key] = time.Now()
	l.mu.Unlock()
}

func (l *memoryLocker) Lock(ctx context.Context, key string, _ ...LockOption) error {
	select {
	case l.sem(key) <- struct{}{}:
		l.acquired(key)
		l.metrics.observe(ctx, "lock", nil)
		return nil
	case <-ctx.Done():
		l.metrics.observe(ctx, "lock", ctx.Err())
		return ctx.Err()
	}
}

func (l *memoryLocker) TryLock(ctx context.Context, key string, _ ...LockOption) (bool, error) {
	l.metrics.observe(ctx, "try_lock", nil)
	select {
	case l.sem(key) <- struct{}{}:
		l.acquired(key)
		return true, nil
	default:
		return false, nil
	}
}

func (l *memoryLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	since, ok := l.held[key]
	delete(l.held, key)
	s := l.sems[key]
	l.mu.Unlock()
	if !ok {
		return xerrors.Wrapf(ErrLockNotHeld, "key: %s", key)
	}

	<-s
	l.metrics.observe(ctx, "unlock", nil)
	l.metrics.released(ctx, since)
	return nil
}

func (l *memoryLocker) Close() error {
	return nil
}
