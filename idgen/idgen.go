// Package idgen 为分片表分配集群范围内唯一的主键。
//
// 每个 (cluster, name) 对应一个计数器。AllocateBatch 在分布式锁内读出计数器 c，
// 返回 [c+1, c+n] 并写回 c+n；Allocate 从进程内的 FIFO 缓冲取号，缓冲耗尽时
// 以 BatchSize 为批量补充。同一进程内对同一计数器的访问先经过本地互斥锁，
// 再竞争分布式锁。
//
// 基本使用：
//
//	store, _ := idgen.NewStore(&idgen.Config{Driver: idgen.DriverEtcd}, idgen.WithEtcdConnector(etcdConn))
//	locker, _ := dlock.New(&dlock.Config{Driver: dlock.DriverEtcd}, dlock.WithEtcdConnector(etcdConn))
//	ids, _ := idgen.New(store, locker, &idgen.Config{BatchSize: 100})
//
//	id, _ := ids.Allocate(ctx, "c1", "user")
package idgen

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/dlock"
	"github.com/ceyewan/shardis/metrics"
	"github.com/ceyewan/shardis/xerrors"
)

// Allocator ID 分配器，并发安全
type Allocator struct {
	store   CounterStore
	locker  dlock.Locker
	cfg     Config
	logger  clog.Logger
	batches metrics.Counter

	mu   sync.Mutex
	seqs map[string]*sequence
}

// sequence 单个计数器的本地状态
type sequence struct {
	mu  sync.Mutex
	buf []int64
}

// New 创建 ID 分配器
func New(store CounterStore, locker dlock.Locker, cfg *Config, opts ...Option) (*Allocator, error) {
	if store == nil || locker == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "idgen: store and locker are required")
	}
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	batches, err := o.meter.Counter("shardis_idgen_batch_total", "ID batches fetched from the counter store")
	if err != nil {
		return nil, err
	}
	return &Allocator{
		store:   store,
		locker:  locker,
		cfg:     c,
		logger:  o.logger,
		batches: batches,
		seqs:    make(map[string]*sequence),
	}, nil
}

func (a *Allocator) sequence(key string) *sequence {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.seqs[key]
	if !ok {
		s = &sequence{}
		a.seqs[key] = s
	}
	return s
}

// Allocate 分配一个 ID
func (a *Allocator) Allocate(ctx context.Context, cluster, name string) (int64, error) {
	if cluster == "" || name == "" {
		return 0, xerrors.Wrap(ErrInvalidRequest, "cluster and name are required")
	}
	s := a.sequence(lockKey(cluster, name))
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 {
		ids, err := a.allocate(ctx, cluster, name, a.cfg.BatchSize)
		if err != nil {
			return 0, err
		}
		s.buf = ids
	}
	id := s.buf[0]
	s.buf = s.buf[1:]
	return id, nil
}

// AllocateBatch 直接从存储分配 n 个连续 ID，不经过本地缓冲
func (a *Allocator) AllocateBatch(ctx context.Context, cluster, name string, n int) ([]int64, error) {
	if cluster == "" || name == "" {
		return nil, xerrors.Wrap(ErrInvalidRequest, "cluster and name are required")
	}
	if n <= 0 {
		return nil, xerrors.Wrapf(ErrInvalidRequest, "batch size %d", n)
	}
	s := a.sequence(lockKey(cluster, name))
	s.mu.Lock()
	defer s.mu.Unlock()
	return a.allocate(ctx, cluster, name, n)
}

// Buffered 本地缓冲中剩余的 ID 数量
func (a *Allocator) Buffered(cluster, name string) int {
	s := a.sequence(lockKey(cluster, name))
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// allocate 调用方持有 sequence.mu；结果含 0 时有限次重试
func (a *Allocator) allocate(ctx context.Context, cluster, name string, n int) ([]int64, error) {
	for attempt := 0; ; attempt++ {
		ids, err := a.fetch(ctx, cluster, name, n)
		a.batches.Inc(ctx,
			metrics.L(metrics.LabelCluster, cluster),
			metrics.L(metrics.LabelName, name),
			metrics.L(metrics.LabelResult, metrics.Result(err)),
		)
		if err != nil {
			a.logger.ErrorContext(ctx, "fetch id batch failed",
				clog.String("cluster", cluster), clog.String("name", name), clog.Error(err))
			return nil, err
		}
		if !slices.Contains(ids, 0) {
			return ids, nil
		}
		if attempt >= a.cfg.MaxRetries {
			return nil, xerrors.Wrapf(ErrDegenerateID, "%s/%s after %d retries", cluster, name, attempt)
		}
		a.logger.WarnContext(ctx, "id batch contains zero, retrying",
			clog.String("cluster", cluster), clog.String("name", name), clog.Int("attempt", attempt+1))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.cfg.RetryInterval):
		}
	}
}

// fetch 在分布式锁内读出计数器 c，写回 c+n，返回 [c+1, c+n]
func (a *Allocator) fetch(ctx context.Context, cluster, name string, n int) (ids []int64, err error) {
	key := lockKey(cluster, name)
	if err := a.locker.Lock(ctx, key); err != nil {
		return nil, xerrors.Wrapf(err, "idgen: lock %s", key)
	}
	defer func() {
		if uerr := a.locker.Unlock(context.WithoutCancel(ctx), key); uerr != nil {
			a.logger.Warn("unlock counter failed", clog.String("key", key), clog.Error(uerr))
			if err == nil {
				ids, err = nil, xerrors.Wrapf(uerr, "idgen: unlock %s", key)
			}
		}
	}()

	c, err := a.store.Load(ctx, cluster, name)
	if err != nil {
		return nil, err
	}
	next := c + int64(n)
	if err := a.store.Store(ctx, cluster, name, next); err != nil {
		return nil, err
	}

	ids = make([]int64, n)
	for i := range ids {
		ids[i] = c + int64(i) + 1
	}
	a.logger.DebugContext(ctx, "id batch allocated",
		clog.String("key", key), clog.Int64("first", ids[0]), clog.Int64("last", next))
	return ids, nil
}

// lockKey 分布式锁键 <cluster>/<name>，由 Locker 加上前缀
func lockKey(cluster, name string) string {
	return cluster + "/" + name
}
