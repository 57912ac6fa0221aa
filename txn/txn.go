// Package txn 提供进程内的事务协调器：多个资源在同一个 ctx 下登记为参与者，
// 由协调器统一做出一次提交或回滚决定，并在决定之后释放每个参与者恰好一次。
//
// 提交分两步：按登记顺序逐个 Prepare，任一失败则全部回滚；全部通过后逐个 Commit。
// SQL 资源的 Prepare 只是存活检查，不是持久化的投票，因此跨库原子性是尽力而为：
// Commit 阶段个别参与者失败时返回 ErrHeuristic。
//
//	ctx, tx := txn.Begin(ctx)
//	a, _ := resolver.Resolve(ctx, routeA, topology.Master) // 自动登记
//	b, _ := resolver.Resolve(ctx, routeB, topology.Master)
//	// ... 写 a、b
//	if err := tx.Commit(ctx); err != nil {
//		return err
//	}
package txn

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

// Participant 事务参与者
type Participant interface {
	// Prepare 检查参与者能否提交
	Prepare(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	// Release 释放底层资源，协调器保证只调用一次
	Release() error
}

// Status 事务状态
type Status int

const (
	StatusActive Status = iota
	StatusPreparing
	StatusCommitted
	StatusRolledBack
	StatusHeuristic
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusPreparing:
		return "preparing"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled_back"
	case StatusHeuristic:
		return "heuristic"
	}
	return "unknown"
}

// Transaction 一个协调事务，并发安全
type Transaction struct {
	id     string
	logger clog.Logger

	mu           sync.Mutex
	status       Status
	participants []Participant
}

// Option 事务选项
type Option func(*Transaction)

// WithLogger 设置日志记录器
func WithLogger(l clog.Logger) Option {
	return func(t *Transaction) {
		if l != nil {
			t.logger = l.WithNamespace("txn")
		}
	}
}

type ctxKey struct{}

// Begin 开启事务并放入返回的 ctx
func Begin(ctx context.Context, opts ...Option) (context.Context, *Transaction) {
	t := &Transaction{
		id:     uuid.NewString(),
		logger: clog.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With(clog.String("tx", t.id))
	return context.WithValue(ctx, ctxKey{}, t), t
}

// FromContext 取出 ctx 中的事务
func FromContext(ctx context.Context) (*Transaction, bool) {
	t, ok := ctx.Value(ctxKey{}).(*Transaction)
	return t, ok && t != nil
}

// ID 事务 ID
func (t *Transaction) ID() string { return t.id }

// Status 当前状态
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Active 事务是否仍可登记参与者
func (t *Transaction) Active() bool { return t.Status() == StatusActive }

// Enlist 登记参与者；事务结束后登记返回 ErrTxDone
func (t *Transaction) Enlist(p Participant) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusActive {
		return ErrTxDone
	}
	t.participants = append(t.participants, p)
	return nil
}

// Len 已登记的参与者数量
func (t *Transaction) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.participants)
}

// begin 切换到决定阶段，之后不再接受登记
func (t *Transaction) begin() ([]Participant, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusActive {
		return nil, ErrTxDone
	}
	t.status = StatusPreparing
	return t.participants, nil
}

func (t *Transaction) finish(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// Commit 准备并提交所有参与者
func (t *Transaction) Commit(ctx context.Context) error {
	ps, err := t.begin()
	if err != nil {
		return err
	}

	for i, p := range ps {
		if err := p.Prepare(ctx); err != nil {
			t.logger.Warn("prepare failed, rolling back", clog.Int("participant", i), clog.Error(err))
			rbErr := rollbackAll(ctx, ps)
			relErr := releaseAll(ps)
			t.finish(StatusRolledBack)
			return xerrors.Attach(ErrRolledBack, xerrors.Combine(err, rbErr, relErr))
		}
	}

	var errs []error
	committed := 0
	for i, p := range ps {
		if err := p.Commit(ctx); err != nil {
			t.logger.Error("commit failed", clog.Int("participant", i), clog.Error(err))
			errs = append(errs, err)
			continue
		}
		committed++
	}
	relErr := releaseAll(ps)

	switch {
	case len(errs) == 0:
		t.finish(StatusCommitted)
		t.logger.Debug("committed", clog.Int("participants", len(ps)))
		return relErr
	case committed == 0:
		t.finish(StatusRolledBack)
		return xerrors.Attach(ErrCommitFailed, xerrors.Combine(append(errs, relErr)...))
	default:
		t.finish(StatusHeuristic)
		return xerrors.Attach(ErrHeuristic, xerrors.Combine(append(errs, relErr)...))
	}
}

// Rollback 回滚并释放所有参与者
func (t *Transaction) Rollback(ctx context.Context) error {
	ps, err := t.begin()
	if err != nil {
		return err
	}
	rbErr := rollbackAll(ctx, ps)
	relErr := releaseAll(ps)
	t.finish(StatusRolledBack)
	t.logger.Debug("rolled back", clog.Int("participants", len(ps)))
	return xerrors.Combine(rbErr, relErr)
}

func rollbackAll(ctx context.Context, ps []Participant) error {
	var errs []error
	for _, p := range ps {
		if err := p.Rollback(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return xerrors.Combine(errs...)
}

func releaseAll(ps []Participant) error {
	var errs []error
	for _, p := range ps {
		if err := p.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return xerrors.Combine(errs...)
}
