package resource

import (
	"context"
	"database/sql"
	"sync"

	"gorm.io/gorm"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/router"
	"github.com/ceyewan/shardis/xerrors"
)

type state int

const (
	stateOpen state = iota
	stateCommitted
	stateRolledBack
)

// Resource 绑定在一个路由位置上的数据库资源
//
// 资源不在 goroutine 之间共享：一次解析只服务一个调用方的工作单元。
type Resource struct {
	entry  *entry
	route  router.Route
	db     *gorm.DB
	conn   *sql.Conn
	logger clog.Logger

	enlisted bool

	mu     sync.Mutex
	state  state
	closed bool
}

// DB 返回绑定在资源事务上的 GORM 句柄
func (r *Resource) DB() *gorm.DB { return r.db }

// Table 物理表名
func (r *Resource) Table() string { return r.entry.id.PhysicalTable() }

// Identity 资源身份
func (r *Resource) Identity() Identity { return r.entry.id }

// Meta 缓存的库元数据
func (r *Resource) Meta() Meta { return r.entry.meta }

// Route 解析所用的路由结果
func (r *Resource) Route() router.Route { return r.route }

// Enlisted 是否登记在事务中
func (r *Resource) Enlisted() bool { return r.enlisted }

// Commit 提交自治资源；登记在事务中时返回 ErrEnlisted
func (r *Resource) Commit(ctx context.Context) error {
	if r.enlisted {
		return ErrEnlisted
	}
	return r.commit()
}

// Rollback 回滚自治资源；登记在事务中时返回 ErrEnlisted
func (r *Resource) Rollback(ctx context.Context) error {
	if r.enlisted {
		return ErrEnlisted
	}
	return r.rollback()
}

// Close 归还连接；尚未提交或回滚时先回滚。登记在事务中时为空操作
func (r *Resource) Close() error {
	if r.enlisted {
		return nil
	}
	return r.release()
}

func (r *Resource) commit() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state != stateOpen {
		return ErrAlreadyFinished
	}
	r.state = stateCommitted
	if err := r.db.Commit().Error; err != nil {
		return xerrors.Wrapf(err, "resource: commit %s", r.entry.id)
	}
	return nil
}

func (r *Resource) rollback() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state != stateOpen {
		return ErrAlreadyFinished
	}
	r.state = stateRolledBack
	if err := r.db.Rollback().Error; err != nil {
		return xerrors.Wrapf(err, "resource: rollback %s", r.entry.id)
	}
	return nil
}

func (r *Resource) release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var rbErr error
	if r.state == stateOpen {
		r.state = stateRolledBack
		rbErr = r.db.Rollback().Error
		if rbErr != nil {
			r.logger.Warn("rollback on close failed", clog.String("identity", r.entry.id.String()), clog.Error(rbErr))
		}
	}
	return xerrors.Combine(rbErr, r.conn.Close())
}

// ping 在事务内执行 SELECT 1，事务已被驱动结束时返回错误
func (r *Resource) ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.state != stateOpen {
		return ErrAlreadyFinished
	}
	if err := r.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return xerrors.Wrapf(err, "resource: prepare %s", r.entry.id)
	}
	return nil
}

// participant 事务协调器看到的资源，绕过 Resource 对登记状态的拦截
type participant struct {
	res *Resource
}

func (p participant) Prepare(ctx context.Context) error { return p.res.ping(ctx) }

func (p participant) Commit(context.Context) error { return p.res.commit() }

func (p participant) Rollback(context.Context) error {
	err := p.res.rollback()
	if xerrors.Is(err, ErrAlreadyFinished) {
		return nil
	}
	return err
}

func (p participant) Release() error { return p.res.release() }
