// Package pool 为拓扑中的每个物理库维护一个连接池，并按需借出独占连接。
//
// 每个 Database.ID 对应一个 connector.SQLConnector，首次使用时创建，同一个库的并发首次调用
// 经 singleflight 合并为一次建连，建连期间不持有全局锁。连接器由 Manager 持有并在 Close 时统一关闭。Manager 由组合根显式创建并注入，不存在全局单例。
package pool

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/connector"
	"github.com/ceyewan/shardis/metrics"
	"github.com/ceyewan/shardis/topology"
	"github.com/ceyewan/shardis/xerrors"
)

// Manager 按库管理连接池
type Manager struct {
	logger clog.Logger
	meter  metrics.Meter
	open   metrics.Gauge

	mu     sync.RWMutex
	conns  map[string]connector.SQLConnector
	closed bool

	group   singleflight.Group
	newConn func(db *topology.Database) (connector.SQLConnector, error)
}

// New 创建连接池管理器
func New(opts ...Option) (*Manager, error) {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	open, err := o.meter.Gauge("shardis_pool_open", "Open connections per database")
	if err != nil {
		return nil, xerrors.Wrap(err, "pool: create gauge")
	}
	m := &Manager{
		logger: o.logger,
		meter:  o.meter,
		open:   open,
		conns:  make(map[string]connector.SQLConnector),
	}
	m.newConn = m.newConnector
	return m, nil
}

// DB 返回库的共享 GORM 句柄，必要时建立连接池
func (m *Manager) DB(ctx context.Context, db *topology.Database) (*gorm.DB, error) {
	conn, err := m.connector(ctx, db)
	if err != nil {
		return nil, err
	}
	return conn.GetClient(), nil
}

// Acquire 从库的连接池借出一个独占连接
//
// 最多等待 PoolConfig.WaitTimeout；超时返回 ErrPoolExhausted。调用方负责 Close 返回的连接。
func (m *Manager) Acquire(ctx context.Context, db *topology.Database) (*gorm.DB, *sql.Conn, error) {
	gdb, err := m.DB(ctx, db)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, xerrors.Wrapf(err, "pool: database %s", db.ID)
	}

	wait := db.Pool.WaitTimeout
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}
	acquireCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	conn, err := sqlDB.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			m.logger.Warn("pool exhausted", clog.String("database", db.ID), clog.Duration("wait", wait))
			return nil, nil, xerrors.Attach(ErrPoolExhausted, xerrors.Wrapf(err, "database %s", db.ID))
		}
		return nil, nil, xerrors.Wrapf(err, "pool: acquire %s", db.ID)
	}

	m.open.Set(ctx, float64(sqlDB.Stats().OpenConnections), metrics.L(metrics.LabelDatabase, db.ID))
	return gdb, conn, nil
}

// Stats 返回库的连接池统计，库尚未使用时 ok 为 false
func (m *Manager) Stats(dbID string) (sql.DBStats, bool) {
	m.mu.RLock()
	conn, ok := m.conns[dbID]
	m.mu.RUnlock()
	if !ok {
		return sql.DBStats{}, false
	}
	return conn.Stats(), true
}

// Databases 返回已建立连接池的库 ID
func (m *Manager) Databases() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.conns))
}

// Close 关闭所有连接池，返回合并后的错误
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for id, conn := range m.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, xerrors.Wrapf(err, "close %s", id))
		}
	}
	m.conns = nil
	m.logger.Info("pool manager closed")
	return xerrors.Combine(errs...)
}

// connector 读锁命中直接返回，否则经 singleflight 在锁外创建并连接，完成后再登记
func (m *Manager) connector(ctx context.Context, db *topology.Database) (connector.SQLConnector, error) {
	if db == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "pool: database is nil")
	}
	if conn, err := m.lookup(db.ID); conn != nil || err != nil {
		return conn, err
	}

	v, err, _ := m.group.Do(db.ID, func() (any, error) {
		if conn, err := m.lookup(db.ID); conn != nil || err != nil {
			return conn, err
		}

		conn, err := m.newConn(db)
		if err != nil {
			return nil, err
		}
		if err := conn.Connect(ctx); err != nil {
			_ = conn.Close()
			return nil, xerrors.Wrapf(err, "pool: connect %s", db.ID)
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// 建连期间 Manager 可能已关闭
		if m.closed {
			_ = conn.Close()
			return nil, ErrClosed
		}
		m.conns[db.ID] = conn
		m.logger.Info("pool created", clog.String("database", db.ID), clog.String("driver", db.Driver))
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(connector.SQLConnector), nil
}

func (m *Manager) lookup(id string) (connector.SQLConnector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	return m.conns[id], nil
}

func (m *Manager) newConnector(db *topology.Database) (connector.SQLConnector, error) {
	opts := []connector.Option{connector.WithLogger(m.logger), connector.WithMeter(m.meter)}
	pool := connector.PoolConfig{
		MaxOpenConns:    db.Pool.MaxOpenConns,
		MaxIdleConns:    db.Pool.MaxIdleConns,
		ConnMaxLifetime: db.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: db.Pool.ConnMaxIdleTime,
	}

	switch db.Driver {
	case topology.DriverMySQL:
		return connector.NewMySQL(&connector.MySQLConfig{
			Name:     db.ID,
			DSN:      db.DSN,
			Host:     db.Host,
			Port:     db.Port,
			Username: db.Username,
			Password: db.Password,
			Database: db.Name,
			Pool:     pool,
		}, opts...)
	case topology.DriverPostgres:
		return connector.NewPostgreSQL(&connector.PostgreSQLConfig{
			Name:     db.ID,
			DSN:      db.DSN,
			Host:     db.Host,
			Port:     db.Port,
			Username: db.Username,
			Password: db.Password,
			Database: db.Name,
			Pool:     pool,
		}, opts...)
	case topology.DriverSQLite:
		return connector.NewSQLite(&connector.SQLiteConfig{
			Name: db.ID,
			Path: db.DSN,
			Pool: pool,
		}, opts...)
	default:
		return nil, xerrors.Wrapf(connector.ErrDriver, "database %s: %q", db.ID, db.Driver)
	}
}
