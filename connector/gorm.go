package connector

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

// 驱动名
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// gormConnector MySQL/PostgreSQL/SQLite 共用的实现，只有 Dialector 不同
type gormConnector struct {
	driver         string
	name           string
	dialector      func() gorm.Dialector
	pool           PoolConfig
	slowThreshold  time.Duration
	connectTimeout time.Duration

	logger  clog.Logger
	metrics *connectMetrics

	mu      sync.RWMutex
	db      *gorm.DB
	healthy atomic.Bool
}

func newGormConnector(driver, name string, dialector func() gorm.Dialector, pool PoolConfig,
	slow, connectTimeout time.Duration, o *options) *gormConnector {
	return &gormConnector{
		driver:         driver,
		name:           name,
		dialector:      dialector,
		pool:           pool,
		slowThreshold:  slow,
		connectTimeout: connectTimeout,
		logger:         o.logger.With(clog.String("connector", driver), clog.String("name", name)),
		metrics:        newConnectMetrics(o.meter),
	}
}

// Connect 打开 GORM 实例、配置连接池并 Ping
func (c *gormConnector) Connect(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}
	defer func() { c.metrics.observe(ctx, c.driver, c.name, err) }()

	c.logger.Info("connecting")

	db, err := gorm.Open(c.dialector(), &gorm.Config{
		Logger:                 newGormLogger(c.logger, c.slowThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		c.logger.Error("open failed", clog.Error(err))
		return xerrors.Attach(ErrConnection, xerrors.Wrapf(err, "%s connector[%s]", c.driver, c.name))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return xerrors.Attach(ErrConnection, err)
	}
	sqlDB.SetMaxOpenConns(c.pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(c.pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(c.pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(c.pool.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		c.logger.Error("ping failed", clog.Error(err))
		return xerrors.Attach(ErrConnection, xerrors.Wrapf(err, "%s connector[%s]: ping", c.driver, c.name))
	}

	c.db = db
	c.healthy.Store(true)
	c.logger.Info("connected", clog.Int("max_open_conns", c.pool.MaxOpenConns))
	return nil
}

func (c *gormConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}

	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.db = nil
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("close failed", clog.Error(err))
		return err
	}
	c.logger.Info("closed")
	return nil
}

func (c *gormConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()

	if db == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrNotConnected, "%s connector[%s]", c.driver, c.name)
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("health check failed", clog.Error(err))
		return xerrors.Attach(ErrHealthCheck, err)
	}

	c.healthy.Store(true)
	return nil
}

func (c *gormConnector) IsHealthy() bool { return c.healthy.Load() }

func (c *gormConnector) Name() string { return c.name }

func (c *gormConnector) Driver() string { return c.driver }

func (c *gormConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Stats 返回 database/sql 连接池统计，未连接时返回零值
func (c *gormConnector) Stats() sql.DBStats {
	db := c.GetClient()
	if db == nil {
		return sql.DBStats{}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return sql.DBStats{}
	}
	return sqlDB.Stats()
}
