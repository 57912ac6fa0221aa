package connector

import (
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ceyewan/shardis/xerrors"
)

// NewSQLite 创建 SQLite 连接器，适合测试与嵌入式部署
//
// 内存数据库（mode=memory 或 :memory:）在最后一个连接关闭时销毁，
// 因此这类 DSN 不回收空闲连接。
func NewSQLite(cfg *SQLiteConfig, opts ...Option) (SQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "sqlite: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	pool := cfg.Pool
	if isMemoryDSN(cfg.Path) {
		pool.ConnMaxIdleTime = -1
		pool.ConnMaxLifetime = -1
	}

	path := cfg.Path
	dialector := func() gorm.Dialector {
		return sqlite.Open(path)
	}
	return newGormConnector(DriverSQLite, cfg.Name, dialector, pool, cfg.SlowThreshold, 5*time.Second, applyOptions(opts)), nil
}

func isMemoryDSN(path string) bool {
	return strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
}
