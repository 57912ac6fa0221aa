package connector

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ceyewan/shardis/xerrors"
)

// NewPostgreSQL 创建 PostgreSQL 连接器，实际连接在 Connect 时建立
func NewPostgreSQL(cfg *PostgreSQLConfig, opts ...Option) (SQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "postgresql: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s connect_timeout=%d",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, cfg.SSLMode, cfg.Timezone,
			int(cfg.ConnectTimeout.Seconds()))
	}

	dialector := func() gorm.Dialector {
		return postgres.Open(dsn)
	}
	return newGormConnector(DriverPostgres, cfg.Name, dialector, cfg.Pool, cfg.SlowThreshold, cfg.ConnectTimeout, applyOptions(opts)), nil
}
