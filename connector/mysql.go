package connector

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ceyewan/shardis/xerrors"
)

// NewMySQL 创建 MySQL 连接器，实际连接在 Connect 时建立
func NewMySQL(cfg *MySQLConfig, opts ...Option) (SQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "mysql: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local&timeout=%s",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Charset, cfg.ConnectTimeout)
	}

	dialector := func() gorm.Dialector {
		return mysql.New(mysql.Config{DSN: dsn, DefaultStringSize: 256})
	}
	return newGormConnector(DriverMySQL, cfg.Name, dialector, cfg.Pool, cfg.SlowThreshold, cfg.ConnectTimeout, applyOptions(opts)), nil
}
