package connector

import (
	"time"

	"github.com/ceyewan/shardis/xerrors"
)

// PoolConfig database/sql 连接池配置
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // 最大打开连接数 (默认: 50)
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // 最大空闲连接数 (默认: 10)
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期 (默认: 1h)
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // 空闲连接回收时间 (默认: 10m，0 表示不回收)
}

func (p *PoolConfig) setDefaults() {
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = 50
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = 10
	}
	if p.MaxIdleConns > p.MaxOpenConns {
		p.MaxIdleConns = p.MaxOpenConns
	}
	if p.ConnMaxLifetime == 0 {
		p.ConnMaxLifetime = time.Hour
	}
	if p.ConnMaxIdleTime == 0 {
		p.ConnMaxIdleTime = 10 * time.Minute
	}
}

// MySQLConfig MySQL 连接配置
type MySQLConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	// DSN 非空时忽略 Host/Port 等字段
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"` // 默认: 3306
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Charset  string `mapstructure:"charset"` // 默认: utf8mb4

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"` // 默认: 5s
	SlowThreshold  time.Duration `mapstructure:"slow_threshold"`  // 慢 SQL 阈值 (默认: 200ms)
	Pool           PoolConfig    `mapstructure:",squash"`
}

func (c *MySQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	c.Pool.setDefaults()
}

func (c *MySQLConfig) validate() error {
	c.setDefaults()
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return xerrors.Wrap(ErrConfig, "mysql: host is required")
	}
	if c.Username == "" {
		return xerrors.Wrap(ErrConfig, "mysql: username is required")
	}
	if c.Database == "" {
		return xerrors.Wrap(ErrConfig, "mysql: database is required")
	}
	return nil
}

// PostgreSQLConfig PostgreSQL 连接配置
type PostgreSQLConfig struct {
	Name string `mapstructure:"name"`

	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"` // 默认: 5432
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`  // 默认: disable
	Timezone string `mapstructure:"timezone"` // 默认: UTC

	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	SlowThreshold  time.Duration `mapstructure:"slow_threshold"`
	Pool           PoolConfig    `mapstructure:",squash"`
}

func (c *PostgreSQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	c.Pool.setDefaults()
}

func (c *PostgreSQLConfig) validate() error {
	c.setDefaults()
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return xerrors.Wrap(ErrConfig, "postgresql: host is required")
	}
	if c.Username == "" {
		return xerrors.Wrap(ErrConfig, "postgresql: username is required")
	}
	if c.Database == "" {
		return xerrors.Wrap(ErrConfig, "postgresql: database is required")
	}
	return nil
}

// SQLiteConfig SQLite 连接配置
type SQLiteConfig struct {
	Name string `mapstructure:"name"`

	// Path 文件路径或 DSN，例如 "file:d1?mode=memory&cache=shared"
	Path string `mapstructure:"path"`

	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	Pool          PoolConfig    `mapstructure:",squash"`
}

func (c *SQLiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = 200 * time.Millisecond
	}
	c.Pool.setDefaults()
}

func (c *SQLiteConfig) validate() error {
	c.setDefaults()
	if c.Path == "" {
		return xerrors.Wrap(ErrConfig, "sqlite: path is required")
	}
	return nil
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name     string `mapstructure:"name"`
	Addr     string `mapstructure:"addr"` // [必填] 例如 "127.0.0.1:6379"
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int           `mapstructure:"pool_size"`      // 默认: 10
	MinIdleConns int           `mapstructure:"min_idle_conns"` // 默认: 0
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // 默认: 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // 默认: 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // 默认: 3s
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 0
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.Wrap(ErrConfig, "redis: addr is required")
	}
	if c.DB < 0 {
		return xerrors.Wrap(ErrConfig, "redis: db must not be negative")
	}
	return nil
}

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	Name      string   `mapstructure:"name"`
	Endpoints []string `mapstructure:"endpoints"` // [必填]
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`

	DialTimeout      time.Duration `mapstructure:"dial_timeout"`       // 默认: 5s
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time"`    // 默认: 10s
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"` // 默认: 3s
}

func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	c.setDefaults()
	if len(c.Endpoints) == 0 {
		return xerrors.Wrap(ErrConfig, "etcd: endpoints are required")
	}
	return nil
}
