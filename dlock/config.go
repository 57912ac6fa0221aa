package dlock

import (
	"time"

	"github.com/ceyewan/shardis/xerrors"
)

// DriverType 锁后端
type DriverType string

const (
	DriverRedis  DriverType = "redis"
	DriverEtcd   DriverType = "etcd"
	DriverMemory DriverType = "memory"
)

// Config 分布式锁配置
type Config struct {
	// Driver redis | etcd | memory
	Driver DriverType `mapstructure:"driver" json:"driver" yaml:"driver"`

	// Prefix 锁键前缀，redis 默认 "shardis:lock:"，etcd 默认 "/shardis/lock/"
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`

	// DefaultTTL 锁租约时长，redis 由 watchdog 续期，etcd 由 session KeepAlive 续期
	DefaultTTL time.Duration `mapstructure:"default_ttl" json:"default_ttl" yaml:"default_ttl"`

	// RetryInterval Lock 轮询间隔（redis）
	RetryInterval time.Duration `mapstructure:"retry_interval" json:"retry_interval" yaml:"retry_interval"`
}

func (c *Config) setDefaults() {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 10 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 100 * time.Millisecond
	}
	if c.Prefix == "" {
		switch c.Driver {
		case DriverEtcd:
			c.Prefix = "/shardis/lock/"
		case DriverRedis:
			c.Prefix = "shardis:lock:"
		}
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverRedis, DriverEtcd, DriverMemory:
		return nil
	case "":
		return xerrors.WithCode(xerrors.New("dlock: driver is required"), xerrors.CodeConfig)
	default:
		return xerrors.WithCode(xerrors.New("dlock: unsupported driver: "+string(c.Driver)), xerrors.CodeConfig)
	}
}

// lockOptions 单次加锁参数
type lockOptions struct {
	ttl time.Duration
}

// LockOption 单次加锁选项
type LockOption func(*lockOptions)

// WithTTL 覆盖 DefaultTTL
func WithTTL(d time.Duration) LockOption {
	return func(o *lockOptions) {
		o.ttl = d
	}
}

func (c *Config) lockOptions(opts []LockOption) lockOptions {
	o := lockOptions{ttl: c.DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ttl <= 0 {
		o.ttl = c.DefaultTTL
	}
	return o
}
