package idgen

import (
	"strings"
	"time"

	"github.com/ceyewan/shardis/xerrors"
)

const (
	DriverEtcd   = "etcd"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config ID 分配器配置
type Config struct {
	// Driver 计数器存储：etcd | redis | memory，默认 memory
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`

	// Root 计数器根路径，etcd 节点为 /<root>/<cluster>/<name>，redis 键为 <root>:<cluster>:<name>
	Root string `mapstructure:"root" json:"root" yaml:"root"`

	// BatchSize Allocate 每次向存储预取的 ID 数量
	BatchSize int `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size"`

	// MaxRetries 分配结果含 0 时的最大重试次数，0 使用默认值 3，负数表示不重试
	MaxRetries int `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`

	// RetryInterval 重试间隔
	RetryInterval time.Duration `mapstructure:"retry_interval" json:"retry_interval" yaml:"retry_interval"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	c.Root = strings.Trim(c.Root, "/:")
	if c.Root == "" {
		c.Root = "shardis/ids"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 10 * time.Millisecond
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverEtcd, DriverRedis, DriverMemory:
		return nil
	default:
		return xerrors.WithCode(xerrors.New("idgen: unsupported driver: "+c.Driver), xerrors.CodeConfig)
	}
}
