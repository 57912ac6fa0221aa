package cache

import (
	"strings"

	"github.com/ceyewan/shardis/xerrors"
)

const (
	// DriverRedis 分布式缓存，数据存放在 Redis
	DriverRedis = "redis"
	// DriverMemory 进程内缓存，基于 otter
	DriverMemory = "memory"
)

// Config 缓存组件配置
type Config struct {
	// Driver "redis" | "memory"，默认 memory
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`

	// Prefix 全局 Key 前缀，默认 "shardis:"
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`

	// Serializer "json" | "msgpack"，默认 json
	Serializer string `mapstructure:"serializer" json:"serializer" yaml:"serializer"`

	// Memory 进程内缓存配置
	Memory MemoryConfig `mapstructure:"memory" json:"memory" yaml:"memory"`
}

// MemoryConfig 进程内缓存配置
type MemoryConfig struct {
	// Capacity 最大条目数，默认 10000
	Capacity int `mapstructure:"capacity" json:"capacity" yaml:"capacity"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.Prefix == "" {
		c.Prefix = "shardis:"
	}
	if c.Serializer == "" {
		c.Serializer = "json"
	}
	if c.Memory.Capacity <= 0 {
		c.Memory.Capacity = 10000
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Driver) {
	case DriverRedis, DriverMemory:
	default:
		return xerrors.Wrapf(ErrConfig, "unsupported driver %q", c.Driver)
	}
	return nil
}
