package shard

import (
	"github.com/ceyewan/shardis/cache"
	"github.com/ceyewan/shardis/dbcache"
	"github.com/ceyewan/shardis/dlock"
	"github.com/ceyewan/shardis/idgen"
	"github.com/ceyewan/shardis/resource"
)

// Config 引擎配置，拓扑单独通过 topology.Config 提供
//
// 配置文件中位于拓扑段下的 engine 子键：
//
//	shardis:
//	  hash: java
//	  clusters: [...]
//	  engine:
//	    cache: {driver: redis, serializer: msgpack}
//	    idgen: {driver: etcd, batch_size: 100}
type Config struct {
	Resource resource.Config `mapstructure:"resource" json:"resource" yaml:"resource"`
	Cache    cache.Config    `mapstructure:"cache" json:"cache" yaml:"cache"`
	DBCache  dbcache.Config  `mapstructure:"dbcache" json:"dbcache" yaml:"dbcache"`
	IDGen    idgen.Config    `mapstructure:"idgen" json:"idgen" yaml:"idgen"`

	// Lock 计数器使用的分布式锁，Driver 为空时与 IDGen.Driver 一致
	Lock dlock.Config `mapstructure:"lock" json:"lock" yaml:"lock"`

	// ScatterLimit Count 并发访问的分片数上限，默认 8
	ScatterLimit int `mapstructure:"scatter_limit" json:"scatter_limit" yaml:"scatter_limit"`
}

func (c *Config) setDefaults() {
	if c.Cache.Driver == "" {
		c.Cache.Driver = cache.DriverMemory
	}
	if c.IDGen.Driver == "" {
		c.IDGen.Driver = idgen.DriverMemory
	}
	if c.Lock.Driver == "" {
		c.Lock.Driver = dlock.DriverType(c.IDGen.Driver)
	}
	if c.ScatterLimit <= 0 {
		c.ScatterLimit = 8
	}
}
