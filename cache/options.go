package cache

import (
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/connector"
)

// Option 缓存组件选项
type Option func(*options)

type options struct {
	logger    clog.Logger
	redisConn connector.RedisConnector
}

// WithLogger 注入日志记录器，内部追加 Namespace "cache"
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("cache")
		}
	}
}

// WithRedisConnector 注入 Redis 连接器，redis 驱动必需
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConn = conn
	}
}
