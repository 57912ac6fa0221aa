package shard

import (
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/connector"
	"github.com/ceyewan/shardis/metrics"
)

// Option 引擎选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	redis  connector.RedisConnector
	etcd   connector.EtcdConnector
}

// WithLogger 设置日志记录器，各组件在其下派生自己的命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithRedisConnector 缓存、锁与计数器的 redis 驱动使用的连接器，由调用方负责关闭
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redis = conn
	}
}

// WithEtcdConnector 锁与计数器的 etcd 驱动使用的连接器，由调用方负责关闭
func WithEtcdConnector(conn connector.EtcdConnector) Option {
	return func(o *options) {
		o.etcd = conn
	}
}
