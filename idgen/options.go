package idgen

import (
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/connector"
	"github.com/ceyewan/shardis/metrics"
)

// Option 组件初始化选项
type Option func(*options)

type options struct {
	logger         clog.Logger
	meter          metrics.Meter
	redisConnector connector.RedisConnector
	etcdConnector  connector.EtcdConnector
}

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger 设置日志记录器，内部追加 Namespace "idgen"
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("idgen")
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

// WithRedisConnector redis 计数器存储使用的连接器
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConnector = conn
	}
}

// WithEtcdConnector etcd 计数器存储使用的连接器
func WithEtcdConnector(conn connector.EtcdConnector) Option {
	return func(o *options) {
		o.etcdConnector = conn
	}
}
