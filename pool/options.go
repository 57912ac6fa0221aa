package pool

import (
	"time"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
)

// DefaultWaitTimeout PoolConfig.WaitTimeout 为零时借连接的最长等待时间
const DefaultWaitTimeout = 5 * time.Second

// Option 连接池管理器选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 设置日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("pool")
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
