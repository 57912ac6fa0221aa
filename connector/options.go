package connector

import (
	"context"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// Option 连接器选项
type Option func(*options)

// WithLogger 设置日志记录器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// connectMetrics 记录所有连接器的连接尝试与结果
type connectMetrics struct {
	attempts metrics.Counter
}

func newConnectMetrics(meter metrics.Meter) *connectMetrics {
	c, err := meter.Counter("shardis_connector_connect_total", "Connector connect attempts")
	if err != nil {
		c, _ = metrics.Discard().Counter("", "")
	}
	return &connectMetrics{attempts: c}
}

func (m *connectMetrics) observe(ctx context.Context, kind, name string, err error) {
	m.attempts.Inc(ctx,
		metrics.L("connector", kind),
		metrics.L(metrics.LabelName, name),
		metrics.L(metrics.LabelResult, metrics.Result(err)),
	)
}
