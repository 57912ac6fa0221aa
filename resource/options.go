package resource

import (
	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
)

// Config 解析器配置
type Config struct {
	// HotIdentities 强引用热点层容量，0 使用默认值 1024，负数关闭热点层只保留弱引用
	HotIdentities int `mapstructure:"hot_identities" yaml:"hot_identities" json:"hot_identities"`
}

func (c *Config) setDefaults() {
	if c.HotIdentities == 0 {
		c.HotIdentities = 1024
	}
}

// Option 解析器选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 设置日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("resource")
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
