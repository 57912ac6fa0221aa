package dbcache

import (
	"time"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
)

const (
	// DefaultRowTTL 行与计数缓存的过期时间
	DefaultRowTTL = 30 * time.Minute
	// DefaultQueryTTL 查询结果缓存的过期时间
	DefaultQueryTTL = 30 * time.Second
)

// Config 缓存协调配置
type Config struct {
	RowTTL   time.Duration `mapstructure:"row_ttl" json:"row_ttl" yaml:"row_ttl"`
	QueryTTL time.Duration `mapstructure:"query_ttl" json:"query_ttl" yaml:"query_ttl"`
}

func (c *Config) setDefaults() {
	if c.RowTTL <= 0 {
		c.RowTTL = DefaultRowTTL
	}
	if c.QueryTTL <= 0 {
		c.QueryTTL = DefaultQueryTTL
	}
}

// Option 选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 设置日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("dbcache")
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

func applyOptions(opts []Option) *options {
	o := &options{logger: clog.Discard(), meter: metrics.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
