// Package metrics 基于 OpenTelemetry 提供 Counter、Gauge、Histogram 指标接口，
// 通过 Prometheus exporter 暴露。
//
// 各组件通过 WithMeter 选项注入 Meter，未注入时使用 Discard()：
//
//	meter, _ := metrics.New(&metrics.Config{Enabled: true, Port: 9090})
//	defer meter.Shutdown(ctx)
//
//	engine, _ := shard.New(topo, shard.WithMeter(meter))
package metrics

import "context"

// Counter 只增不减的累计值，例如路由次数、缓存命中数
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可增可减的瞬时值，例如连接池中打开的连接数
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 值的分布，例如资源解析耗时
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂，创建出的指标可并发使用
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 刷新并关闭，通常在进程退出时调用
	Shutdown(ctx context.Context) error
}

// MetricOption 指标选项
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项集合
type MetricOptions struct {
	Unit string
}

// WithUnit 设置指标单位，例如 "s"、"By"
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}
