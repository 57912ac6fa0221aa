// Package testkit 提供 shardis 各组件测试共用的依赖：日志、指标、唯一 ID，
// 以及基于 testcontainers 的 Redis/Etcd/MySQL/PostgreSQL 与 SQLite 内存库。
//
// 依赖容器的函数在 -short 模式下直接 Skip。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	ctx, cancel := NewContext(t, 30*time.Second)
	t.Cleanup(cancel)
	return &Kit{
		Ctx:    ctx,
		Logger: NewLogger(),
		Meter:  NewMeter(),
	}
}

// NewLogger 返回一个用于测试的 logger，只输出 Warn 及以上
func NewLogger() clog.Logger {
	cfg := clog.NewDevDefaultConfig()
	cfg.Level = "warn"
	logger, err := clog.New(cfg, clog.WithNamespace("test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回一个启用但不监听端口的 meter
func NewMeter() metrics.Meter {
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "shardis-test"})
	if err != nil {
		return metrics.Discard()
	}
	return meter
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 Key、集群名或库名，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}

// SkipIfShort 在 -short 模式下跳过依赖容器的测试
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}
