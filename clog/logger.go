// Package clog 为 shardis 提供基于 slog 的结构化日志组件。
//
// 所有组件通过 WithLogger 选项注入 Logger，并使用 WithNamespace 派生自己的命名空间，
// 例如 router、resource、idgen、dbcache。未注入时组件使用 Discard()。
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json"},
//	    clog.WithNamespace("shardis"),
//	    clog.WithContextField(txKey{}, "tx_id"),
//	)
//	logger.Info("route resolved", clog.String("cluster", "c1"), clog.Int("table_index", 2))
package clog

import "context"

// Logger 日志接口
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// 带 Context 的版本会按 WithContextField 配置从 ctx 中提取字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建带有预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 追加命名空间，例如 "shardis" + "router" => "shardis.router"
	WithNamespace(parts ...string) Logger

	// SetLevel 运行时调整级别，对同一 handler 派生出的所有 Logger 生效
	SetLevel(level Level) error

	// Flush 同步缓冲区
	Flush()
}
