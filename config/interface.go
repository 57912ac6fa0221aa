// Package config 为 shardis 提供统一的配置加载能力，基于 Viper 实现。
//
// 加载优先级（高到低）：环境变量 > .env 文件 > 环境特定配置 <name>.<env>.yaml > 基础配置。
// 环境由 <PREFIX>_ENV 指定，环境变量名为 <PREFIX>_ 加上 key 中 "." 替换为 "_" 的结果。
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{Name: "shardis", Paths: []string{"./config"}})
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//	topo, err := topology.Load(loader, "shardis")
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置，并开始监听文件变化
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体（mapstructure 标签）
	Unmarshal(v any) error

	// UnmarshalKey 将指定 key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听 key 的变化，ctx 取消后通道关闭
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 校验当前配置
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // file
	Timestamp time.Time
}
