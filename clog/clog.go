package clog

import "github.com/ceyewan/shardis/xerrors"

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用开发环境默认配置；opts 用于设置命名空间和 Context 字段提取。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, xerrors.Wrap(err, "clog: invalid config")
	}

	return newLogger(config, applyOptions(opts...))
}

// Must 与 New 相同，创建失败时 panic，用于 main 函数等初始化场景
func Must(config *Config, opts ...Option) Logger {
	return xerrors.Must(New(config, opts...))
}
