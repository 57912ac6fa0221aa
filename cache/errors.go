package cache

import "github.com/ceyewan/shardis/xerrors"

var (
	// ErrMiss 键不存在或已过期
	ErrMiss = xerrors.WithCode(xerrors.New("cache: miss"), xerrors.CodeCache)

	// ErrConfig 配置无效
	ErrConfig = xerrors.WithCode(xerrors.New("cache: invalid config"), xerrors.CodeConfig)

	// ErrNotInteger 对非计数器键执行整数操作
	ErrNotInteger = xerrors.WithCode(xerrors.New("cache: value is not an integer"), xerrors.CodeCache)

	// ErrClosed 缓存已关闭
	ErrClosed = xerrors.New("cache: closed")
)
