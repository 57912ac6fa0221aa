package pool

import "github.com/ceyewan/shardis/xerrors"

var (
	// ErrPoolExhausted 等待 WaitTimeout 后仍未借到连接
	ErrPoolExhausted = xerrors.WithCode(xerrors.New("pool: exhausted"), xerrors.CodeResolve)

	// ErrClosed 连接池管理器已关闭
	ErrClosed = xerrors.New("pool: manager closed")
)
