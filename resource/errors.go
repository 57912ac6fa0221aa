package resource

import "github.com/ceyewan/shardis/xerrors"

var (
	// ErrEnlisted 资源已登记到事务，提交与回滚由协调器驱动
	ErrEnlisted = xerrors.WithCode(xerrors.New("resource: enlisted in transaction"), xerrors.CodeTxn)

	// ErrAlreadyFinished 资源已经提交或回滚过
	ErrAlreadyFinished = xerrors.WithCode(xerrors.New("resource: already committed or rolled back"), xerrors.CodeTxn)

	// ErrClosed 资源已关闭
	ErrClosed = xerrors.New("resource: closed")

	// ErrProbe 首次解析时探测库元数据失败，结果不缓存
	ErrProbe = xerrors.WithCode(xerrors.New("resource: metadata probe failed"), xerrors.CodeResolve)
)
