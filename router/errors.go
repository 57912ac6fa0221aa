package router

import "github.com/ceyewan/shardis/xerrors"

// 路由错误都是调用方或配置问题，不应重试
var (
	ErrInvalidShardKey  = xerrors.WithCode(xerrors.New("router: invalid shard key"), xerrors.CodeRouting)
	ErrInvalidTableMeta = xerrors.WithCode(xerrors.New("router: invalid table meta"), xerrors.CodeRouting)
	ErrClusterMismatch  = xerrors.WithCode(xerrors.New("router: shard key cluster mismatch"), xerrors.CodeRouting)
	ErrUnknownCluster   = xerrors.WithCode(xerrors.New("router: unknown cluster"), xerrors.CodeRouting)
	ErrOutOfRange       = xerrors.WithCode(xerrors.New("router: shard key out of range"), xerrors.CodeRouting)
	ErrNoSuchRole       = xerrors.WithCode(xerrors.New("router: no database for role"), xerrors.CodeRouting)
	ErrNoGlobal         = xerrors.WithCode(xerrors.New("router: cluster has no global dataset"), xerrors.CodeRouting)
)
