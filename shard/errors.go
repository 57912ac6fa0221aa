package shard

import "github.com/ceyewan/shardis/xerrors"

// ErrClosed 引擎已关闭
var ErrClosed = xerrors.New("shard: engine closed")
