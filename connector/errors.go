package connector

import "github.com/ceyewan/shardis/xerrors"

var (
	ErrNotConnected = xerrors.New("connector: not connected")
	ErrConnection   = xerrors.New("connector: connection failed")
	ErrConfig       = xerrors.New("connector: invalid config")
	ErrHealthCheck  = xerrors.New("connector: health check failed")
	ErrDriver       = xerrors.New("connector: unsupported driver")
)
