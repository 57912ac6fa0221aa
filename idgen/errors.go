package idgen

import "github.com/ceyewan/shardis/xerrors"

var (
	// ErrDegenerateID 重试 MaxRetries 次后分配结果仍包含 0
	ErrDegenerateID = xerrors.WithCode(xerrors.New("idgen: allocated range contains zero"), xerrors.CodeAllocation)

	// ErrInvalidRequest 集群名、计数器名为空或批量大小非正
	ErrInvalidRequest = xerrors.WithCode(xerrors.New("idgen: invalid request"), xerrors.CodeAllocation)

	// ErrConnectorNil 所选驱动缺少连接器
	ErrConnectorNil = xerrors.WithCode(xerrors.New("idgen: connector is nil"), xerrors.CodeConfig)

	// ErrCorruptCounter 计数器节点的内容不是十进制整数
	ErrCorruptCounter = xerrors.WithCode(xerrors.New("idgen: counter is not a decimal integer"), xerrors.CodeAllocation)
)
