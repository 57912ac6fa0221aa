package topology

import "github.com/ceyewan/shardis/xerrors"

var (
	// ErrInvalidTopology 拓扑配置不合法，集群无法启动
	ErrInvalidTopology = xerrors.WithCode(xerrors.New("topology: invalid topology"), xerrors.CodeConfig)

	// ErrInvalidCapacity capacity 属性格式错误或区间重叠
	ErrInvalidCapacity = xerrors.WithCode(xerrors.New("topology: invalid capacity"), xerrors.CodeConfig)

	// ErrUnknownHash 未知的哈希算法
	ErrUnknownHash = xerrors.WithCode(xerrors.New("topology: unknown hash algorithm"), xerrors.CodeConfig)

	// ErrInvalidRole 无法解析的角色名
	ErrInvalidRole = xerrors.New("topology: invalid role")
)
