package dlock

import "github.com/ceyewan/shardis/xerrors"

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.WithCode(xerrors.New("dlock: config is nil"), xerrors.CodeConfig)

	// ErrConnectorNil 所选驱动缺少连接器
	ErrConnectorNil = xerrors.WithCode(xerrors.New("dlock: connector is nil"), xerrors.CodeConfig)

	// ErrLockNotHeld 锁未持有
	ErrLockNotHeld = xerrors.New("dlock: lock not held")

	// ErrLockAlreadyHeld 同一 Locker 已持有该锁
	ErrLockAlreadyHeld = xerrors.New("dlock: lock already held locally")

	// ErrOwnershipLost 锁在释放前已过期或被他人获取
	ErrOwnershipLost = xerrors.New("dlock: ownership lost")
)
