package config

import "github.com/ceyewan/shardis/xerrors"

// ErrValidationFailed 配置校验失败
var ErrValidationFailed = xerrors.New("config: validation failed")

// IsInvalid 判断错误是否为配置无效
func IsInvalid(err error) bool {
	return xerrors.IsAny(err, ErrValidationFailed, xerrors.ErrInvalidInput)
}
