package topology

import (
	"strconv"
	"strings"

	"github.com/ceyewan/shardis/xerrors"
)

// Role 数据库角色：主库或第 N 代从库
//
// 零值为 Master。
type Role int

// Master 主库角色
const Master Role = 0

// Slave 返回第 n 代从库角色，n 从 0 开始
func Slave(n int) Role {
	if n < 0 {
		n = 0
	}
	return Role(n + 1)
}

// IsMaster 是否为主库
func (r Role) IsMaster() bool { return r <= Master }

// SlaveIndex 返回从库代号，主库返回 -1
func (r Role) SlaveIndex() int {
	if r.IsMaster() {
		return -1
	}
	return int(r) - 1
}

// String 返回 master、slave0、slave1 ……
func (r Role) String() string {
	if r.IsMaster() {
		return "master"
	}
	return "slave" + strconv.Itoa(r.SlaveIndex())
}

// ParseRole 解析角色名，大小写不敏感
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "master" || s == "" {
		return Master, nil
	}
	if rest, ok := strings.CutPrefix(s, "slave"); ok {
		if rest == "" {
			return Slave(0), nil
		}
		n, err := strconv.Atoi(rest)
		if err == nil && n >= 0 {
			return Slave(n), nil
		}
	}
	return Master, xerrors.Wrapf(ErrInvalidRole, "%q", s)
}
