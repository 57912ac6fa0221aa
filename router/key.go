package router

import (
	"github.com/ceyewan/shardis/topology"
	"github.com/ceyewan/shardis/xerrors"
)

// ShardKey 分片键：所属集群加分片字段的值
//
// Value 可以是任意整数类型或字符串，不能为 nil、0 或空串。
type ShardKey struct {
	ClusterName string
	Value       any
}

// Key 构造分片键
func Key(cluster string, value any) ShardKey {
	return ShardKey{ClusterName: cluster, Value: value}
}

// Normalize 将分片键的值归一化到无符号整数空间
//
// 整数取绝对值，字符串使用集群配置的哈希算法。
func Normalize(value any, hash topology.HashAlgorithm) (uint64, error) {
	var v uint64
	switch x := value.(type) {
	case nil:
		return 0, xerrors.Wrap(ErrInvalidShardKey, "nil value")
	case int:
		v = abs(int64(x))
	case int8:
		v = abs(int64(x))
	case int16:
		v = abs(int64(x))
	case int32:
		v = abs(int64(x))
	case int64:
		v = abs(x)
	case uint:
		v = uint64(x)
	case uint8:
		v = uint64(x)
	case uint16:
		v = uint64(x)
	case uint32:
		v = uint64(x)
	case uint64:
		v = x
	case string:
		if x == "" {
			return 0, xerrors.Wrap(ErrInvalidShardKey, "empty string")
		}
		return hash.Sum(x), nil
	case []byte:
		if len(x) == 0 {
			return 0, xerrors.Wrap(ErrInvalidShardKey, "empty bytes")
		}
		return hash.Sum(string(x)), nil
	default:
		return 0, xerrors.Wrapf(ErrInvalidShardKey, "unsupported type %T", value)
	}

	if v == 0 {
		return 0, xerrors.Wrap(ErrInvalidShardKey, "zero value")
	}
	return v, nil
}

func abs(x int64) uint64 {
	if x < 0 {
		return uint64(-(x + 1)) + 1
	}
	return uint64(x)
}
