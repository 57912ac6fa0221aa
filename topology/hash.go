package topology

import (
	"hash/fnv"
	"strings"
	"unicode/utf16"

	"github.com/cespare/xxhash/v2"

	"github.com/ceyewan/shardis/xerrors"
)

// HashAlgorithm 字符串分片键的归一化算法
//
// 算法在集群建立时选定，之后不可更改：更换算法会让已有数据的落点全部失效。
type HashAlgorithm string

const (
	// HashJava 31 为乘子的多项式哈希，按 UTF-16 编码单元计算后取绝对值（默认）
	HashJava HashAlgorithm = "java"
	// HashAdditive 字节累加
	HashAdditive HashAlgorithm = "additive"
	// HashRotating 移位异或
	HashRotating HashAlgorithm = "rotating"
	// HashBernstein djb2，33 为乘子
	HashBernstein HashAlgorithm = "bernstein"
	// HashFNV FNV-1a 64 位
	HashFNV HashAlgorithm = "fnv"
	// HashXXHash xxHash64
	HashXXHash HashAlgorithm = "xxhash"
)

// DefaultHash 未配置时使用的算法
const DefaultHash = HashJava

// ParseHashAlgorithm 解析算法名，空串返回默认算法
func ParseHashAlgorithm(s string) (HashAlgorithm, error) {
	switch h := HashAlgorithm(strings.ToLower(strings.TrimSpace(s))); h {
	case "":
		return DefaultHash, nil
	case "multiplicative":
		return HashBernstein, nil
	case "fnv1a":
		return HashFNV, nil
	case HashJava, HashAdditive, HashRotating, HashBernstein, HashFNV, HashXXHash:
		return h, nil
	default:
		return "", xerrors.Wrapf(ErrUnknownHash, "%q", s)
	}
}

// Sum 计算字符串的非负哈希值
func (h HashAlgorithm) Sum(s string) uint64 {
	switch h {
	case HashAdditive:
		return additiveHash(s)
	case HashRotating:
		return rotatingHash(s)
	case HashBernstein:
		return bernsteinHash(s)
	case HashFNV:
		f := fnv.New64a()
		_, _ = f.Write([]byte(s))
		return f.Sum64()
	case HashXXHash:
		return xxhash.Sum64String(s)
	default:
		return javaHash(s)
	}
}

func javaHash(s string) uint64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(c)
	}
	if h < 0 {
		return uint64(-int64(h))
	}
	return uint64(h)
}

func additiveHash(s string) uint64 {
	h := uint64(len(s))
	for i := 0; i < len(s); i++ {
		h += uint64(s[i])
	}
	return h
}

func rotatingHash(s string) uint64 {
	h := uint32(len(s))
	for i := 0; i < len(s); i++ {
		h = (h << 4) ^ (h >> 28) ^ uint32(s[i])
	}
	return uint64(h)
}

func bernsteinHash(s string) uint64 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = 33*h + uint32(s[i])
	}
	return uint64(h)
}
