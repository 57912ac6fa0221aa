package topology

import (
	"slices"
	"strconv"
	"strings"

	"github.com/ceyewan/shardis/xerrors"
)

// Range 分片键闭区间 [Start, End]
type Range struct {
	Start uint64
	End   uint64
}

// Contains 判断 v 是否落在区间内
func (r Range) Contains(v uint64) bool {
	return r.Start <= v && v <= r.End
}

// Overlaps 判断两个区间是否相交
func (r Range) Overlaps(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// String 返回 "start-end"
func (r Range) String() string {
	return strconv.FormatUint(r.Start, 10) + "-" + strconv.FormatUint(r.End, 10)
}

// ParseCapacity 解析 capacity 属性 "start-end[,start-end...]"
//
// 每个区间要求 start <= end，同一属性内的区间两两不相交；返回的区间保持书写顺序。
func ParseCapacity(s string) ([]Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, xerrors.Wrap(ErrInvalidCapacity, "empty capacity")
	}

	var ranges []Range
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		startStr, endStr, ok := strings.Cut(part, "-")
		if !ok {
			return nil, xerrors.Wrapf(ErrInvalidCapacity, "%q: missing '-'", part)
		}
		start, err := strconv.ParseUint(strings.TrimSpace(startStr), 10, 64)
		if err != nil {
			return nil, xerrors.Wrapf(ErrInvalidCapacity, "%q: bad start", part)
		}
		end, err := strconv.ParseUint(strings.TrimSpace(endStr), 10, 64)
		if err != nil {
			return nil, xerrors.Wrapf(ErrInvalidCapacity, "%q: bad end", part)
		}
		if start > end {
			return nil, xerrors.Wrapf(ErrInvalidCapacity, "%q: start greater than end", part)
		}
		ranges = append(ranges, Range{Start: start, End: end})
	}

	if err := checkDisjoint(ranges); err != nil {
		return nil, err
	}
	return ranges, nil
}

// checkDisjoint 检查区间两两不相交
func checkDisjoint(ranges []Range) error {
	sorted := slices.Clone(ranges)
	slices.SortFunc(sorted, func(a, b Range) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Overlaps(sorted[i]) {
			return xerrors.Wrapf(ErrInvalidCapacity, "%s overlaps %s", sorted[i-1], sorted[i])
		}
	}
	return nil
}
