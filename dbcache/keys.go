package dbcache

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/ceyewan/shardis/resource"
)

// WhereHash 查询条件的指纹，十六进制 xxhash
func WhereHash(where string) string {
	return strconv.FormatUint(xxhash.Sum64String(where), 16)
}

func rowKey(id resource.Identity, pk any) string {
	return id.CachePrefix() + "." + fmt.Sprint(pk)
}

func countKey(id resource.Identity) string {
	return id.CachePrefix() + ".count"
}

func generationKey(id resource.Identity) string {
	return id.CachePrefix() + ".gen"
}

func queryKey(id resource.Identity, gen int64, where string) string {
	return id.CachePrefix() + "." + strconv.FormatInt(gen, 10) + "." + WhereHash(where)
}
