package resource

import (
	"strconv"
	"strings"
	"time"

	"github.com/ceyewan/shardis/router"
	"github.com/ceyewan/shardis/topology"
)

// Identity 资源身份：分片表为 (集群, 库, 表, 表下标, 区域区间, 角色)，全局表为 (集群, 库, 表, 角色)
//
// Identity 可比较，可直接用作 map 键。
type Identity struct {
	Cluster    string
	DatabaseID string
	Table      string
	TableIndex int
	RangeStart uint64
	RangeEnd   uint64
	Role       topology.Role
	Global     bool
}

// IdentityOf 由路由结果计算资源身份
func IdentityOf(rt router.Route) Identity {
	id := Identity{
		Cluster:    rt.Cluster.Name,
		DatabaseID: rt.Database.ID,
		Table:      rt.Table,
		TableIndex: -1,
		Role:       rt.Role,
		Global:     rt.Global,
	}
	if !rt.Global {
		id.TableIndex = rt.TableIndex
		id.RangeStart = rt.Region.Start()
		id.RangeEnd = rt.Region.End()
	}
	return id
}

// PhysicalTable 物理表名
func (id Identity) PhysicalTable() string {
	if id.Global {
		return id.Table
	}
	return router.PhysicalTableName(id.Table, id.TableIndex)
}

// CachePrefix 缓存键前缀，不含角色：主从读写共享同一份缓存
//
//	分片表 <cluster>.<dbId>.<start><end>.<table><idx>
//	全局表 <cluster>.<table>
func (id Identity) CachePrefix() string {
	var b strings.Builder
	b.WriteString(id.Cluster)
	b.WriteByte('.')
	if id.Global {
		b.WriteString(id.Table)
		return b.String()
	}
	b.WriteString(id.DatabaseID)
	b.WriteByte('.')
	b.WriteString(strconv.FormatUint(id.RangeStart, 10))
	b.WriteString(strconv.FormatUint(id.RangeEnd, 10))
	b.WriteByte('.')
	b.WriteString(id.PhysicalTable())
	return b.String()
}

// String 用于日志与 singleflight 键，包含角色
func (id Identity) String() string {
	return id.CachePrefix() + "@" + id.Role.String()
}

// Meta 首次解析时探测到的库元数据，同一身份的后续解析复用
type Meta struct {
	Dialect  string
	Host     string
	Catalog  string
	Database string
	ProbedAt time.Time
}
