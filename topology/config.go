package topology

import "time"

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config 拓扑配置，对应配置文件中的 shardis 段
//
//	shardis:
//	  hash: java
//	  clusters:
//	    - name: c1
//	      catalog: app
//	      global:
//	        master: {id: g0, driver: mysql, host: 10.0.0.1, username: u, database: app}
//	      regions:
//	        - capacity: "1-100"
//	          masters: [{id: d1, ...}, {id: d2, ...}]
//	          slaves:
//	            - [{id: s1, ...}, {id: s2, ...}]
type Config struct {
	// Hash 字符串分片键的默认哈希算法 (默认: java)
	Hash     string          `mapstructure:"hash" yaml:"hash" json:"hash"`
	Clusters []ClusterConfig `mapstructure:"clusters" yaml:"clusters" json:"clusters"`
}

// ClusterConfig 单个集群配置
type ClusterConfig struct {
	Name    string `mapstructure:"name" yaml:"name" json:"name"`
	Catalog string `mapstructure:"catalog" yaml:"catalog" json:"catalog"`

	// Hash 覆盖全局哈希算法，为空时继承 Config.Hash
	Hash string `mapstructure:"hash" yaml:"hash" json:"hash"`

	Global  *GlobalConfig  `mapstructure:"global" yaml:"global" json:"global"`
	Regions []RegionConfig `mapstructure:"regions" yaml:"regions" json:"regions"`
}

// GlobalConfig 全局（不分片）数据集：一个主库和若干从库
type GlobalConfig struct {
	Master *Database   `mapstructure:"master" yaml:"master" json:"master"`
	Slaves []*Database `mapstructure:"slaves" yaml:"slaves" json:"slaves"`
}

// RegionConfig 分片区域配置
type RegionConfig struct {
	// Capacity 形如 "1-100,200-300"
	Capacity string        `mapstructure:"capacity" yaml:"capacity" json:"capacity"`
	Masters  []*Database   `mapstructure:"masters" yaml:"masters" json:"masters"`
	Slaves   [][]*Database `mapstructure:"slaves" yaml:"slaves" json:"slaves"`
}

// Database 物理数据库描述，路由只关心 ID，其余字段供连接池建连
type Database struct {
	ID     string `mapstructure:"id" yaml:"id" json:"id"`
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"` // mysql|postgres|sqlite

	// DSN 非空时忽略 Host 等字段；sqlite 必须填写
	DSN      string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port"`
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	Name     string `mapstructure:"database" yaml:"database" json:"database"`

	Pool PoolConfig `mapstructure:"pool" yaml:"pool" json:"pool"`

	// Role 由拓扑构建时根据所在位置填写
	Role Role `mapstructure:"-" yaml:"-" json:"-"`
}

// PoolConfig 连接池参数，零值字段使用连接器默认值
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time" json:"conn_max_idle_time"`

	// WaitTimeout 借连接的最长等待时间 (默认: 5s)
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout" json:"wait_timeout"`
}

// TableMeta 逻辑表元数据，由实体扫描方提供
//
// ShardingNum 为 0 表示全局表，大于 0 表示每个分片库上有 ShardingNum 张物理表。
type TableMeta struct {
	TableName       string
	ClusterName     string
	ShardingByField string
	ShardingNum     int
	CacheEnabled    bool
}

// IsGlobal 是否为全局表
func (m TableMeta) IsGlobal() bool { return m.ShardingNum == 0 }
