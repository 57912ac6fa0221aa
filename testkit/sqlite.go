package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ceyewan/shardis/connector"
	"github.com/ceyewan/shardis/topology"
)

// SQLiteMemoryDSN 返回进程内共享的命名内存库 DSN，同名 DSN 指向同一个库
func SQLiteMemoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared"
}

// NewSQLiteDescriptor 返回一个指向独立内存库的拓扑描述符
// 库名追加随机后缀，不同测试之间互不干扰
func NewSQLiteDescriptor(id string) *topology.Database {
	return &topology.Database{
		ID:     id,
		Driver: topology.DriverSQLite,
		DSN:    SQLiteMemoryDSN(id + "_" + NewID()),
		Pool:   topology.PoolConfig{MaxOpenConns: 8, MaxIdleConns: 8},
	}
}

// NewSQLiteConnector 返回已连接的内存库连接器，生命周期由 t.Cleanup 管理
func NewSQLiteConnector(t *testing.T) connector.SQLConnector {
	conn, err := connector.NewSQLite(&connector.SQLiteConfig{
		Name: "test-sqlite",
		Path: SQLiteMemoryDSN("test_" + NewID()),
	}, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create sqlite connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to sqlite")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// NewSQLiteDB 返回内存库的 GORM 实例
func NewSQLiteDB(t *testing.T) *gorm.DB {
	return NewSQLiteConnector(t).GetClient()
}
