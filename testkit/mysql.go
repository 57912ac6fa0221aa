package testkit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/ceyewan/shardis/topology"
)

// NewMySQLDescriptors 启动一个 MySQL 容器，在其中创建 names 指定的库，
// 返回对应的拓扑描述符（ID 即库名）
func NewMySQLDescriptors(t *testing.T, names ...string) []*topology.Database {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := mysql.Run(ctx,
		"mysql:8.0",
		mysql.WithDatabase("shardis"),
		mysql.WithUsername("root"),
		mysql.WithPassword("shardis"),
	)
	require.NoError(t, err, "failed to start mysql container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "3306")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	dbs := make([]*topology.Database, 0, len(names))
	for _, name := range names {
		code, _, err := container.Exec(ctx, []string{"mysql", "-uroot", "-pshardis", "-e", "CREATE DATABASE IF NOT EXISTS " + name})
		require.NoError(t, err)
		require.Zero(t, code, "create database %s", name)

		dbs = append(dbs, &topology.Database{
			ID:       name,
			Driver:   topology.DriverMySQL,
			Host:     host,
			Port:     port,
			Username: "root",
			Password: "shardis",
			Name:     name,
			Pool:     topology.PoolConfig{MaxOpenConns: 10, WaitTimeout: 10 * time.Second},
		})
	}
	return dbs
}
