package testkit

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ceyewan/shardis/topology"
)

// NewPostgreSQLDescriptor 启动一个 PostgreSQL 容器并返回指向其中数据库的描述符
func NewPostgreSQLDescriptor(t *testing.T, id string) *topology.Database {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("shardis"),
		postgres.WithUsername("shardis"),
		postgres.WithPassword("shardis"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgresql container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	return &topology.Database{
		ID:       id,
		Driver:   topology.DriverPostgres,
		Host:     host,
		Port:     port,
		Username: "shardis",
		Password: "shardis",
		Name:     "shardis",
	}
}
