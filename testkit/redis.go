package testkit

import (
	"context"
	"fmt"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ceyewan/shardis/connector"
)

// NewRedisContainerConfig 启动 Redis 容器并返回连接配置
// 生命周期由 t.Cleanup 管理
func NewRedisContainerConfig(t *testing.T) *connector.RedisConfig {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := redis.RunContainer(ctx, testcontainers.WithImage("redis:7-alpine"))
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return &connector.RedisConfig{
		Name:     "test-redis",
		Addr:     fmt.Sprintf("%s:%s", host, port.Port()),
		PoolSize: 10,
	}
}

// NewRedisConnector 返回已连接的 Redis 连接器
func NewRedisConnector(t *testing.T) connector.RedisConnector {
	cfg := NewRedisContainerConfig(t)
	conn, err := connector.NewRedis(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create redis connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to redis")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// NewRedisClient 返回原生 Redis 客户端
func NewRedisClient(t *testing.T) *goredis.Client {
	return NewRedisConnector(t).GetClient()
}
