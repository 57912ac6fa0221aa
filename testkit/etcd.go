package testkit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/shardis/connector"
)

// NewEtcdContainerConfig 启动单节点 Etcd 容器并返回连接配置
func NewEtcdContainerConfig(t *testing.T) *connector.EtcdConfig {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "quay.io/coreos/etcd:v3.5.9")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2379")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:      "test-etcd",
		Endpoints: []string{fmt.Sprintf("%s:%s", host, port.Port())},
	}
}

// NewEtcdConnector 返回已连接的 Etcd 连接器
func NewEtcdConnector(t *testing.T) connector.EtcdConnector {
	cfg := NewEtcdContainerConfig(t)
	conn, err := connector.NewEtcd(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to etcd")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// NewEtcdClient 返回原生 Etcd 客户端
func NewEtcdClient(t *testing.T) *clientv3.Client {
	return NewEtcdConnector(t).GetClient()
}
