// Package connector 管理 shardis 用到的外部连接：关系数据库（MySQL、PostgreSQL、SQLite，基于 GORM）、
// Redis 与 Etcd。
//
// 连接器拥有底层连接的生命周期，组件（pool、cache、dlock、idgen）只借用客户端，不负责关闭。
// NewXXX 只创建连接器，Connect 时才建立连接；Connect 与 Close 都是幂等的。
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//		connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//	if err := conn.Connect(ctx); err != nil {
//		return err
//	}
//	client := conn.GetClient()
package connector

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// Connector 所有连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接，重复调用直接返回 nil
	Connect(ctx context.Context) error

	// Close 关闭连接，重复调用直接返回 nil
	Close() error

	// HealthCheck 发送探测请求，并更新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次探测的结果，不阻塞
	IsHealthy() bool

	// Name 连接器实例名称，用于日志与指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Connect 之前或 Close 之后可能为 nil
	GetClient() T
}

// SQLConnector 关系数据库连接器
type SQLConnector interface {
	TypedConnector[*gorm.DB]

	// Driver 返回驱动名：mysql|postgres|sqlite
	Driver() string

	// Stats 返回 database/sql 连接池统计
	Stats() sql.DBStats
}

// RedisConnector Redis 连接器
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// EtcdConnector Etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
