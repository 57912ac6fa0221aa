package connector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/shardis/clog"
	"github.com/ceyewan/shardis/xerrors"
)

// healthKey 探测用的键，不存在时 Get 也会成功
const healthKey = "/shardis/health-check"

type etcdConnector struct {
	cfg     *EtcdConfig
	client  *clientv3.Client
	logger  clog.Logger
	metrics *connectMetrics
	healthy atomic.Bool
	mu      sync.Mutex
	closed  bool
}

// NewEtcd 创建 Etcd 连接器
//
// clientv3.New 不会阻塞等待连接就绪，Connect 时通过一次 Get 确认集群可达。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd: config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	c := &etcdConnector{
		cfg:     cfg,
		logger:  o.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		metrics: newConnectMetrics(o.meter),
	}

	clientCfg := clientv3.Config{
		Endpoints:            cfg.Endpoints,
		DialTimeout:          cfg.DialTimeout,
		DialKeepAliveTime:    cfg.KeepAliveTime,
		DialKeepAliveTimeout: cfg.KeepAliveTimeout,
	}
	if cfg.Username != "" {
		clientCfg.Username = cfg.Username
		clientCfg.Password = cfg.Password
	}

	client, err := clientv3.New(clientCfg)
	if err != nil {
		return nil, xerrors.Attach(ErrConnection, xerrors.Wrapf(err, "etcd connector[%s]", cfg.Name))
	}
	c.client = client
	return c, nil
}

func (c *etcdConnector) Connect(ctx context.Context) error {
	if c.healthy.Load() {
		return nil
	}

	err := c.probe(ctx, c.cfg.DialTimeout)
	c.metrics.observe(ctx, "etcd", c.cfg.Name, err)
	if err != nil {
		c.logger.Error("connect failed", clog.Error(err), clog.Any("endpoints", c.cfg.Endpoints))
		return xerrors.Attach(ErrConnection, xerrors.Wrapf(err, "etcd connector[%s]", c.cfg.Name))
	}

	c.healthy.Store(true)
	c.logger.Info("connected", clog.Any("endpoints", c.cfg.Endpoints))
	return nil
}

func (c *etcdConnector) probe(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.client.Get(ctx, healthKey)
	return err
}

func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.client.Close(); err != nil {
		c.logger.Error("close failed", clog.Error(err))
		return err
	}
	c.logger.Info("closed")
	return nil
}

func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	if err := c.probe(ctx, c.cfg.DialTimeout); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("health check failed", clog.Error(err))
		return xerrors.Attach(ErrHealthCheck, err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool { return c.healthy.Load() }

func (c *etcdConnector) Name() string { return c.cfg.Name }

func (c *etcdConnector) GetClient() *clientv3.Client { return c.client }
