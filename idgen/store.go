package idgen

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/shardis/xerrors"
)

// CounterStore 计数器存储
//
// 计数器只在分布式锁内读写，实现不需要自己保证读改写的原子性。
type CounterStore interface {
	// Load 读取计数器，不存在时以 0 创建
	Load(ctx context.Context, cluster, name string) (int64, error)
	// Store 写入计数器
	Store(ctx context.Context, cluster, name string, value int64) error
}

// NewStore 按 cfg.Driver 创建计数器存储
func NewStore(cfg *Config, opts ...Option) (CounterStore, error) {
	c := Config{}
	if cfg != nil {
		c = *cfg
	}
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	o := applyOptions(opts)

	switch c.Driver {
	case DriverEtcd:
		if o.etcdConnector == nil {
			return nil, ErrConnectorNil
		}
		return NewEtcdStore(o.etcdConnector.GetClient(), c.Root), nil
	case DriverRedis:
		if o.redisConnector == nil {
			return nil, ErrConnectorNil
		}
		return NewRedisStore(o.redisConnector.GetClient(), c.Root), nil
	default:
		return NewMemoryStore(), nil
	}
}

func parseCounter(key string, raw []byte) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, xerrors.Attach(ErrCorruptCounter, xerrors.Wrapf(err, "key %s", key))
	}
	return v, nil
}

// --- etcd ---

type etcdStore struct {
	client *clientv3.Client
	root   string
}

// NewEtcdStore 计数器节点 /<root>/<cluster>/<name>，内容为十进制文本
func NewEtcdStore(client *clientv3.Client, root string) CounterStore {
	return &etcdStore{client: client, root: "/" + strings.Trim(root, "/")}
}

func (s *etcdStore) key(cluster, name string) string {
	return s.root + "/" + cluster + "/" + name
}

func (s *etcdStore) Load(ctx context.Context, cluster, name string) (int64, error) {
	key := s.key(cluster, name)
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, "0")).
		Else(clientv3.OpGet(key)).
		Commit()
	if err != nil {
		return 0, xerrors.Wrapf(err, "idgen: load %s", key)
	}
	if resp.Succeeded {
		return 0, nil
	}
	kvs := resp.Responses[0].GetResponseRange().GetKvs()
	if len(kvs) == 0 {
		return 0, nil
	}
	return parseCounter(key, kvs[0].Value)
}

func (s *etcdStore) Store(ctx context.Context, cluster, name string, value int64) error {
	key := s.key(cluster, name)
	if _, err := s.client.Put(ctx, key, strconv.FormatInt(value, 10)); err != nil {
		return xerrors.Wrapf(err, "idgen: store %s", key)
	}
	return nil
}

// --- redis ---

type redisStore struct {
	client *redis.Client
	root   string
}

// NewRedisStore 计数器键 <root>:<cluster>:<name>，root 中的 / 替换为 :
func NewRedisStore(client *redis.Client, root string) CounterStore {
	return &redisStore{client: client, root: strings.ReplaceAll(strings.Trim(root, "/:"), "/", ":")}
}

func (s *redisStore) key(cluster, name string) string {
	return s.root + ":" + cluster + ":" + name
}

func (s *redisStore) Load(ctx context.Context, cluster, name string) (int64, error) {
	key := s.key(cluster, name)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		if err := s.client.SetNX(ctx, key, 0, 0).Err(); err != nil {
			return 0, xerrors.Wrapf(err, "idgen: create %s", key)
		}
		raw, err = s.client.Get(ctx, key).Bytes()
	}
	if err != nil {
		return 0, xerrors.Wrapf(err, "idgen: load %s", key)
	}
	return parseCounter(key, raw)
}

func (s *redisStore) Store(ctx context.Context, cluster, name string, value int64) error {
	key := s.key(cluster, name)
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return xerrors.Wrapf(err, "idgen: store %s", key)
	}
	return nil
}

// --- memory ---

// MemoryStore 进程内计数器存储
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]int64)}
}

func (s *MemoryStore) Load(_ context.Context, cluster, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cluster + "/" + name
	v, ok := s.counters[key]
	if !ok {
		s.counters[key] = 0
	}
	return v, nil
}

func (s *MemoryStore) Store(_ context.Context, cluster, name string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[cluster+"/"+name] = value
	return nil
}
