package resource

import (
	"runtime"
	"sync"
	"weak"

	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/shardis/xerrors"
)

// entry 身份缓存的值；活着的 Resource 持有强引用
type entry struct {
	id   Identity
	meta Meta
}

// identityCache 身份到元数据的缓存
//
// 主体是弱引用 map：没有 Resource 或热点层引用的条目会被 GC 回收，下次解析时重新探测。
// hot 为可选的有界强引用层，保证最近使用的身份在空闲期不被回收。
type identityCache struct {
	mu      sync.Mutex
	entries map[Identity]weak.Pointer[entry]
	hot     *otter.Cache[Identity, *entry]
}

func newIdentityCache(hotSize int) (*identityCache, error) {
	c := &identityCache{entries: make(map[Identity]weak.Pointer[entry])}
	if hotSize > 0 {
		hot, err := otter.New(&otter.Options[Identity, *entry]{MaximumSize: hotSize})
		if err != nil {
			return nil, xerrors.Wrap(err, "resource: build identity cache")
		}
		c.hot = hot
	}
	return c, nil
}

func (c *identityCache) get(id Identity) *entry {
	if c.hot != nil {
		if e, ok := c.hot.GetIfPresent(id); ok {
			return e
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	wp, ok := c.entries[id]
	if !ok {
		return nil
	}
	e := wp.Value()
	if e != nil && c.hot != nil {
		c.hot.Set(id, e)
	}
	return e
}

func (c *identityCache) put(e *entry) {
	c.mu.Lock()
	c.entries[e.id] = weak.Make(e)
	c.mu.Unlock()

	runtime.AddCleanup(e, c.evict, e.id)
	if c.hot != nil {
		c.hot.Set(e.id, e)
	}
}

// evict 条目被回收后删除 map 中的失效弱引用；同一身份若已重新发布则保留
func (c *identityCache) evict(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wp, ok := c.entries[id]; ok && wp.Value() == nil {
		delete(c.entries, id)
	}
}

// len 存活条目数
func (c *identityCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, wp := range c.entries {
		if wp.Value() != nil {
			n++
		}
	}
	return n
}

// purgeHot 清空强引用层，只剩弱引用
func (c *identityCache) purgeHot() {
	if c.hot != nil {
		c.hot.InvalidateAll()
	}
}
