package compiler

import (
	"container/list"
	"sync"

	"github.com/sambeau/wml/pkg/wml/runtime"
)

type cacheEntry struct {
	module string
	hash   string
	tmpl   *runtime.Template
}

// cache is an LRU of compiled templates keyed by module name. An entry is
// only returned while the source hash it was compiled from still matches.
type cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

func newCache(capacity int) *cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

func (c *cache) get(module, hash string) (*runtime.Template, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[module]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if e.hash != hash {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return e.tmpl, true
}

func (c *cache) set(module, hash string, tmpl *runtime.Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[module]; ok {
		e := el.Value.(*cacheEntry)
		e.hash, e.tmpl = hash, tmpl
		c.ll.MoveToFront(el)
		return
	}
	if c.ll.Len() >= c.capacity {
		if back := c.ll.Back(); back != nil {
			c.ll.Remove(back)
			delete(c.items, back.Value.(*cacheEntry).module)
		}
	}
	c.items[module] = c.ll.PushFront(&cacheEntry{module: module, hash: hash, tmpl: tmpl})
}

func (c *cache) invalidate(module string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[module]; ok {
		c.ll.Remove(el)
		delete(c.items, module)
	}
}

func (c *cache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
