package ledger

import "sync"

// CachedLedger fronts a Ledger with an in-memory LRU cache.
type CachedLedger struct {
	inner Ledger
	cache *lruCache
}

// NewCachedLedger creates a cache decorator around a ledger.
func NewCachedLedger(inner Ledger, maxEntries int) *CachedLedger {
	return &CachedLedger{
		inner: inner,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedLedger) Lookup(path string) (uint64, bool, error) {
	if sum, ok := c.cache.get(path); ok {
		return sum, true, nil
	}
	sum, ok, err := c.inner.Lookup(path)
	if err != nil || !ok {
		return sum, ok, err
	}
	c.cache.put(path, sum)
	return sum, true, nil
}

func (c *CachedLedger) Record(path string, sum uint64) error {
	if err := c.inner.Record(path, sum); err != nil {
		return err
	}
	c.cache.put(path, sum)
	return nil
}

// lruCache is a simple thread-safe LRU cache of path digests.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value uint64
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
