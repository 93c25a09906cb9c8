package cache

import "sync"

// Cache is a generic keyed cache for uniquely owned native resources.
// Values are stamped with the frame number of their last access and
// evicted either by age (Decimate) or by an entry budget (LRU order).
// An optional release hook frees the native resource on every eviction
// path, so owners never leak handles.
//
// Cache is safe for concurrent use.
// Cache must not be copied after creation (has mutex).
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	limit   int // max entries, 0 = unlimited
	release func(V)
	frame   uint64

	// Intrusive LRU list. head is most recently used.
	head *entry[K, V]
	tail *entry[K, V]
}

// entry is a cached value with its LRU links and frame stamp.
type entry[K comparable, V any] struct {
	key       K
	value     V
	lastFrame uint64
	prev      *entry[K, V]
	next      *entry[K, V]
}

// New creates a cache with the given entry budget. A limit of 0 means
// unlimited. release, if non-nil, is called with every value removed
// from the cache for any reason.
func New[K comparable, V any](limit int, release func(V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*entry[K, V]),
		limit:   limit,
		release: release,
	}
}

// SetFrame sets the frame number used to stamp subsequent accesses.
// Called once per frame by the owner.
func (c *Cache[K, V]) SetFrame(frame uint64) {
	c.mu.Lock()
	c.frame = frame
	c.mu.Unlock()
}

// Get retrieves a value and stamps it with the current frame.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	e.lastFrame = c.frame
	c.moveToFront(e)
	return e.value, true
}

// Set stores a value, releasing any previous value under the same key.
// If the cache exceeds its budget the least recently used entries are
// evicted.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.remove(old)
	}
	e := &entry[K, V]{key: key, value: value, lastFrame: c.frame}
	c.entries[key] = e
	c.pushFront(e)
	c.enforceLimit()
}

// GetOrCreate returns the cached value or creates it under lock to
// prevent duplicate creation. A create error caches nothing.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.lastFrame = c.frame
		c.moveToFront(e)
		return e.value, nil
	}

	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}

	e := &entry[K, V]{key: key, value: value, lastFrame: c.frame}
	c.entries[key] = e
	c.pushFront(e)
	c.enforceLimit()
	return value, nil
}

// Delete removes and releases an entry.
// Returns true if the entry was found.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.remove(e)
	return true
}

// Decimate evicts every entry whose last access is older than before,
// then enforces the entry budget. Returns the number of evictions.
func (c *Cache[K, V]) Decimate(before uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	// Walk from the LRU tail; stop at the first fresh entry since the
	// list is ordered by recency.
	for c.tail != nil && c.tail.lastFrame < before {
		c.remove(c.tail)
		n++
	}
	n += c.enforceLimit()
	return n
}

// Clear removes all entries. When release is true (the normal case)
// values pass through the release hook; false is for context loss,
// where the native handles are already gone.
func (c *Cache[K, V]) Clear(release bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if release && c.release != nil {
		for _, e := range c.entries {
			c.release(e.value)
		}
	}
	c.entries = make(map[K]*entry[K, V])
	c.head = nil
	c.tail = nil
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// remove unlinks and releases one entry. Caller must hold c.mu.
func (c *Cache[K, V]) remove(e *entry[K, V]) {
	c.unlink(e)
	delete(c.entries, e.key)
	if c.release != nil {
		c.release(e.value)
	}
}

// enforceLimit evicts LRU entries until within budget.
// Caller must hold c.mu. Returns the number of evictions.
func (c *Cache[K, V]) enforceLimit() int {
	if c.limit <= 0 {
		return 0
	}
	n := 0
	for len(c.entries) > c.limit && c.tail != nil {
		c.remove(c.tail)
		n++
	}
	return n
}

func (c *Cache[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache[K, V]) unlink(e *entry[K, V]) {
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
	e.prev = nil
	e.next = nil
}
