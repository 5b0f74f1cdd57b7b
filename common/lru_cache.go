// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import "sync"

// LruCache is a bounded key/value overlay evicting the least recently used
// entry once its capacity is exceeded. It is safe for concurrent use.
type LruCache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*lruEntry[K, V]
	capacity int
	head     *lruEntry[K, V] // most recently used
	tail     *lruEntry[K, V] // least recently used
}

// NewLruCache creates a cache holding at most capacity entries.
func NewLruCache[K comparable, V any](capacity int) *LruCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LruCache[K, V]{
		entries:  make(map[K]*lruEntry[K, V], capacity),
		capacity: capacity,
	}
}

// Get returns the cached value and marks it as recently used.
func (c *LruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, exists := c.entries[key]
	if !exists {
		var zero V
		return zero, false
	}
	c.moveToFront(item)
	return item.val, true
}

// Set stores the value, evicting the least recently used entry if needed.
func (c *LruCache[K, V]) Set(key K, val V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, val)
}

func (c *LruCache[K, V]) set(key K, val V) {
	if item, exists := c.entries[key]; exists {
		item.val = val
		c.moveToFront(item)
		return
	}
	var item *lruEntry[K, V]
	if len(c.entries) >= c.capacity {
		item = c.unlink(c.tail) // reuse the evicted entry
		delete(c.entries, item.key)
	} else {
		item = new(lruEntry[K, V])
	}
	item.key, item.val = key, val
	c.entries[key] = item
	c.pushFront(item)
}

// Len returns the number of cached entries.
func (c *LruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LruCache[K, V]) pushFront(item *lruEntry[K, V]) {
	item.prev = nil
	item.next = c.head
	if c.head != nil {
		c.head.prev = item
	}
	c.head = item
	if c.tail == nil {
		c.tail = item
	}
}

func (c *LruCache[K, V]) unlink(item *lruEntry[K, V]) *lruEntry[K, V] {
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.tail = item.prev
	}
	item.prev, item.next = nil, nil
	return item
}

func (c *LruCache[K, V]) moveToFront(item *lruEntry[K, V]) {
	if item == c.head {
		return
	}
	c.unlink(item)
	c.pushFront(item)
}

type lruEntry[K comparable, V any] struct {
	key  K
	val  V
	prev *lruEntry[K, V]
	next *lruEntry[K, V]
}
