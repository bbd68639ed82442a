package store

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// backend is the storage strategy behind a Store. Implementations are not
// safe for concurrent use; the Store serializes access.
type backend[K comparable, V any] interface {
	// get returns the entry and marks it most recently used.
	get(key K) (entry[V], bool)
	// peek returns the entry without touching recency.
	peek(key K) (entry[V], bool)
	put(key K, e entry[V])
	remove(key K) bool
	// evictOldest removes the least recently used entry.
	evictOldest() (K, entry[V], bool)
	len() int
	// keyAt returns the key at position i of the dense key index.
	keyAt(i int) (K, bool)
}

// keyIndex keeps a dense slice of keys for cursor-based sweeping.
// Removal swaps the last key into the vacated slot.
type keyIndex[K comparable] struct {
	keys []K
	pos  map[K]int
}

func newKeyIndex[K comparable]() keyIndex[K] {
	return keyIndex[K]{pos: make(map[K]int)}
}

func (x *keyIndex[K]) add(key K) {
	if _, ok := x.pos[key]; ok {
		return
	}
	x.pos[key] = len(x.keys)
	x.keys = append(x.keys, key)
}

func (x *keyIndex[K]) drop(key K) {
	i, ok := x.pos[key]
	if !ok {
		return
	}
	last := len(x.keys) - 1
	if i != last {
		moved := x.keys[last]
		x.keys[i] = moved
		x.pos[moved] = i
	}
	var zero K
	x.keys[last] = zero
	x.keys = x.keys[:last]
	delete(x.pos, key)
}

func (x *keyIndex[K]) keyAt(i int) (K, bool) {
	if i < 0 || i >= len(x.keys) {
		var zero K
		return zero, false
	}
	return x.keys[i], true
}

// unbounded is a plain map backend with no capacity limit.
type unbounded[K comparable, V any] struct {
	keyIndex[K]
	items map[K]entry[V]
}

func newUnbounded[K comparable, V any]() *unbounded[K, V] {
	return &unbounded[K, V]{
		keyIndex: newKeyIndex[K](),
		items:    make(map[K]entry[V]),
	}
}

func (b *unbounded[K, V]) get(key K) (entry[V], bool) {
	e, ok := b.items[key]
	return e, ok
}

func (b *unbounded[K, V]) peek(key K) (entry[V], bool) {
	e, ok := b.items[key]
	return e, ok
}

func (b *unbounded[K, V]) put(key K, e entry[V]) {
	b.items[key] = e
	b.add(key)
}

func (b *unbounded[K, V]) remove(key K) bool {
	if _, ok := b.items[key]; !ok {
		return false
	}
	delete(b.items, key)
	b.drop(key)
	return true
}

func (b *unbounded[K, V]) evictOldest() (K, entry[V], bool) {
	var zero K
	return zero, entry[V]{}, false
}

func (b *unbounded[K, V]) len() int {
	return len(b.items)
}

// capacityBounded keeps at most limit entries in LRU order.
type capacityBounded[K comparable, V any] struct {
	keyIndex[K]
	lru *simplelru.LRU[K, entry[V]]
}

func newCapacityBounded[K comparable, V any](limit int) (*capacityBounded[K, V], error) {
	b := &capacityBounded[K, V]{keyIndex: newKeyIndex[K]()}
	// simplelru reports every removal path here, which keeps the index in step.
	lru, err := simplelru.NewLRU[K, entry[V]](limit, func(key K, _ entry[V]) {
		b.drop(key)
	})
	if err != nil {
		return nil, err
	}
	b.lru = lru
	return b, nil
}

func (b *capacityBounded[K, V]) get(key K) (entry[V], bool) {
	return b.lru.Get(key)
}

func (b *capacityBounded[K, V]) peek(key K) (entry[V], bool) {
	return b.lru.Peek(key)
}

func (b *capacityBounded[K, V]) put(key K, e entry[V]) {
	b.lru.Add(key, e)
	b.add(key)
}

func (b *capacityBounded[K, V]) remove(key K) bool {
	return b.lru.Remove(key)
}

func (b *capacityBounded[K, V]) evictOldest() (K, entry[V], bool) {
	return b.lru.RemoveOldest()
}

func (b *capacityBounded[K, V]) len() int {
	return b.lru.Len()
}

var (
	_ backend[string, int] = (*unbounded[string, int])(nil)
	_ backend[string, int] = (*capacityBounded[string, int])(nil)
)
