package memo

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrInvalidSize is returned when a table is created with a non-positive capacity.
var ErrInvalidSize = errors.New("memo: table size must be positive")

// Table is the common surface of the memo backends.
type Table[K comparable, V any] interface {
	Get(key K) (V, bool)
	Add(key K, value V)
	Len() int
	Purge()
}

// Compile-time interface checks.
var (
	_ Table[int, int] = (*LRU[int, int])(nil)
	_ Table[int, int] = (*Shared[int, int])(nil)
)

// LRU is a fixed-capacity memo table with least-recently-used eviction.
// It is safe for concurrent use.
type LRU[K comparable, V any] struct {
	name    string
	cache   *lru.Cache[K, V]
	metrics *Metrics
}

// NewLRU creates an LRU table holding at most size entries. name labels the
// table in metrics; m may be nil.
func NewLRU[K comparable, V any](name string, size int, m *Metrics) (*LRU[K, V], error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s: %d", ErrInvalidSize, name, size)
	}
	t := &LRU[K, V]{name: name, metrics: m}
	c, err := lru.NewWithEvict[K, V](size, func(K, V) {
		t.metrics.evicted(t.name)
	})
	if err != nil {
		return nil, fmt.Errorf("memo: create %s: %w", name, err)
	}
	t.cache = c
	return t, nil
}

// Get returns the value stored under key and marks it recently used.
func (t *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := t.cache.Get(key)
	if ok {
		t.metrics.hit(t.name)
	} else {
		t.metrics.miss(t.name)
	}
	return v, ok
}

// Add stores value under key, evicting the least recently used entry when full.
func (t *LRU[K, V]) Add(key K, value V) {
	t.cache.Add(key, value)
}

// Len returns the number of entries currently held.
func (t *LRU[K, V]) Len() int {
	return t.cache.Len()
}

// Purge drops every entry.
func (t *LRU[K, V]) Purge() {
	t.cache.Purge()
}

// Memoize returns the cached value for key, or computes, stores and returns
// it. Errors are returned as-is and never cached.
func Memoize[K comparable, V any](t Table[K, V], key K, compute func() (V, error)) (V, error) {
	if t == nil {
		return compute()
	}
	if v, ok := t.Get(key); ok {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	t.Add(key, v)
	return v, nil
}
