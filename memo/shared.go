package memo

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// SharedConfig configures a Shared cache.
// Zero values produce sensible defaults; see field comments.
type SharedConfig struct {
	MaxEntries  int64 `json:"max_entries" yaml:"max_entries"`   // zero → 1<<20
	BufferItems int64 `json:"buffer_items" yaml:"buffer_items"` // zero → 64
}

// Shared is a process-wide cache with cost-bounded admission. Keys are
// hashed to 64 bits with a caller-supplied function; the full key is stored
// next to the value so that a hash collision reads as a miss, never as a
// wrong value. It is safe for concurrent use.
type Shared[K comparable, V any] struct {
	name    string
	cache   *ristretto.Cache
	hash    func(K) uint64
	metrics *Metrics
}

type sharedEntry[K comparable, V any] struct {
	key   K
	value V
}

// NewShared creates a Shared cache. hash must be deterministic; m may be nil.
func NewShared[K comparable, V any](name string, cfg SharedConfig, hash func(K) uint64, m *Metrics) (*Shared[K, V], error) {
	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = 1 << 20
	}
	if maxEntries < 0 {
		return nil, fmt.Errorf("%w: %s: %d", ErrInvalidSize, name, maxEntries)
	}
	buffer := cfg.BufferItems
	if buffer == 0 {
		buffer = 64
	}

	s := &Shared[K, V]{name: name, hash: hash, metrics: m}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        buffer,
		Metrics:            true,
		IgnoreInternalCost: true,
		OnEvict: func(*ristretto.Item) {
			s.metrics.evicted(s.name)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("memo: create %s: %w", name, err)
	}
	s.cache = c
	return s, nil
}

// Get returns the value stored under key.
func (s *Shared[K, V]) Get(key K) (V, bool) {
	raw, ok := s.cache.Get(s.hash(key))
	if ok {
		if e, same := raw.(sharedEntry[K, V]); same && e.key == key {
			s.metrics.hit(s.name)
			return e.value, true
		}
	}
	s.metrics.miss(s.name)
	var zero V
	return zero, false
}

// Add offers value for admission under key. Admission is asynchronous and
// may be refused; call Wait to flush pending writes.
func (s *Shared[K, V]) Add(key K, value V) {
	s.cache.Set(s.hash(key), sharedEntry[K, V]{key: key, value: value}, 1)
}

// Wait blocks until pending writes have been applied.
func (s *Shared[K, V]) Wait() {
	s.cache.Wait()
}

// Len returns the number of admitted entries as tracked by the cache's own
// counters.
func (s *Shared[K, V]) Len() int {
	return int(s.cache.Metrics.KeysAdded() - s.cache.Metrics.KeysEvicted())
}

// Purge drops every entry.
func (s *Shared[K, V]) Purge() {
	s.cache.Clear()
}

// Close stops the cache's background goroutines.
func (s *Shared[K, V]) Close() {
	s.cache.Close()
}
