package cachemanager

// MemoStats counts lookups since the memo was created.
type MemoStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// Memo computes a value on a miss and keeps it in its store until the key
// is forgotten. A Memo without a store computes every time.
type Memo[K comparable, V any] struct {
	store  Store[K, V]
	hits   uint64
	misses uint64
}

// NewMemo wraps store. Pass nil to disable memoization.
func NewMemo[K comparable, V any](store Store[K, V]) *Memo[K, V] {
	return &Memo[K, V]{store: store}
}

func (m *Memo[K, V]) Enabled() bool {
	return m.store != nil
}

// Lookup returns the stored value for key, or the result of compute. A
// failed compute is not stored.
func (m *Memo[K, V]) Lookup(key K, compute func() (V, error)) (V, error) {
	if m.store != nil {
		if v, ok := m.store.Get(key); ok {
			m.hits++
			return v, nil
		}
	}
	m.misses++
	v, err := compute()
	if err != nil || m.store == nil {
		return v, err
	}
	m.store.Set(key, v)
	return v, nil
}

func (m *Memo[K, V]) Forget(keys ...K) {
	if m.store != nil && len(keys) > 0 {
		m.store.Delete(keys...)
	}
}

func (m *Memo[K, V]) Reset() {
	if m.store != nil {
		m.store.Flush()
	}
}

func (m *Memo[K, V]) Stats() MemoStats {
	s := MemoStats{Hits: m.hits, Misses: m.misses}
	if m.store != nil {
		s.Entries = m.store.Len()
	}
	return s
}
