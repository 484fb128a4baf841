package cachemanager

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/subjecthierarchy/internal/log"
)

// DefaultTTL bounds how long an entry lives when nothing invalidates it.
const DefaultTTL = 10 * time.Minute

// Memory is a Store on go-cache. Keys are formatted with fmt.Sprint, so K
// should print uniquely.
type Memory[K comparable, V any] struct {
	name  string
	ttl   time.Duration
	cache *gocache.Cache
}

var _ Store[string, int] = (*Memory[string, int])(nil)

// NewMemory creates a store whose entries expire after ttl. A ttl of zero
// or less keeps entries until they are deleted.
func NewMemory[K comparable, V any](name string, ttl time.Duration) *Memory[K, V] {
	if ttl <= 0 {
		return &Memory[K, V]{name: name, ttl: gocache.NoExpiration, cache: gocache.New(gocache.NoExpiration, 0)}
	}
	return &Memory[K, V]{name: name, ttl: ttl, cache: gocache.New(ttl, 3*ttl)}
}

func (m *Memory[K, V]) Get(key K) (V, bool) {
	var zero V
	raw, ok := m.cache.Get(fmt.Sprint(key))
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		log.Error(log.CatCache, "cached value has the wrong type", "cache", m.name, "key", key)
		return zero, false
	}
	return v, true
}

func (m *Memory[K, V]) Set(key K, value V) {
	m.cache.Set(fmt.Sprint(key), value, m.ttl)
}

func (m *Memory[K, V]) Delete(keys ...K) {
	for _, k := range keys {
		m.cache.Delete(fmt.Sprint(k))
	}
}

func (m *Memory[K, V]) Flush() {
	m.cache.Flush()
	log.Debug(log.CatCache, "cache flushed", "cache", m.name)
}

// Len counts entries, including expired ones the janitor has not removed.
func (m *Memory[K, V]) Len() int {
	return m.cache.ItemCount()
}
