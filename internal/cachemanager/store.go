// Package cachemanager memoizes values per key between invalidations. The
// resolver keeps owner answers per item in one.
package cachemanager

// Store holds memoized values.
type Store[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V)
	Delete(keys ...K)
	Flush()
	Len() int
}
