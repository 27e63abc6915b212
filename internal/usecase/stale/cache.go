// Package stale retains the last non-empty value of a data source so the
// UI never collapses to empty while a newer request is in flight.
package stale

import (
	"sync"

	"github.com/kailas-cloud/listingpage/internal/metrics"
)

// Cache holds the last known good value for one kind of data.
type Cache[T any] struct {
	kind    string
	isEmpty func(T) bool
	clone   func(T) T

	mu   sync.Mutex
	last T
	has  bool
}

// New creates a cache. isEmpty decides which values are worth keeping;
// clone, when non-nil, copies values in and out.
func New[T any](kind string, isEmpty func(T) bool, clone func(T) T) *Cache[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Cache[T]{kind: kind, isEmpty: isEmpty, clone: clone}
}

// Update stores candidate when it is non-empty. Empty candidates are ignored.
func (c *Cache[T]) Update(candidate T) {
	if c.isEmpty(candidate) {
		return
	}
	v := c.clone(candidate)
	c.mu.Lock()
	c.last = v
	c.has = true
	c.mu.Unlock()
}

// Read returns current when non-empty. Otherwise, while loading, it returns
// the last known good value; when idle it returns current.
// The second result reports whether a retained value was served.
func (c *Cache[T]) Read(current T, loading bool) (T, bool) {
	if !c.isEmpty(current) || !loading {
		return current, false
	}
	c.mu.Lock()
	last, has := c.last, c.has
	c.mu.Unlock()
	if !has {
		return current, false
	}
	metrics.StaleServedTotal.WithLabelValues(c.kind).Inc()
	return c.clone(last), true
}

// Last returns the retained value.
func (c *Cache[T]) Last() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clone(c.last), c.has
}

// Reset forgets the retained value. Called when the page moves to another category.
func (c *Cache[T]) Reset() {
	c.mu.Lock()
	var zero T
	c.last = zero
	c.has = false
	c.mu.Unlock()
}
