// Package loading classifies page-level loading into first paint and
// search transitions.
package loading

import (
	"sync"

	"github.com/kailas-cloud/listingpage/internal/domain/view"
)

// Coordinator holds the two loading latches for one page lifetime.
type Coordinator struct {
	mu           sync.Mutex
	observed     bool
	phrase       string
	complete     bool
	inTransition bool
}

// New creates a coordinator for a fresh page lifetime.
func New() *Coordinator {
	return &Coordinator{}
}

// Observe folds one render into the latches.
func (c *Coordinator) Observe(phrase string, listingLoading, facetLoading bool) view.Loading {
	c.mu.Lock()
	defer c.mu.Unlock()

	busy := listingLoading || facetLoading

	if c.observed && phrase != c.phrase && c.complete {
		c.inTransition = true
	}
	c.observed = true
	c.phrase = phrase

	if !busy {
		c.complete = true
		c.inTransition = false
	}

	out := view.Loading{
		IsInitialLoad:      !c.complete && busy,
		IsSearchTransition: c.inTransition && busy,
	}
	out.ShowSkeleton = out.IsInitialLoad || out.IsSearchTransition
	return out
}

// InitialLoadComplete reports whether the page has settled at least once.
func (c *Coordinator) InitialLoadComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.complete
}

// Reset starts a new lifetime, e.g. after a category change.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.observed = false
	c.phrase = ""
	c.complete = false
	c.inTransition = false
	c.mu.Unlock()
}
