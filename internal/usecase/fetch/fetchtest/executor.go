// Package fetchtest provides a scriptable Executor for orchestration tests.
package fetchtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/listingpage/internal/domain/query"
)

// Timeout bounds every wait in this package.
const Timeout = 2 * time.Second

type result struct {
	data []byte
	err  error
}

// Call is one in-flight Execute. It blocks until Reply or Fail is called
// or its context is cancelled.
type Call struct {
	ID   query.ID
	Vars map[string]any
	Ctx  context.Context
	resp chan result
}

// Reply resolves the call with a response data document.
func (c *Call) Reply(data string) { c.resp <- result{data: []byte(data)} }

// Fail resolves the call with an error.
func (c *Call) Fail(err error) { c.resp <- result{err: err} }

// Cancelled reports whether the caller abandoned the call.
func (c *Call) Cancelled() bool {
	select {
	case <-c.Ctx.Done():
		return true
	default:
		return false
	}
}

// Executor records calls. With Auto set, calls resolve immediately through it;
// otherwise they are queued for the test to resolve.
type Executor struct {
	Auto func(id query.ID, vars map[string]any) (string, error)

	calls chan *Call
	mu    sync.Mutex
	count map[query.ID]int
	log   []query.ID
}

// NewExecutor creates a scripted executor.
func NewExecutor() *Executor {
	return &Executor{calls: make(chan *Call, 256), count: make(map[query.ID]int)}
}

// Execute implements fetch.Executor.
func (e *Executor) Execute(ctx context.Context, id query.ID, vars map[string]any) ([]byte, error) {
	e.mu.Lock()
	e.count[id]++
	e.log = append(e.log, id)
	auto := e.Auto
	e.mu.Unlock()

	if auto != nil {
		data, err := auto(id, vars)
		if err != nil {
			return nil, err
		}
		return []byte(data), nil
	}

	c := &Call{ID: id, Vars: vars, Ctx: ctx, resp: make(chan result, 1)}
	e.calls <- c
	select {
	case r := <-c.resp:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Next waits for the next queued call.
func (e *Executor) Next(t testing.TB) *Call {
	t.Helper()
	select {
	case c := <-e.calls:
		return c
	case <-time.After(Timeout):
		t.Fatal("timed out waiting for a backend call")
		return nil
	}
}

// Expect waits for n queued calls and indexes them by query id.
// Fetchers dispatch concurrently, so arrival order is not asserted.
func (e *Executor) Expect(t testing.TB, n int) map[query.ID]*Call {
	t.Helper()
	out := make(map[query.ID]*Call, n)
	for range n {
		c := e.Next(t)
		if _, dup := out[c.ID]; dup {
			t.Fatalf("unexpected second %s call", c.ID)
		}
		out[c.ID] = c
	}
	return out
}

// NoCall fails the test if a call is queued within d.
func (e *Executor) NoCall(t testing.TB, d time.Duration) {
	t.Helper()
	select {
	case c := <-e.calls:
		t.Fatalf("unexpected %s call with %v", c.ID, c.Vars)
	case <-time.After(d):
	}
}

// Count returns how many times id was executed.
func (e *Executor) Count(id query.ID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count[id]
}

// Log returns executed query ids in call order.
func (e *Executor) Log() []query.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]query.ID(nil), e.log...)
}
