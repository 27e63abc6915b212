package querycache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/query"
)

var vars = map[string]any{"category": "phones", "filter": map[string]any{}}

func TestExecute_MissThenHit(t *testing.T) {
	inner := &mockExecutor{data: []byte(`{"products":{}}`)}
	ms := newMockKVStore()
	ce, counter := newTestExecutor(t, inner, ms)
	ctx := context.Background()

	for range 2 {
		data, err := ce.Execute(ctx, query.CategoryPage, vars)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"products":{}}` {
			t.Fatalf("data = %s", data)
		}
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls.Load())
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	for k, ttl := range ms.ttls {
		if !strings.HasPrefix(k, DefaultKeyPrefix) || ttl != time.Minute {
			t.Errorf("stored %s with ttl %v", k, ttl)
		}
	}
}

func TestExecute_KeyedByQueryAndVariables(t *testing.T) {
	inner := &mockExecutor{data: []byte(`{}`)}
	ms := newMockKVStore()
	ce, _ := newTestExecutor(t, inner, ms)
	ctx := context.Background()

	ce.Execute(ctx, query.CategoryPage, vars)
	ce.Execute(ctx, query.ProductSearch, vars)
	ce.Execute(ctx, query.ProductSearch, map[string]any{"filter": map[string]any{"color": "red"}})
	ce.Execute(ctx, query.ProductSearch, map[string]any{"filter": map[string]any{"color": "blue"}})

	if inner.calls.Load() != 4 {
		t.Errorf("inner calls = %d, want 4 distinct requests", inner.calls.Load())
	}
	if ms.len() != 4 {
		t.Errorf("cache entries = %d, want 4", ms.len())
	}
}

func TestExecute_DeduplicatesInFlight(t *testing.T) {
	inner := &mockExecutor{data: []byte(`{}`), release: make(chan struct{})}
	ce, counter := newTestExecutor(t, inner, nil)
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ce.Execute(ctx, query.ProductFacets, vars); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	deadline := time.Now().Add(2 * time.Second)
	for inner.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Give the remaining callers time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	if inner.calls.Load() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls.Load())
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("shared")); got != callers {
		t.Errorf("shared = %v, want %d", got, callers)
	}
}

func TestExecute_ErrorsNotCached(t *testing.T) {
	inner := &mockExecutor{err: domain.ErrTransport}
	ms := newMockKVStore()
	ce, _ := newTestExecutor(t, inner, ms)

	_, err := ce.Execute(context.Background(), query.CategoryPage, vars)
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if ms.len() != 0 {
		t.Error("failed responses must not be cached")
	}
}

func TestExecute_StoreFailureFallsThrough(t *testing.T) {
	inner := &mockExecutor{data: []byte(`{}`)}
	ms := newMockKVStore()
	ms.err = errors.New("connection refused")
	ce, _ := newTestExecutor(t, inner, ms)

	if _, err := ce.Execute(context.Background(), query.CategoryPage, vars); err != nil {
		t.Fatalf("store errors must not fail the query: %v", err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner calls = %d", inner.calls.Load())
	}
}

func TestExecute_CallerCancelStopsWaiting(t *testing.T) {
	inner := &mockExecutor{data: []byte(`{}`), release: make(chan struct{})}
	defer close(inner.release)
	ce, _ := newTestExecutor(t, inner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := ce.Execute(ctx, query.CategoryPage, vars)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller still waiting")
	}
}

func TestPurge(t *testing.T) {
	inner := &mockExecutor{data: []byte(`{}`)}
	ms := newMockKVStore()
	ce, _ := newTestExecutor(t, inner, ms)
	ctx := context.Background()
	ce.Execute(ctx, query.CategoryPage, vars)
	ce.Execute(ctx, query.ProductSearch, vars)

	n, err := ce.Purge(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 || ms.len() != 0 {
		t.Errorf("purged %d, remaining %d", n, ms.len())
	}
}

func TestPurge_NoStore(t *testing.T) {
	ce, _ := newTestExecutor(t, &mockExecutor{}, nil)
	if n, err := ce.Purge(context.Background()); err != nil || n != 0 {
		t.Errorf("Purge = %d, %v", n, err)
	}
}
