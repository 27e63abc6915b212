package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/query"
	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
	"github.com/kailas-cloud/listingpage/internal/metrics"
	"github.com/kailas-cloud/listingpage/internal/usecase/fetch/fetchtest"
)

func newSearchFetcher(exec Executor, opts ...Option) (*Fetcher[SearchData], chan struct{}) {
	done := make(chan struct{}, 16)
	opts = append(opts, WithNotify(func() { done <- struct{}{} }))
	return New("consolidated", exec, DecodeSearch, opts...), done
}

func waitNotify(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(fetchtest.Timeout):
		t.Fatal("timed out waiting for a resolution")
	}
}

func waitCounter(t *testing.T, read func() float64, want float64) {
	t.Helper()
	deadline := time.Now().Add(fetchtest.Timeout)
	for read() < want {
		if time.Now().After(deadline) {
			t.Fatalf("counter = %v, want %v", read(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func vars(phrase string) query.Variables {
	return query.NewConsolidated("phones", refinement.State{Phrase: phrase}, 24)
}

func TestFetcher_NilVariablesMakeNoRequest(t *testing.T) {
	exec := fetchtest.NewExecutor()
	f, _ := newSearchFetcher(exec)

	st := f.Use(context.Background(), nil)
	if st.IsLoading || st.HasData || st.Err != nil {
		t.Errorf("suppressed state = %+v, want zero", st)
	}
	exec.NoCall(t, 20*time.Millisecond)
}

func TestFetcher_SameKeyIssuesOneRequest(t *testing.T) {
	exec := fetchtest.NewExecutor()
	f, done := newSearchFetcher(exec)
	ctx := context.Background()

	st := f.Use(ctx, vars("tv"))
	if !st.IsLoading || !st.IsValidating {
		t.Errorf("expected loading state, got %+v", st)
	}
	f.Use(ctx, vars("tv"))
	f.Use(ctx, vars("tv"))

	exec.Next(t).Reply(fetchtest.JSON(map[string]any{"products": fetchtest.Products("p", 2, 1, 1)}))
	waitNotify(t, done)
	exec.NoCall(t, 20*time.Millisecond)

	st = f.Use(ctx, vars("tv"))
	if !st.Fresh() || st.IsLoading || len(st.Data.Listing.Items) != 2 {
		t.Errorf("resolved state = %+v", st)
	}
	if exec.Count(query.ProductSearch) != 1 {
		t.Errorf("requests = %d, want 1", exec.Count(query.ProductSearch))
	}
}

func TestFetcher_OutOfOrderResponseDiscarded(t *testing.T) {
	exec := fetchtest.NewExecutor()
	f, done := newSearchFetcher(exec)
	ctx := context.Background()
	discarded := func() float64 {
		return testutil.ToFloat64(metrics.StaleResponsesDiscardedTotal.WithLabelValues("consolidated"))
	}
	before := discarded()

	f.Use(ctx, vars("a"))
	first := exec.Next(t)
	f.Use(ctx, vars("b"))
	second := exec.Next(t)

	if !first.Cancelled() {
		t.Error("superseded request context must be cancelled")
	}

	second.Reply(fetchtest.JSON(map[string]any{"products": fetchtest.Products("b", 1, 1, 1)}))
	waitNotify(t, done)
	first.Reply(fetchtest.JSON(map[string]any{"products": fetchtest.Products("a", 1, 1, 1)}))
	waitCounter(t, discarded, before+1)

	st := f.State()
	if got := st.Data.Listing.Items[0].UID; got != "b-1" {
		t.Errorf("state holds %q, want the latest request's data", got)
	}
}

func TestFetcher_SuppressCancelsInFlight(t *testing.T) {
	exec := fetchtest.NewExecutor()
	f, _ := newSearchFetcher(exec)
	ctx := context.Background()

	f.Use(ctx, vars("a"))
	c := exec.Next(t)
	st := f.Use(ctx, nil)

	if !c.Cancelled() {
		t.Error("in-flight request must be cancelled on suppress")
	}
	if st.IsLoading || st.HasData {
		t.Errorf("suppressed state = %+v", st)
	}
}

func TestFetcher_TransportErrorSurfaced(t *testing.T) {
	exec := fetchtest.NewExecutor()
	f, done := newSearchFetcher(exec)

	f.Use(context.Background(), vars("a"))
	exec.Next(t).Fail(domain.ErrTransport)
	waitNotify(t, done)

	st := f.State()
	if !errors.Is(st.Err, domain.ErrTransport) {
		t.Errorf("Err = %v, want ErrTransport", st.Err)
	}
	if st.IsLoading || st.IsValidating {
		t.Errorf("failed request must stop loading: %+v", st)
	}
}

func TestFetcher_DecodeFailureRendersEmpty(t *testing.T) {
	exec := fetchtest.NewExecutor()
	f, done := newSearchFetcher(exec)

	f.Use(context.Background(), vars("a"))
	exec.Next(t).Reply(`{"facets":[]}`)
	waitNotify(t, done)

	st := f.State()
	if st.Err != nil {
		t.Errorf("decode failure must not surface an error, got %v", st.Err)
	}
	if !st.HasData || len(st.Data.Listing.Items) != 0 {
		t.Errorf("expected empty data, got %+v", st)
	}
}

func TestFetcher_KeepPreviousMarksStale(t *testing.T) {
	exec := fetchtest.NewExecutor()
	f, done := newSearchFetcher(exec, WithKeepPrevious())
	ctx := context.Background()

	f.Use(ctx, vars("a"))
	exec.Next(t).Reply(fetchtest.JSON(map[string]any{"products": fetchtest.Products("a", 1, 1, 1)}))
	waitNotify(t, done)

	st := f.Use(ctx, vars("b"))
	if !st.IsLoading || !st.Stale || !st.HasData {
		t.Fatalf("expected stale data while loading, got %+v", st)
	}
	if st.Fresh() {
		t.Error("stale data must not read as fresh")
	}
	exec.Next(t).Reply(fetchtest.JSON(map[string]any{"products": fetchtest.Products("b", 1, 1, 1)}))
	waitNotify(t, done)
	if st := f.State(); !st.Fresh() || st.Data.Listing.Items[0].UID != "b-1" {
		t.Errorf("after resolution = %+v", st)
	}
}

func TestFetcher_RevalidateKeepsData(t *testing.T) {
	exec := fetchtest.NewExecutor()
	f, done := newSearchFetcher(exec)
	ctx := context.Background()

	if f.Revalidate(ctx) {
		t.Fatal("revalidate on a suppressed fetcher must be a no-op")
	}

	f.Use(ctx, vars("a"))
	exec.Next(t).Fail(domain.ErrTransport)
	waitNotify(t, done)

	if !f.Revalidate(ctx) {
		t.Fatal("revalidate must dispatch")
	}
	if st := f.State(); st.Err != nil || !st.IsLoading {
		t.Errorf("revalidating state = %+v", st)
	}
	exec.Next(t).Reply(fetchtest.JSON(map[string]any{"products": fetchtest.Products("a", 1, 1, 1)}))
	waitNotify(t, done)
	if st := f.State(); !st.Fresh() {
		t.Errorf("expected fresh data after retry, got %+v", st)
	}
}
