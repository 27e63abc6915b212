package listingpage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// catalogServer answers each operation with a fixed data document and
// records the operations it saw.
type catalogServer struct {
	mu  sync.Mutex
	ops []string
}

func (s *catalogServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	s.ops = append(s.ops, req.OperationName)
	s.mu.Unlock()

	products := `"products":{"items":[{"uid":"a","sku":"A","name":"A","url_key":"a","price":{"value":1,"currency":"EUR"}}],"total_count":1,"page_info":{"current_page":1,"total_pages":1}}`
	facets := `"facets":[{"attribute":"color","title":"Color","type":"select","buckets":[{"id":"red","title":"Red","count":1}]}]`
	nav := `"navigation":{"category":{"key":"phones","name":"Phones","url_path":"/phones"},"children":[]},"breadcrumbs":[{"name":"Phones","url_path":"/phones"}]`

	var data string
	switch req.OperationName {
	case "CategoryPage":
		data = "{" + products + "," + facets + "," + nav + "}"
	case "ProductSearch", "ProductListing":
		data = "{" + products + "," + facets + "}"
	case "ProductFacets":
		data = "{" + facets + "}"
	case "CategoryNavigation":
		data = "{" + nav + "}"
	default:
		data = `{"__typename":"Query"}`
	}
	_, _ = w.Write([]byte(`{"data":` + data + `}`))
}

func (s *catalogServer) operations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *catalogServer) {
	t.Helper()
	cs := &catalogServer{}
	srv := httptest.NewServer(cs)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, cs
}

func waitView(t *testing.T, p *Page) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := p.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return v
}

func TestNew_NoEndpoint(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error when no endpoint provided")
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown", addrs: []string{"localhost:1234"}}
	if _, err := createStore(cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestClient_Ping(t *testing.T) {
	c, cs := newTestClient(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if ops := cs.operations(); len(ops) != 1 || ops[0] != "Health" {
		t.Errorf("operations = %v", ops)
	}
}

func TestPage_UnifiedThenConsolidated(t *testing.T) {
	c, cs := newTestClient(t, WithPreferSingleRequest(true))
	p, err := c.Open(context.Background(), "phones", "")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Render()
	v := waitView(t, p)
	if v.Mode != Unified || len(v.Items) != 1 || v.Navigation.Category.Key != "phones" {
		t.Fatalf("first render: mode %s items %d nav %+v", v.Mode, len(v.Items), v.Navigation)
	}

	if _, err := p.Refine("q=red"); err != nil {
		t.Fatal(err)
	}
	v = waitView(t, p)
	if v.Mode != Consolidated || !v.Interacted {
		t.Errorf("after refine: mode %s interacted %v", v.Mode, v.Interacted)
	}
	if FormatRefinement(p.Refinement()) != "q=red" {
		t.Errorf("refinement = %q", FormatRefinement(p.Refinement()))
	}

	ops := cs.operations()
	seen := map[string]bool{}
	for _, op := range ops {
		seen[op] = true
	}
	if !seen["CategoryPage"] || !seen["ProductSearch"] || !seen["CategoryNavigation"] || seen["ProductListing"] {
		t.Errorf("operations = %v", ops)
	}
}

func TestPage_Split(t *testing.T) {
	c, cs := newTestClient(t)
	p, err := c.Open(context.Background(), "phones", "sort=price:DESC")
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	p.Render()
	v := waitView(t, p)
	if v.Mode != Split || len(v.Items) != 1 || len(v.Facets) != 1 {
		t.Errorf("mode %s items %d facets %d", v.Mode, len(v.Items), len(v.Facets))
	}
	for _, op := range cs.operations() {
		if op == "CategoryPage" || op == "ProductSearch" {
			t.Errorf("single-request query %s sent in split mode", op)
		}
	}
}

func TestOpen_InvalidRefinement(t *testing.T) {
	c, _ := newTestClient(t)
	if _, err := c.Open(context.Background(), "phones", "f=broken"); err == nil {
		t.Error("expected refinement error")
	}
	if _, err := c.Open(context.Background(), "", ""); err == nil {
		t.Error("expected category error")
	}
}

func TestPurgeCache_WithoutStore(t *testing.T) {
	c, _ := newTestClient(t)
	n, err := c.PurgeCache(context.Background())
	if err != nil || n != 0 {
		t.Errorf("PurgeCache = %d, %v", n, err)
	}
}
