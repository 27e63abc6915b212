package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/query"
	"github.com/kailas-cloud/listingpage/internal/usecase/fetch/fetchtest"
	healthuc "github.com/kailas-cloud/listingpage/internal/usecase/health"
	"github.com/kailas-cloud/listingpage/internal/usecase/page"
	"github.com/kailas-cloud/listingpage/internal/usecase/session"
)

// --- Mocks ---

type mockUpstream struct{ err error }

func (m *mockUpstream) HealthCheck(_ context.Context) error { return m.err }

type mockPurger struct {
	n   int64
	err error
}

func (m *mockPurger) Purge(_ context.Context) (int64, error) { return m.n, m.err }

// catalog answers every query with a small fixed catalog. Listing pages
// follow the requested page index; there are three pages of two items.
func catalog(id query.ID, vars map[string]any) (string, error) {
	switch id {
	case query.CategoryPage:
		return fetchtest.JSON(
			map[string]any{"products": fetchtest.Products("p", 2, 1, 3), "facets": fetchtest.Facets("color")},
			fetchtest.Navigation("phones"),
		), nil
	case query.ProductSearch:
		return fetchtest.JSON(map[string]any{
			"products": fetchtest.Products("s", 2, 1, 1),
			"facets":   fetchtest.Facets("color", "brand"),
		}), nil
	case query.ProductListing:
		pg, _ := vars["page"].(int)
		return fetchtest.JSON(map[string]any{"products": fetchtest.Products("l", 2, pg, 3)}), nil
	case query.ProductFacets:
		return fetchtest.JSON(map[string]any{"facets": fetchtest.Facets("color")}), nil
	case query.CategoryNavigation:
		return fetchtest.JSON(fetchtest.Navigation("phones")), nil
	}
	return "", errors.New("unexpected query " + string(id))
}

type testEnv struct {
	srv  *httptest.Server
	exec *fetchtest.Executor
}

func newTestEnv(t *testing.T, purger CachePurger) *testEnv {
	t.Helper()
	exec := fetchtest.NewExecutor()
	exec.Auto = catalog
	reg := session.New(context.Background(), exec, page.Config{PreferSingleRequest: true, PageSize: 2},
		session.Limits{MaxSessions: 2}, nil)
	t.Cleanup(reg.Close)

	s := NewServer(reg, healthuc.New(&mockUpstream{}, nil), purger, fetchtest.Timeout, nil)
	srv := httptest.NewServer(NewRouter(s, nil, zapNop()))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, exec: exec}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, []byte, http.Header) {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, data, resp.Header
}

func (e *testEnv) page(t *testing.T, method, path, body string, wantStatus int) PageResponse {
	t.Helper()
	status, data, _ := e.do(t, method, path, body)
	if status != wantStatus {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, status, wantStatus, data)
	}
	var resp PageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode page response: %v", err)
	}
	return resp
}

func (e *testEnv) errorCode(t *testing.T, method, path, body string, wantStatus int) string {
	t.Helper()
	status, data, _ := e.do(t, method, path, body)
	if status != wantStatus {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, status, wantStatus, data)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Code
}

// --- Tests ---

func TestCreatePage_UnifiedFirstRender(t *testing.T) {
	env := newTestEnv(t, nil)

	status, data, header := env.do(t, http.MethodPost, "/v1/pages?wait=true", `{"category":"phones"}`)
	if status != http.StatusCreated {
		t.Fatalf("status %d: %s", status, data)
	}
	var resp PageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatal(err)
	}
	if header.Get("Location") != "/v1/pages/"+resp.ID {
		t.Errorf("Location = %q", header.Get("Location"))
	}

	v := resp.View
	if v.Mode != "unified" || v.Interacted {
		t.Errorf("mode = %s interacted = %v", v.Mode, v.Interacted)
	}
	if !v.Settled || v.Loading {
		t.Errorf("expected a settled view, got %+v", v)
	}
	if len(v.Items) != 2 || v.Items[0].UID != "p-1" {
		t.Errorf("items = %+v", v.Items)
	}
	if v.Navigation == nil || v.Navigation.Category.Key != "phones" || len(v.Breadcrumbs) != 2 {
		t.Errorf("navigation = %+v breadcrumbs = %+v", v.Navigation, v.Breadcrumbs)
	}
	if env.exec.Count(query.CategoryPage) != 1 || env.exec.Count(query.ProductSearch) != 0 {
		t.Errorf("calls = %v", env.exec.Log())
	}
}

func TestRefine_SwitchesToConsolidated(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.page(t, http.MethodPost, "/v1/pages?wait=true", `{"category":"phones"}`, http.StatusCreated)

	resp := env.page(t, http.MethodPut, "/v1/pages/"+created.ID+"/refinement?q=iphone&f=color:red&wait=true", "", http.StatusOK)
	v := resp.View
	if v.Mode != "consolidated" || !v.Interacted || !v.Refined {
		t.Errorf("mode = %s interacted = %v refined = %v", v.Mode, v.Interacted, v.Refined)
	}
	if len(v.Items) != 2 || v.Items[0].UID != "s-1" {
		t.Errorf("items = %+v", v.Items)
	}
	if len(v.Facets) != 2 {
		t.Errorf("facets = %+v", v.Facets)
	}
	if resp.Refinement != "f=color%3Ared&q=iphone" {
		t.Errorf("refinement = %q", resp.Refinement)
	}
}

func TestLoadMore_Split(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.page(t, http.MethodPost, "/v1/pages?wait=true", `{"category":"phones","prefer_single_request":false}`, http.StatusCreated)
	if created.View.Mode != "split" || !created.View.HasMore {
		t.Fatalf("mode = %s has_more = %v", created.View.Mode, created.View.HasMore)
	}

	resp := env.page(t, http.MethodPost, "/v1/pages/"+created.ID+"/more?wait=true", "", http.StatusOK)
	if resp.Accepted == nil || !*resp.Accepted {
		t.Fatalf("accepted = %v", resp.Accepted)
	}
	if len(resp.View.Items) != 4 || resp.View.Items[3].UID != "l-4" {
		t.Errorf("items = %+v", resp.View.Items)
	}
}

func TestLoadMore_RejectedOutsideSplit(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.page(t, http.MethodPost, "/v1/pages?wait=true", `{"category":"phones"}`, http.StatusCreated)

	resp := env.page(t, http.MethodPost, "/v1/pages/"+created.ID+"/more", "", http.StatusOK)
	if resp.Accepted == nil || *resp.Accepted {
		t.Errorf("accepted = %v", resp.Accepted)
	}
}

func TestSetCategory(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.page(t, http.MethodPost, "/v1/pages?wait=true", `{"category":"phones"}`, http.StatusCreated)
	env.page(t, http.MethodPut, "/v1/pages/"+created.ID+"/refinement?q=x&wait=true", "", http.StatusOK)

	resp := env.page(t, http.MethodPut, "/v1/pages/"+created.ID+"/category?wait=true", `{"category":"tablets"}`, http.StatusOK)
	if resp.View.Category != "tablets" || resp.View.Mode != "unified" || resp.View.Interacted {
		t.Errorf("category = %s mode = %s interacted = %v", resp.View.Category, resp.View.Mode, resp.View.Interacted)
	}

	if code := env.errorCode(t, http.MethodPut, "/v1/pages/"+created.ID+"/category", `{}`, http.StatusBadRequest); code != codeValidationFailed {
		t.Errorf("code = %s", code)
	}
}

func TestSetPreference(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.page(t, http.MethodPost, "/v1/pages?wait=true", `{"category":"phones"}`, http.StatusCreated)

	resp := env.page(t, http.MethodPut, "/v1/pages/"+created.ID+"/preference?wait=true", `{"prefer_single_request":false}`, http.StatusOK)
	if resp.PreferSingleRequest || resp.View.Mode != "split" {
		t.Errorf("prefer = %v mode = %s", resp.PreferSingleRequest, resp.View.Mode)
	}
}

func TestUpstreamErrorIsPartOfView(t *testing.T) {
	env := newTestEnv(t, nil)
	env.exec.Auto = func(id query.ID, vars map[string]any) (string, error) {
		if id == query.CategoryPage {
			return "", domain.NewUpstreamStatus(http.StatusBadGateway)
		}
		return catalog(id, vars)
	}

	resp := env.page(t, http.MethodPost, "/v1/pages?wait=true", `{"category":"phones"}`, http.StatusCreated)
	if resp.View.Error == nil || resp.View.Error.Code != codeUpstreamError {
		t.Fatalf("error = %+v", resp.View.Error)
	}

	env.exec.Auto = catalog
	retried := env.page(t, http.MethodPost, "/v1/pages/"+resp.ID+"/retry?wait=true", "", http.StatusOK)
	if retried.View.Error != nil || len(retried.View.Items) != 2 {
		t.Errorf("retry did not recover: %+v", retried.View)
	}
}

func TestPageErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	if code := env.errorCode(t, http.MethodGet, "/v1/pages/nope", "", http.StatusNotFound); code != codeSessionNotFound {
		t.Errorf("unknown session: code = %s", code)
	}
	if code := env.errorCode(t, http.MethodPost, "/v1/pages?f=broken", `{"category":"phones"}`, http.StatusBadRequest); code != codeValidationFailed {
		t.Errorf("bad filter: code = %s", code)
	}
	if code := env.errorCode(t, http.MethodPost, "/v1/pages", `{"category":`, http.StatusBadRequest); code != codeBadRequest {
		t.Errorf("bad body: code = %s", code)
	}

	env.page(t, http.MethodPost, "/v1/pages", `{"category":"a"}`, http.StatusCreated)
	env.page(t, http.MethodPost, "/v1/pages", `{"category":"b"}`, http.StatusCreated)
	if code := env.errorCode(t, http.MethodPost, "/v1/pages", `{"category":"c"}`, http.StatusServiceUnavailable); code != codeTooManySessions {
		t.Errorf("full registry: code = %s", code)
	}
}

func TestDeletePage(t *testing.T) {
	env := newTestEnv(t, nil)
	created := env.page(t, http.MethodPost, "/v1/pages", `{"category":"phones"}`, http.StatusCreated)

	status, _, _ := env.do(t, http.MethodDelete, "/v1/pages/"+created.ID, "")
	if status != http.StatusNoContent {
		t.Fatalf("delete status %d", status)
	}
	if code := env.errorCode(t, http.MethodGet, "/v1/pages/"+created.ID, "", http.StatusNotFound); code != codeSessionNotFound {
		t.Errorf("code = %s", code)
	}
}

func TestPurgeCache(t *testing.T) {
	disabled := newTestEnv(t, nil)
	if code := disabled.errorCode(t, http.MethodDelete, "/v1/cache", "", http.StatusNotImplemented); code != codeCacheDisabled {
		t.Errorf("code = %s", code)
	}

	env := newTestEnv(t, &mockPurger{n: 7})
	status, data, _ := env.do(t, http.MethodDelete, "/v1/cache", "")
	if status != http.StatusOK || !strings.Contains(string(data), `"purged":7`) {
		t.Errorf("status %d body %s", status, data)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	status, data, _ := env.do(t, http.MethodGet, "/health", "")
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	var resp HealthResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Checks["upstream"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestGetPage_WaitTimesOutWithCurrentView(t *testing.T) {
	exec := fetchtest.NewExecutor()
	reg := session.New(context.Background(), exec, page.Config{PreferSingleRequest: true}, session.Limits{}, nil)
	t.Cleanup(reg.Close)
	s := NewServer(reg, healthuc.New(&mockUpstream{}, nil), nil, 50*time.Millisecond, nil)
	srv := httptest.NewServer(NewRouter(s, nil, zapNop()))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/v1/pages?wait=true", "application/json", strings.NewReader(`{"category":"phones"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var pr PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated || pr.View.Settled || !pr.View.Loading {
		t.Errorf("status %d view %+v", resp.StatusCode, pr.View)
	}
	if !pr.View.PageLoading.IsInitialLoad || !pr.View.PageLoading.ShowSkeleton {
		t.Errorf("page loading = %+v", pr.View.PageLoading)
	}
}
