package chi

import (
	"errors"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/facet"
	"github.com/kailas-cloud/listingpage/internal/domain/listing"
	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
	"github.com/kailas-cloud/listingpage/internal/domain/view"
	"github.com/kailas-cloud/listingpage/internal/transport/urlstate"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest       = "bad_request"
	codeUnauthorized     = "unauthorized"
	codeValidationFailed = "validation_failed"
	codeSessionNotFound  = "session_not_found"
	codePageClosed       = "page_closed"
	codeTooManySessions  = "too_many_sessions"
	codeUpstreamError    = "upstream_error"
	codeCacheDisabled    = "cache_disabled"
	codeInternalError    = "internal_error"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createPageRequest struct {
	Category            string `json:"category"`
	PreferSingleRequest *bool  `json:"prefer_single_request,omitempty"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

type preferenceRequest struct {
	PreferSingleRequest bool `json:"prefer_single_request"`
}

// PageResponse is the JSON body for every page endpoint.
type PageResponse struct {
	ID                  string       `json:"id"`
	PreferSingleRequest bool         `json:"prefer_single_request"`
	Refinement          string       `json:"refinement"`
	Accepted            *bool        `json:"accepted,omitempty"`
	View                ViewResponse `json:"view"`
}

// ViewResponse mirrors view.View.
type ViewResponse struct {
	Version     uint64               `json:"version"`
	Category    string               `json:"category"`
	Mode        string               `json:"mode"`
	Interacted  bool                 `json:"interacted"`
	Refined     bool                 `json:"refined"`
	Items       []ProductResponse    `json:"items"`
	TotalCount  int                  `json:"total_count"`
	HasMore     bool                 `json:"has_more"`
	Facets      []FacetResponse      `json:"facets"`
	Navigation  *NavigationResponse  `json:"navigation,omitempty"`
	Breadcrumbs []BreadcrumbResponse `json:"breadcrumbs"`

	Loading      bool            `json:"loading"`
	LoadingMore  bool            `json:"loading_more"`
	IsValidating bool            `json:"is_validating"`
	Stale        bool            `json:"stale"`
	Settled      bool            `json:"settled"`
	PageLoading  LoadingResponse `json:"page_loading"`
	Error        *ErrorResponse  `json:"error,omitempty"`
}

// ProductResponse is one listing item.
type ProductResponse struct {
	UID      string  `json:"uid"`
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	URLKey   string  `json:"url_key"`
	ImageURL string  `json:"image_url,omitempty"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}

// FacetResponse is one facet with its options.
type FacetResponse struct {
	Key     string           `json:"key"`
	Title   string           `json:"title"`
	Type    string           `json:"type"`
	Options []OptionResponse `json:"options"`
}

// OptionResponse is one facet bucket.
type OptionResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NavigationResponse is the category tree around the current category.
type NavigationResponse struct {
	Category CategoryResponse   `json:"category"`
	Children []CategoryResponse `json:"children"`
}

// CategoryResponse is one category link.
type CategoryResponse struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	URLPath string `json:"url_path"`
}

// BreadcrumbResponse is one breadcrumb link.
type BreadcrumbResponse struct {
	Name    string `json:"name"`
	URLPath string `json:"url_path"`
}

// LoadingResponse mirrors view.Loading.
type LoadingResponse struct {
	IsInitialLoad      bool `json:"is_initial_load"`
	IsSearchTransition bool `json:"is_search_transition"`
	ShowSkeleton       bool `json:"show_skeleton"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func pageToResponse(id string, prefer bool, st refinement.State, v view.View) PageResponse {
	return PageResponse{
		ID:                  id,
		PreferSingleRequest: prefer,
		Refinement:          urlstate.Encode(st).Encode(),
		View:                viewToResponse(v),
	}
}

func viewToResponse(v view.View) ViewResponse {
	resp := ViewResponse{
		Version:      v.Version,
		Category:     v.Category,
		Mode:         string(v.Mode),
		Interacted:   v.Interacted,
		Refined:      v.Refined,
		Items:        productsToResponse(v.Items),
		TotalCount:   v.TotalCount,
		HasMore:      v.HasMore,
		Facets:       facetsToResponse(v.Facets),
		Breadcrumbs:  breadcrumbsToResponse(v.Breadcrumbs),
		Loading:      v.Loading,
		LoadingMore:  v.LoadingMore,
		IsValidating: v.IsValidating,
		Stale:        v.Stale,
		Settled:      v.Settled,
		PageLoading: LoadingResponse{
			IsInitialLoad:      v.PageLoading.IsInitialLoad,
			IsSearchTransition: v.PageLoading.IsSearchTransition,
			ShowSkeleton:       v.PageLoading.ShowSkeleton,
		},
	}
	if !v.Navigation.IsZero() {
		resp.Navigation = &NavigationResponse{
			Category: categoryToResponse(v.Navigation.Category),
			Children: make([]CategoryResponse, len(v.Navigation.Children)),
		}
		for i, c := range v.Navigation.Children {
			resp.Navigation.Children[i] = categoryToResponse(c)
		}
	}
	if v.Err != nil {
		resp.Error = &ErrorResponse{Code: upstreamErrorCode(v.Err), Message: safeDomainMessage(v.Err)}
	}
	return resp
}

func upstreamErrorCode(err error) string {
	if errors.Is(err, domain.ErrTransport) || errors.Is(err, domain.ErrUpstreamGraphQL) {
		return codeUpstreamError
	}
	return codeInternalError
}

func productsToResponse(items []listing.Product) []ProductResponse {
	out := make([]ProductResponse, len(items))
	for i, p := range items {
		out[i] = ProductResponse{
			UID:      p.UID,
			SKU:      p.SKU,
			Name:     p.Name,
			URLKey:   p.URLKey,
			ImageURL: p.ImageURL,
			Price:    p.Price.Value,
			Currency: p.Price.Currency,
		}
	}
	return out
}

func facetsToResponse(set facet.Set) []FacetResponse {
	out := make([]FacetResponse, len(set))
	for i, f := range set {
		opts := make([]OptionResponse, len(f.Options))
		for j, o := range f.Options {
			opts[j] = OptionResponse{ID: o.ID, Name: o.Name, Count: o.Count}
		}
		out[i] = FacetResponse{Key: f.Key, Title: f.Title, Type: f.Type, Options: opts}
	}
	return out
}

func categoryToResponse(c listing.Category) CategoryResponse {
	return CategoryResponse{Key: c.Key, Name: c.Name, URLPath: c.URLPath}
}

func breadcrumbsToResponse(in []listing.Breadcrumb) []BreadcrumbResponse {
	out := make([]BreadcrumbResponse, len(in))
	for i, b := range in {
		out[i] = BreadcrumbResponse{Name: b.Name, URLPath: b.URLPath}
	}
	return out
}
