// Package merge normalizes the authoritative fetch strategy into one view.
package merge

import (
	"github.com/kailas-cloud/listingpage/internal/domain/facet"
	"github.com/kailas-cloud/listingpage/internal/domain/fetchmode"
	"github.com/kailas-cloud/listingpage/internal/domain/view"
	"github.com/kailas-cloud/listingpage/internal/usecase/fetch"
)

// Sources are the fetcher states of one render. Inactive fetchers hold zero states.
type Sources struct {
	Unified      fetch.State[fetch.UnifiedData]
	Consolidated fetch.State[fetch.SearchData]
	Listing      fetch.PagerState
	Facets       fetch.State[facet.Set]
	Navigation   fetch.State[fetch.NavigationData]
	// ListingIncludesFacets is set when the split listing request asked for facets.
	ListingIncludesFacets bool
}

// Result is the merged view before stale fallbacks and loading
// classification are applied.
type Result struct {
	View view.View
	// ListingLoading and FacetLoading feed the loading coordinator.
	ListingLoading bool
	FacetLoading   bool
	// NavigationLoading is set while the header is still being fetched.
	NavigationLoading bool
	// Settled is set when no authoritative request is in flight.
	Settled bool
}

// Merge selects fields from the fetcher that mode makes authoritative.
// Errors are passed through unchanged; only the authoritative one is reported.
func Merge(mode fetchmode.Mode, src Sources) Result {
	switch mode {
	case fetchmode.Unified:
		return unified(src.Unified)
	case fetchmode.Consolidated:
		return consolidated(src.Consolidated, src.Navigation)
	default:
		return split(src)
	}
}

func unified(u fetch.State[fetch.UnifiedData]) Result {
	v := view.View{
		Mode:         fetchmode.Unified,
		Items:        u.Data.Listing.Items,
		TotalCount:   u.Data.Listing.TotalCount,
		Facets:       u.Data.Facets,
		Navigation:   u.Data.Navigation,
		Breadcrumbs:  u.Data.Breadcrumbs,
		Loading:      u.IsLoading,
		IsValidating: u.IsValidating,
		Stale:        u.Stale,
		Err:          u.Err,
	}
	return Result{
		View:              v,
		ListingLoading:    u.IsLoading,
		FacetLoading:      u.IsLoading,
		NavigationLoading: u.IsLoading,
		Settled:           !u.IsValidating,
	}
}

func consolidated(c fetch.State[fetch.SearchData], nav fetch.State[fetch.NavigationData]) Result {
	v := view.View{
		Mode:         fetchmode.Consolidated,
		Items:        c.Data.Listing.Items,
		TotalCount:   c.Data.Listing.TotalCount,
		Facets:       c.Data.Facets,
		Loading:      c.IsLoading,
		IsValidating: c.IsValidating,
		Stale:        c.Stale,
		Err:          c.Err,
	}
	withNavigation(&v, nav)
	return Result{
		View:              v,
		ListingLoading:    c.IsLoading,
		FacetLoading:      c.IsLoading,
		NavigationLoading: nav.IsLoading,
		Settled:           !c.IsValidating && !nav.IsValidating,
	}
}

func split(src Sources) Result {
	l, f := src.Listing, src.Facets

	facets := f.Data
	if facets.IsEmpty() {
		facets = l.Data.Facets
	}
	err := l.Err
	if err == nil {
		err = f.Err
	}

	v := view.View{
		Mode:         fetchmode.Split,
		Items:        l.Data.Listing.Items,
		TotalCount:   l.Data.Listing.TotalCount,
		HasMore:      l.Data.Listing.HasMore,
		Facets:       facets,
		Loading:      l.IsLoading,
		LoadingMore:  l.LoadingMore,
		IsValidating: l.IsValidating || f.IsValidating,
		Stale:        l.Stale,
		Err:          err,
	}
	withNavigation(&v, src.Navigation)
	return Result{
		View:              v,
		ListingLoading:    l.IsLoading,
		FacetLoading:      f.IsLoading || (src.ListingIncludesFacets && l.IsLoading),
		NavigationLoading: src.Navigation.IsLoading,
		Settled:           !l.IsValidating && !f.IsValidating && !src.Navigation.IsValidating,
	}
}

func withNavigation(v *view.View, nav fetch.State[fetch.NavigationData]) {
	v.Navigation = nav.Data.Navigation
	v.Breadcrumbs = nav.Data.Breadcrumbs
}
