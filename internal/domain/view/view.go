// Package view holds the read model the rendering layer consumes.
package view

import (
	"github.com/kailas-cloud/listingpage/internal/domain/facet"
	"github.com/kailas-cloud/listingpage/internal/domain/fetchmode"
	"github.com/kailas-cloud/listingpage/internal/domain/listing"
)

// Loading classifies page-level loading for skeleton decisions.
type Loading struct {
	IsInitialLoad      bool
	IsSearchTransition bool
	ShowSkeleton       bool
}

// View is the merged output of whichever fetch strategy is authoritative.
type View struct {
	Version    uint64
	Category   string
	Mode       fetchmode.Mode
	Interacted bool
	// Refined is set once phrase, filters or sort differ from the snapshot
	// the category was loaded with.
	Refined bool

	Items      []listing.Product
	TotalCount int
	HasMore    bool
	Facets     facet.Set

	Navigation  listing.Navigation
	Breadcrumbs []listing.Breadcrumb

	Loading      bool
	LoadingMore  bool
	IsValidating bool
	Stale        bool
	Settled      bool
	Err          error
	PageLoading  Loading
	LoadMore     func()
}
