// Package page orchestrates the fetch strategies of one listing page and
// publishes the merged view on every input change or fetch resolution.
package page

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/facet"
	"github.com/kailas-cloud/listingpage/internal/domain/fetchmode"
	"github.com/kailas-cloud/listingpage/internal/domain/listing"
	"github.com/kailas-cloud/listingpage/internal/domain/query"
	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
	"github.com/kailas-cloud/listingpage/internal/domain/view"
	logpkg "github.com/kailas-cloud/listingpage/internal/logger"
	"github.com/kailas-cloud/listingpage/internal/metrics"
	"github.com/kailas-cloud/listingpage/internal/usecase/fetch"
	"github.com/kailas-cloud/listingpage/internal/usecase/loading"
	"github.com/kailas-cloud/listingpage/internal/usecase/merge"
	"github.com/kailas-cloud/listingpage/internal/usecase/selector"
	"github.com/kailas-cloud/listingpage/internal/usecase/stale"
)

// Fetcher names, also used as metric labels.
const (
	fetcherUnified      = "unified"
	fetcherConsolidated = "consolidated"
	fetcherFacets       = "facets"
	fetcherNavigation   = "navigation"
)

// Page is the orchestrator of one listing page.
type Page struct {
	cfg    Config
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	unified      *fetch.Fetcher[fetch.UnifiedData]
	consolidated *fetch.Fetcher[fetch.SearchData]
	listing      *fetch.Pager
	facets       *fetch.Fetcher[facet.Set]
	navigation   *fetch.Fetcher[fetch.NavigationData]

	mu          sync.Mutex
	category    string
	prefer      bool
	source      *refinement.Source
	selector    *selector.Selector
	coordinator *loading.Coordinator
	facetCache  *stale.Cache[facet.Set]
	navCache    *stale.Cache[fetch.NavigationData]
	itemCache   *stale.Cache[listing.Result]
	mode        fetchmode.Mode
	version     uint64
	current     view.View
	changed     chan struct{}
	closed      bool

	subMu   sync.Mutex
	subs    map[int]Subscriber
	nextSub int

	pubMu     sync.Mutex
	published uint64
}

// New creates a page for category with the refinement it was opened with.
// Requests run on a context derived from ctx and carry the page logger.
// Nothing is fetched until the first Render.
func New(
	ctx context.Context, exec Executor, category string, initial refinement.State, cfg Config, logger *zap.Logger,
) *Page {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	pageCtx, cancel := context.WithCancel(logpkg.ContextWithLogger(ctx, logger))

	p := &Page{
		cfg:         cfg,
		logger:      logger,
		ctx:         pageCtx,
		cancel:      cancel,
		category:    category,
		prefer:      cfg.PreferSingleRequest,
		source:      refinement.NewSource(initial),
		selector:    selector.New(),
		coordinator: loading.New(),
		facetCache:  stale.New("facets", facet.Set.IsEmpty, facet.Set.Clone),
		navCache:    stale.New("navigation", navigationEmpty, nil),
		itemCache:   stale.New("listing", listingEmpty, nil),
		changed:     make(chan struct{}),
		subs:        make(map[int]Subscriber),
	}

	opts := []fetch.Option{fetch.WithNotify(p.onResolve), fetch.WithLogger(logger)}
	keep := append([]fetch.Option{fetch.WithKeepPrevious()}, opts...)
	p.unified = fetch.New(fetcherUnified, exec, fetch.DecodeUnified, opts...)
	p.consolidated = fetch.New(fetcherConsolidated, exec, fetch.DecodeSearch, keep...)
	p.listing = fetch.NewPager(exec, keep...)
	p.facets = fetch.New(fetcherFacets, exec, fetch.DecodeFacets, opts...)
	p.navigation = fetch.New(fetcherNavigation, exec, fetch.DecodeNavigation, opts...)
	return p
}

func navigationEmpty(n fetch.NavigationData) bool {
	return n.Navigation.IsZero() && len(n.Breadcrumbs) == 0
}

func listingEmpty(r listing.Result) bool { return len(r.Items) == 0 }

// Render recomputes the view from the current inputs. The first call mounts the page.
func (p *Page) Render() view.View {
	return p.mutate(func() bool { return true })
}

// Refine replaces the refinement snapshot and re-renders.
func (p *Page) Refine(st refinement.State) (view.View, error) {
	if err := st.Validate(); err != nil {
		return view.View{}, err
	}
	if p.isClosed() {
		return view.View{}, domain.ErrPageClosed
	}
	return p.mutate(func() bool {
		p.source.Set(st)
		return true
	}), nil
}

// SetCategory moves the page to another category. Interaction, frozen
// variables, retained fallbacks and loading latches all start over.
func (p *Page) SetCategory(category string, st refinement.State) (view.View, error) {
	if category == "" {
		return view.View{}, domain.ErrInvalidRefinement
	}
	if err := st.Validate(); err != nil {
		return view.View{}, err
	}
	if p.isClosed() {
		return view.View{}, domain.ErrPageClosed
	}
	return p.mutate(func() bool {
		if category != p.category {
			p.logger.Info("Category changed", zap.String("from", p.category), zap.String("to", category))
			p.facetCache.Reset()
			p.navCache.Reset()
			p.itemCache.Reset()
			p.coordinator.Reset()
		}
		p.category = category
		p.source.Rebase(st)
		return true
	}), nil
}

// SetPreferSingleRequest toggles the single-request strategies and re-renders.
func (p *Page) SetPreferSingleRequest(prefer bool) view.View {
	return p.mutate(func() bool {
		p.prefer = prefer
		return true
	})
}

// LoadMore requests the next split listing page. It reports false outside
// split mode or when there is nothing more to load.
func (p *Page) LoadMore() bool {
	var ok bool
	p.mutate(func() bool {
		ok = p.mode == fetchmode.Split && p.listing.LoadMore(p.ctx)
		return ok
	})
	return ok
}

// Retry re-issues the requests of the authoritative strategy.
func (p *Page) Retry() bool {
	var ok bool
	p.mutate(func() bool {
		switch p.mode {
		case fetchmode.Unified:
			ok = p.unified.Revalidate(p.ctx)
		case fetchmode.Consolidated:
			ok = p.consolidated.Revalidate(p.ctx)
			p.navigation.Revalidate(p.ctx)
		case fetchmode.Split:
			l := p.listing.Revalidate(p.ctx)
			f := p.facets.Revalidate(p.ctx)
			p.navigation.Revalidate(p.ctx)
			ok = l || f
		}
		if ok {
			p.logger.Info("Retrying page requests", zap.String("mode", string(p.mode)))
		}
		return ok
	})
	return ok
}

// View returns the last computed view.
func (p *Page) View() view.View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Category returns the current category key.
func (p *Page) Category() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.category
}

// PreferSingleRequest reports whether single-request strategies are enabled.
func (p *Page) PreferSingleRequest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prefer
}

// Refinement returns the current refinement snapshot.
func (p *Page) Refinement() refinement.State {
	return p.source.Snapshot()
}

// Subscribe registers fn for every published view and returns a function
// that removes it.
func (p *Page) Subscribe(fn Subscriber) func() {
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

// WaitIdle blocks until the authoritative requests have settled.
func (p *Page) WaitIdle(ctx context.Context) (view.View, error) {
	for {
		p.mu.Lock()
		v, ch, closed := p.current, p.changed, p.closed
		p.mu.Unlock()

		if closed {
			return v, domain.ErrPageClosed
		}
		if v.Version > 0 && v.Settled {
			return v, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

// Close cancels every in-flight request. The page cannot be used afterwards.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cancel()
	p.unified.Close()
	p.consolidated.Close()
	p.listing.Close()
	p.facets.Close()
	p.navigation.Close()
	close(p.changed)
	p.mu.Unlock()
}

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// mutate applies fn under the page lock and, when it reports a change,
// recomputes and publishes the view.
func (p *Page) mutate(fn func() bool) view.View {
	p.mu.Lock()
	if p.closed || !fn() {
		v := p.current
		p.mu.Unlock()
		return v
	}
	v := p.recomputeLocked()
	p.mu.Unlock()

	p.publish(v)
	return v
}

func (p *Page) onResolve() {
	p.mutate(func() bool { return true })
}

// recomputeLocked is the whole pipeline: select the strategy, hand each
// fetcher its variables (nil for inactive ones), merge, apply fallbacks
// and classify loading.
func (p *Page) recomputeLocked() view.View {
	st := p.source.Snapshot()
	d := p.selector.Observe(selector.Input{
		Category:            p.category,
		PreferSingleRequest: p.prefer,
		Refinement:          st,
	})
	p.transitionLocked(d)

	var (
		unifiedVars      query.Variables
		consolidatedVars query.Variables
		facetVars        query.Variables
		navigationVars   query.Variables
		listingVars      *query.Listing
	)
	switch d.Mode {
	case fetchmode.Unified:
		unifiedVars = query.NewUnified(p.category, *d.Frozen, p.cfg.PageSize)
	case fetchmode.Consolidated:
		consolidatedVars = query.NewConsolidated(p.category, st, p.cfg.ConsolidatedLimit)
		navigationVars = query.Navigation{Category: p.category}
	case fetchmode.Split:
		l := query.NewListing(p.category, st, p.cfg.PageSize)
		listingVars = &l
		facetVars = query.NewFacets(p.category, st)
		navigationVars = query.Navigation{Category: p.category}
	}

	src := merge.Sources{
		Unified:      p.unified.Use(p.ctx, unifiedVars),
		Consolidated: p.consolidated.Use(p.ctx, consolidatedVars),
		Listing:      p.listing.Use(p.ctx, listingVars),
		Facets:       p.facets.Use(p.ctx, facetVars),
		Navigation:   p.navigation.Use(p.ctx, navigationVars),
	}
	if listingVars != nil {
		src.ListingIncludesFacets = listingVars.IncludeFacets
	}

	p.updateCachesLocked(src)
	r := merge.Merge(d.Mode, src)
	v := r.View

	v.Facets, _ = p.facetCache.Read(v.Facets, r.FacetLoading)
	nav, _ := p.navCache.Read(fetch.NavigationData{Navigation: v.Navigation, Breadcrumbs: v.Breadcrumbs}, r.NavigationLoading)
	v.Navigation, v.Breadcrumbs = nav.Navigation, nav.Breadcrumbs

	current := listing.Result{Items: v.Items, TotalCount: v.TotalCount, HasMore: v.HasMore}
	if !v.Stale {
		p.itemCache.Update(current)
	}
	if last, served := p.itemCache.Read(current, r.ListingLoading); served {
		v.Items, v.TotalCount, v.HasMore = last.Items, last.TotalCount, false
		v.Stale = true
	}

	p.version++
	v.Version = p.version
	v.Category = p.category
	v.Interacted = d.Interacted
	v.Refined = p.source.ChangedSinceLoad()
	v.Settled = r.Settled
	v.PageLoading = p.coordinator.Observe(st.Phrase, r.ListingLoading, r.FacetLoading)
	v.LoadMore = func() {}
	if d.Mode == fetchmode.Split {
		v.LoadMore = func() { p.LoadMore() }
	}

	p.current = v
	close(p.changed)
	p.changed = make(chan struct{})
	return v
}

// updateCachesLocked feeds every facet and navigation source into the
// retained fallbacks, whichever strategy produced it.
func (p *Page) updateCachesLocked(src merge.Sources) {
	p.facetCache.Update(src.Unified.Data.Facets)
	p.facetCache.Update(src.Consolidated.Data.Facets)
	p.facetCache.Update(src.Listing.Data.Facets)
	p.facetCache.Update(src.Facets.Data)

	p.navCache.Update(fetch.NavigationData{
		Navigation:  src.Unified.Data.Navigation,
		Breadcrumbs: src.Unified.Data.Breadcrumbs,
	})
	p.navCache.Update(src.Navigation.Data)
}

func (p *Page) transitionLocked(d selector.Decision) {
	if d.Mode == p.mode {
		return
	}
	if p.mode != "" {
		metrics.ModeTransitionsTotal.WithLabelValues(string(p.mode), string(d.Mode)).Inc()
		p.logger.Info("Fetch mode changed",
			zap.String("from", string(p.mode)),
			zap.String("to", string(d.Mode)),
			zap.Bool("interacted", d.Interacted),
			zap.Uint64("generation", d.Generation),
		)
	}
	p.mode = d.Mode
}

// publish delivers v to subscribers unless a newer view was already delivered.
func (p *Page) publish(v view.View) {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	if v.Version <= p.published {
		return
	}
	p.published = v.Version

	p.subMu.Lock()
	subs := make([]Subscriber, 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.subMu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}
