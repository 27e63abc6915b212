package fetch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingpage/internal/domain/query"
	"github.com/kailas-cloud/listingpage/internal/metrics"
)

const pagerName = "listing"

// PagerState is the accumulated split listing.
type PagerState struct {
	State[SearchData]
	LoadingMore bool
	Pages       int
}

// Pager runs the split listing query and accumulates pages client-side.
// Facets, when requested, are taken from the first page.
type Pager struct {
	exec         Executor
	keepPrevious bool
	notify       func()
	logger       *zap.Logger

	mu      sync.Mutex
	baseKey string
	base    *query.Listing
	gen     uint64
	cancel  context.CancelFunc
	pages   []SearchData
	pending int
	state   PagerState
}

// NewPager creates the split listing fetcher.
func NewPager(exec Executor, opts ...Option) *Pager {
	o := buildOptions(opts)
	return &Pager{
		exec:         exec,
		keepPrevious: o.keepPrevious,
		notify:       o.notify,
		logger:       o.logger.With(zap.String("fetcher", pagerName)),
	}
}

// Use declares the first-page variables for the current render. A changed
// base (phrase, filters, sort, size) drops accumulated pages and restarts at
// page 1. nil suppresses the pager without I/O.
func (p *Pager) Use(ctx context.Context, base *query.Listing) PagerState {
	p.mu.Lock()
	defer p.mu.Unlock()

	if base == nil {
		p.suppressLocked()
		return p.state
	}

	first := base.WithPage(1)
	key := query.Key(first)
	if key == p.baseKey {
		return p.state
	}

	prev := p.state
	p.baseKey = key
	p.base = &first
	p.pages = nil
	p.state = PagerState{State: State[SearchData]{IsLoading: true, IsValidating: true}}
	if p.keepPrevious && prev.HasData {
		p.state.Data = prev.Data
		p.state.HasData = true
		p.state.Stale = true
	}
	p.dispatchLocked(ctx, 1)
	return p.state
}

// LoadMore requests the next page. It reports false when there is nothing
// to load or a request is already in flight.
func (p *Pager) LoadMore(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.base == nil || p.pending != 0 || len(p.pages) == 0 {
		return false
	}
	if !p.pages[len(p.pages)-1].Listing.HasMore {
		return false
	}
	p.state.LoadingMore = true
	p.state.IsValidating = true
	p.state.Err = nil
	p.dispatchLocked(ctx, len(p.pages)+1)
	return true
}

// Revalidate reloads from the first page, keeping the current items visible.
func (p *Pager) Revalidate(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.base == nil {
		return false
	}
	p.state.Err = nil
	p.state.IsValidating = true
	p.state.LoadingMore = false
	p.state.IsLoading = !p.state.Fresh()
	p.dispatchLocked(ctx, 1)
	return true
}

// State returns the current state.
func (p *Pager) State() PagerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close cancels any in-flight request.
func (p *Pager) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suppressLocked()
}

func (p *Pager) suppressLocked() {
	if p.base == nil && p.cancel == nil {
		return
	}
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.baseKey = ""
	p.base = nil
	p.pages = nil
	p.pending = 0
	p.state = PagerState{}
}

func (p *Pager) dispatchLocked(ctx context.Context, page int) {
	p.gen++
	if p.cancel != nil {
		p.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.pending = page
	go p.run(reqCtx, cancel, p.gen, p.base.WithPage(page))
}

func (p *Pager) run(ctx context.Context, cancel context.CancelFunc, gen uint64, vars query.Listing) {
	defer cancel()

	raw, err := p.exec.Execute(ctx, vars.Query(), vars.Map())

	var data SearchData
	if err == nil {
		data = decodeOrEmpty(DecodeSearch, raw, pagerName, p.logger)
	}

	p.mu.Lock()
	if gen != p.gen || (err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		p.mu.Unlock()
		metrics.StaleResponsesDiscardedTotal.WithLabelValues(pagerName).Inc()
		p.logger.Debug("Discarded stale page", zap.Int("page", vars.Page))
		return
	}
	p.cancel = nil
	p.pending = 0
	if err != nil {
		p.state.Err = err
		p.state.IsLoading = false
		p.state.IsValidating = false
		p.state.LoadingMore = false
	} else {
		if vars.Page == 1 {
			p.pages = []SearchData{data}
		} else {
			p.pages = append(p.pages, data)
		}
		p.state = PagerState{
			State: State[SearchData]{Data: mergePages(p.pages), HasData: true},
			Pages: len(p.pages),
		}
	}
	notify := p.notify
	p.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func mergePages(pages []SearchData) SearchData {
	if len(pages) == 0 {
		return SearchData{}
	}
	out := SearchData{Listing: pages[0].Listing, Facets: pages[0].Facets}
	for _, pg := range pages[1:] {
		out.Listing = out.Listing.Append(pg.Listing)
	}
	return out
}
