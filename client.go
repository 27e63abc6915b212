// Package listingpage orchestrates the data requests of storefront category
// pages against a catalog GraphQL endpoint.
package listingpage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingpage/internal/db"
	dbRedis "github.com/kailas-cloud/listingpage/internal/db/redis"
	"github.com/kailas-cloud/listingpage/internal/domain/fetchmode"
	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
	"github.com/kailas-cloud/listingpage/internal/domain/view"
	logpkg "github.com/kailas-cloud/listingpage/internal/logger"
	"github.com/kailas-cloud/listingpage/internal/metrics"
	"github.com/kailas-cloud/listingpage/internal/repository/querycache"
	"github.com/kailas-cloud/listingpage/internal/transport/graphql"
	"github.com/kailas-cloud/listingpage/internal/transport/urlstate"
	"github.com/kailas-cloud/listingpage/internal/usecase/page"
)

const defaultReadinessTimeout = 10 * time.Second

// View is the merged page state published after every change.
type View = view.View

// Refinement is one snapshot of phrase, filters, sort and page.
type Refinement = refinement.State

// Mode is the active fetch strategy.
type Mode = fetchmode.Mode

// Fetch strategies.
const (
	Unified      = fetchmode.Unified
	Consolidated = fetchmode.Consolidated
	Split        = fetchmode.Split
)

// Client is the listingpage SDK entry point.
type Client struct {
	store    db.Store
	upstream *graphql.Executor
	exec     *querycache.CachedExecutor
	cfg      page.Config
	logger   *zap.Logger
}

// New creates a Client for a catalog GraphQL endpoint. With WithValkey or
// WithRedis it connects to the response cache before returning.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("listingpage: endpoint required")
	}
	cfg := &clientConfig{timeout: 10 * time.Second, logger: zap.NewNop(), cacheTTL: 30 * time.Second}
	for _, o := range opts {
		o(cfg)
	}

	registry, err := graphql.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("listingpage: %w", err)
	}
	gqlOpts := []graphql.Option{
		graphql.WithLogger(cfg.logger),
		graphql.WithHeaders(cfg.headers),
		graphql.WithRateLimit(cfg.rateLimitRPS, cfg.burst),
	}
	if cfg.httpClient != nil {
		gqlOpts = append(gqlOpts, graphql.WithHTTPClient(cfg.httpClient))
	} else {
		gqlOpts = append(gqlOpts, graphql.WithTimeout(cfg.timeout))
	}
	upstream := graphql.NewExecutor(endpoint, registry, gqlOpts...)

	c := &Client{
		upstream: upstream,
		cfg: page.Config{
			PreferSingleRequest: cfg.prefer,
			PageSize:            cfg.pageSize,
			ConsolidatedLimit:   cfg.limit,
		},
		logger: cfg.logger,
	}

	if cfg.driver == "" {
		c.exec = querycache.New(upstream, nil, 0, "", metrics.QueryCacheTotal, cfg.logger)
		return c, nil
	}
	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("listingpage: cache not ready: %w", err)
	}
	c.store = store
	c.exec = querycache.New(upstream, store, cfg.cacheTTL, cfg.keyPrefix, metrics.QueryCacheTotal, cfg.logger)
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("listingpage: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("listingpage: unknown driver %q", cfg.driver)
	}
}

// Close releases the cache connection. Open pages must be closed separately.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks upstream connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.upstream.HealthCheck(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// PurgeCache drops cached responses.
func (c *Client) PurgeCache(ctx context.Context) (int64, error) {
	return c.exec.Purge(ctx)
}

// Open creates a page for category. query is a refinement query string such
// as "q=iphone&f=manufacturer:Apple&sort=price:ASC". Nothing is fetched
// until Render.
func (c *Client) Open(ctx context.Context, category, query string) (*Page, error) {
	if category == "" {
		return nil, errors.New("listingpage: category required")
	}
	st, err := ParseRefinement(query)
	if err != nil {
		return nil, err
	}
	log := logpkg.ForPage(c.logger, category, "")
	return &Page{p: page.New(ctx, c.exec, category, st, c.cfg, log)}, nil
}

// ParseRefinement decodes a refinement query string.
func ParseRefinement(query string) (Refinement, error) {
	st, err := urlstate.DecodeString(query)
	if err != nil {
		return Refinement{}, fmt.Errorf("listingpage: %w", err)
	}
	return st, nil
}

// FormatRefinement encodes a refinement as a query string.
func FormatRefinement(st Refinement) string {
	return urlstate.Encode(st).Encode()
}

// Page is one orchestrated category page.
type Page struct {
	p *page.Page
}

// Render mounts the page on the first call and returns the current view.
func (pg *Page) Render() View { return pg.p.Render() }

// Refine applies a refinement query string.
func (pg *Page) Refine(query string) (View, error) {
	st, err := ParseRefinement(query)
	if err != nil {
		return pg.p.View(), err
	}
	return pg.p.Refine(st)
}

// SetCategory navigates to another category with a fresh refinement.
func (pg *Page) SetCategory(category, query string) (View, error) {
	st, err := ParseRefinement(query)
	if err != nil {
		return pg.p.View(), err
	}
	return pg.p.SetCategory(category, st)
}

// SetPreferSingleRequest toggles the single-request strategies.
func (pg *Page) SetPreferSingleRequest(prefer bool) View { return pg.p.SetPreferSingleRequest(prefer) }

// LoadMore appends the next listing page in split mode.
func (pg *Page) LoadMore() bool { return pg.p.LoadMore() }

// Retry re-issues the active strategy's requests.
func (pg *Page) Retry() bool { return pg.p.Retry() }

// View returns the last published view.
func (pg *Page) View() View { return pg.p.View() }

// Refinement returns the current refinement.
func (pg *Page) Refinement() Refinement { return pg.p.Refinement() }

// Wait blocks until every request of the active strategy has resolved.
func (pg *Page) Wait(ctx context.Context) (View, error) { return pg.p.WaitIdle(ctx) }

// Subscribe calls fn with every published view. fn must not block or call
// back into the page.
func (pg *Page) Subscribe(fn func(View)) func() { return pg.p.Subscribe(fn) }

// Close cancels in-flight requests.
func (pg *Page) Close() { pg.p.Close() }
