// Package session keeps the live listing pages served over HTTP.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/refinement"
	logpkg "github.com/kailas-cloud/listingpage/internal/logger"
	"github.com/kailas-cloud/listingpage/internal/metrics"
	"github.com/kailas-cloud/listingpage/internal/usecase/page"
)

// Limits bounds the registry.
type Limits struct {
	IdleTTL     time.Duration
	MaxSessions int
}

// CreateRequest opens a page. A nil PreferSingleRequest uses the registry default.
type CreateRequest struct {
	Category            string
	PreferSingleRequest *bool
	Refinement          refinement.State
}

type entry struct {
	page     *page.Page
	lastUsed time.Time
}

// Registry owns page sessions keyed by uuid.
type Registry struct {
	ctx    context.Context
	exec   page.Executor
	cfg    page.Config
	limits Limits
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// New creates a registry. Pages run on contexts derived from ctx.
func New(ctx context.Context, exec page.Executor, cfg page.Config, limits Limits, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		ctx:      ctx,
		exec:     exec,
		cfg:      cfg,
		limits:   limits,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Create opens a page and registers it. The page is not rendered yet.
func (r *Registry) Create(req CreateRequest) (string, *page.Page, error) {
	if req.Category == "" {
		return "", nil, fmt.Errorf("%w: category is required", domain.ErrInvalidRefinement)
	}
	if err := req.Refinement.Validate(); err != nil {
		return "", nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limits.MaxSessions > 0 && len(r.sessions) >= r.limits.MaxSessions {
		return "", nil, domain.ErrTooManySessions
	}

	id := uuid.NewString()
	cfg := r.cfg
	if req.PreferSingleRequest != nil {
		cfg.PreferSingleRequest = *req.PreferSingleRequest
	}
	log := logpkg.ForPage(r.logger, req.Category, id)
	p := page.New(r.ctx, r.exec, req.Category, req.Refinement, cfg, log)

	r.sessions[id] = &entry{page: p, lastUsed: r.now()}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	log.Debug("Session created")
	return id, p, nil
}

// Get returns the page for id and marks it used.
func (r *Registry) Get(id string) (*page.Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	e.lastUsed = r.now()
	return e.page, nil
}

// Delete closes and removes the page for id.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	e.page.Close()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many were removed.
func (r *Registry) Sweep() int {
	if r.limits.IdleTTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.limits.IdleTTL)

	r.mu.Lock()
	var expired []*page.Page
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			expired = append(expired, e.page)
			delete(r.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	for _, p := range expired {
		p.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("Idle sessions evicted", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close closes every page.
func (r *Registry) Close() {
	r.mu.Lock()
	pages := make([]*page.Page, 0, len(r.sessions))
	for _, e := range r.sessions {
		pages = append(pages, e.page)
	}
	clear(r.sessions)
	metrics.ActiveSessions.Set(0)
	r.mu.Unlock()

	for _, p := range pages {
		p.Close()
	}
}
