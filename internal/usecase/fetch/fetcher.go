package fetch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingpage/internal/domain/query"
	"github.com/kailas-cloud/listingpage/internal/metrics"
)

// Fetcher runs one query strategy. Every new request key bumps a generation
// counter and cancels the previous request; resolutions carrying an older
// generation are discarded.
type Fetcher[T any] struct {
	name         string
	exec         Executor
	decode       Decoder[T]
	keepPrevious bool
	notify       func()
	logger       *zap.Logger

	mu     sync.Mutex
	key    string
	vars   query.Variables
	gen    uint64
	cancel context.CancelFunc
	state  State[T]
}

// Option configures a Fetcher or Pager.
type Option func(*options)

type options struct {
	keepPrevious bool
	notify       func()
	logger       *zap.Logger
}

// WithKeepPrevious exposes the previous key's data, marked Stale, while a new key loads.
func WithKeepPrevious() Option { return func(o *options) { o.keepPrevious = true } }

// WithNotify registers a callback invoked after every accepted resolution.
// It is called without internal locks held.
func WithNotify(fn func()) Option { return func(o *options) { o.notify = fn } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// New creates a fetcher for one query strategy.
func New[T any](name string, exec Executor, decode Decoder[T], opts ...Option) *Fetcher[T] {
	o := buildOptions(opts)
	return &Fetcher[T]{
		name:         name,
		exec:         exec,
		decode:       decode,
		keepPrevious: o.keepPrevious,
		notify:       o.notify,
		logger:       o.logger.With(zap.String("fetcher", name)),
	}
}

// Use declares the variables for the current render and returns the fetcher state.
// nil variables suppress the fetcher: any in-flight request is cancelled and
// no I/O happens. Repeating the same variables never issues a second request.
func (f *Fetcher[T]) Use(ctx context.Context, vars query.Variables) State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if vars == nil {
		f.suppressLocked()
		return f.state
	}

	key := query.Key(vars)
	if key == f.key {
		return f.state
	}

	prev := f.state
	f.key = key
	f.vars = vars
	f.state = State[T]{IsLoading: true, IsValidating: true}
	if f.keepPrevious && prev.HasData {
		f.state.Data = prev.Data
		f.state.HasData = true
		f.state.Stale = true
	}
	f.dispatchLocked(ctx)
	return f.state
}

// Revalidate re-issues the current request, keeping data already shown.
// It reports false when the fetcher is suppressed.
func (f *Fetcher[T]) Revalidate(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.vars == nil {
		return false
	}
	f.state.Err = nil
	f.state.IsValidating = true
	f.state.IsLoading = !f.state.Fresh()
	f.dispatchLocked(ctx)
	return true
}

// State returns the current state without declaring variables.
func (f *Fetcher[T]) State() State[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Close cancels any in-flight request.
func (f *Fetcher[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suppressLocked()
}

func (f *Fetcher[T]) suppressLocked() {
	if f.vars == nil && f.cancel == nil {
		return
	}
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.key = ""
	f.vars = nil
	f.state = State[T]{}
}

func (f *Fetcher[T]) dispatchLocked(ctx context.Context) {
	f.gen++
	if f.cancel != nil {
		f.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	go f.run(reqCtx, cancel, f.gen, f.vars)
}

func (f *Fetcher[T]) run(ctx context.Context, cancel context.CancelFunc, gen uint64, vars query.Variables) {
	defer cancel()

	raw, err := f.exec.Execute(ctx, vars.Query(), vars.Map())

	var data T
	if err == nil {
		data = decodeOrEmpty(f.decode, raw, f.name, f.logger)
	}

	f.mu.Lock()
	if gen != f.gen || (err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		f.mu.Unlock()
		metrics.StaleResponsesDiscardedTotal.WithLabelValues(f.name).Inc()
		f.logger.Debug("Discarded stale response", zap.String("query", string(vars.Query())))
		return
	}
	f.cancel = nil
	if err != nil {
		f.state.Err = err
		f.state.IsLoading = false
		f.state.IsValidating = false
	} else {
		f.state = State[T]{Data: data, HasData: true}
	}
	notify := f.notify
	f.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// decodeOrEmpty treats shape errors as "no data" so the page stays renderable.
func decodeOrEmpty[T any](decode Decoder[T], raw []byte, name string, logger *zap.Logger) T {
	data, err := decode(raw)
	if err != nil {
		metrics.DecodeFailuresTotal.WithLabelValues(name).Inc()
		logger.Warn("Response missing expected fields, rendering empty", zap.Error(err))
		var zero T
		return zero
	}
	return data
}
