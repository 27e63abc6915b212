package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/listingpage/internal/domain"
	"github.com/kailas-cloud/listingpage/internal/domain/query"
	logpkg "github.com/kailas-cloud/listingpage/internal/logger"
	"github.com/kailas-cloud/listingpage/internal/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// Executor sends registered query documents to a GraphQL endpoint over HTTP.
type Executor struct {
	endpoint string
	registry *Registry
	client   *http.Client
	headers  http.Header
	limiter  *rate.Limiter
	tracer   trace.Tracer
	logger   *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// WithTimeout sets the per-request timeout on the configured client.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.client.Timeout = d }
}

// WithHeaders adds static headers to every request, e.g. a store code.
func WithHeaders(h map[string]string) Option {
	return func(e *Executor) {
		for k, v := range h {
			e.headers.Set(k, v)
		}
	}
}

// WithRateLimit caps outgoing requests. rps <= 0 disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Executor) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor for endpoint.
func NewExecutor(endpoint string, registry *Registry, opts ...Option) *Executor {
	e := &Executor{
		endpoint: endpoint,
		registry: registry,
		client:   &http.Client{Timeout: defaultTimeout},
		headers:  http.Header{},
		tracer:   otel.Tracer("listingpage/graphql"),
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

type request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type responseError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []responseError `json:"errors"`
}

// Execute sends the document registered under id and returns the raw data member.
func (e *Executor) Execute(ctx context.Context, id query.ID, variables map[string]any) ([]byte, error) {
	doc, err := e.registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	if err := doc.CheckVariables(variables); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "graphql.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("graphql.operation.name", string(id))),
	)
	defer span.End()

	start := time.Now()
	data, err := e.send(ctx, doc, variables)
	metrics.QueryRequestDuration.WithLabelValues(string(id)).Observe(time.Since(start).Seconds())

	log := logpkg.FromContextOr(ctx, e.logger)
	switch {
	case err == nil:
		metrics.QueryRequestsTotal.WithLabelValues(string(id), "ok").Inc()
		return data, nil
	case ctx.Err() != nil:
		metrics.QueryRequestsTotal.WithLabelValues(string(id), "canceled").Inc()
		span.SetStatus(codes.Unset, "canceled")
		return nil, ctx.Err()
	default:
		metrics.QueryRequestsTotal.WithLabelValues(string(id), "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Query failed", zap.String("query", string(id)), zap.Error(err))
		return nil, err
	}
}

func (e *Executor) send(ctx context.Context, doc Document, variables map[string]any) ([]byte, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit: %w", domain.ErrTransport, err)
		}
	}

	body, err := json.Marshal(request{Query: doc.Text, OperationName: string(doc.ID), Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	req.Header = e.headers.Clone()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewUpstreamStatus(resp.StatusCode)
	}

	var env response
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	if len(env.Errors) > 0 {
		if isNull(env.Data) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUpstreamGraphQL, env.Errors[0].Message)
		}
		logpkg.FromContextOr(ctx, e.logger).Warn("Partial query result",
			zap.String("query", string(doc.ID)),
			zap.Int("errors", len(env.Errors)),
			zap.String("first_error", env.Errors[0].Message),
		)
	}
	if isNull(env.Data) {
		return nil, nil
	}
	return env.Data, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var healthDocument = Document{ID: "Health", Text: `query Health { __typename }`}

// HealthCheck sends a trivial query and reports whether the endpoint answers.
// A GraphQL error response still proves the endpoint is reachable.
func (e *Executor) HealthCheck(ctx context.Context) error {
	_, err := e.send(ctx, healthDocument, nil)
	if err != nil && !errors.Is(err, domain.ErrUpstreamGraphQL) {
		return err
	}
	return nil
}
