package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listingpage/internal/domain"
	logpkg "github.com/kailas-cloud/listingpage/internal/logger"
	"github.com/kailas-cloud/listingpage/internal/transport/urlstate"
	healthuc "github.com/kailas-cloud/listingpage/internal/usecase/health"
	"github.com/kailas-cloud/listingpage/internal/usecase/page"
	"github.com/kailas-cloud/listingpage/internal/usecase/session"
)

const maxBodyBytes = 1 << 16

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Sessions is the page session registry.
type Sessions interface {
	Create(req session.CreateRequest) (string, *page.Page, error)
	Get(id string) (*page.Page, error)
	Delete(id string) error
}

// CachePurger drops cached query responses.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// Server serves the page session API.
type Server struct {
	sessions      Sessions
	health        *healthuc.Service
	purger        CachePurger
	maxWait       time.Duration
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. purger can be nil when no cache is configured.
func NewServer(
	sessions Sessions,
	health *healthuc.Service,
	purger CachePurger,
	maxWait time.Duration,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions: sessions,
		health:   health,
		purger:   purger,
		maxWait:  maxWait,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, codeSessionNotFound),
		sentinelHandler(domain.ErrPageClosed, http.StatusGone, codePageClosed),
		sentinelHandler(domain.ErrInvalidRefinement, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrTooManySessions, http.StatusServiceUnavailable, codeTooManySessions),
		sentinelHandler(domain.ErrTransport, http.StatusBadGateway, codeUpstreamError),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/pages", s.CreatePage)
		r.Route("/pages/{id}", func(r chi.Router) {
			r.Get("/", s.GetPage)
			r.Delete("/", s.DeletePage)
			r.Put("/refinement", s.Refine)
			r.Put("/category", s.SetCategory)
			r.Put("/preference", s.SetPreference)
			r.Post("/more", s.LoadMore)
			r.Post("/retry", s.Retry)
		})
		r.Delete("/cache", s.PurgeCache)
	})
}

// CreatePage handles POST /v1/pages. The refinement comes from the query string.
func (s *Server) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req createPageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := urlstate.Decode(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	id, p, err := s.sessions.Create(session.CreateRequest{
		Category:            req.Category,
		PreferSingleRequest: req.PreferSingleRequest,
		Refinement:          st,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	logpkg.FromContext(r.Context()).Info("Page opened",
		zap.String("session_id", id),
		zap.String("category", req.Category),
	)

	p.Render()
	w.Header().Set("Location", "/v1/pages/"+id)
	s.respond(w, r, http.StatusCreated, id, p, nil)
}

// GetPage handles GET /v1/pages/{id}.
func (s *Server) GetPage(w http.ResponseWriter, r *http.Request) {
	id, p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, r, http.StatusOK, id, p, nil)
}

// DeletePage handles DELETE /v1/pages/{id}.
func (s *Server) DeletePage(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refine handles PUT /v1/pages/{id}/refinement.
func (s *Server) Refine(w http.ResponseWriter, r *http.Request) {
	id, p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st, err := urlstate.Decode(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if _, err := p.Refine(st); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.respond(w, r, http.StatusOK, id, p, nil)
}

// SetCategory handles PUT /v1/pages/{id}/category. The query string carries
// the refinement the new category opens with.
func (s *Server) SetCategory(w http.ResponseWriter, r *http.Request) {
	id, p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "category is required")
		return
	}
	st, err := urlstate.Decode(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	if _, err := p.SetCategory(req.Category, st); err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.respond(w, r, http.StatusOK, id, p, nil)
}

// SetPreference handles PUT /v1/pages/{id}/preference.
func (s *Server) SetPreference(w http.ResponseWriter, r *http.Request) {
	id, p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req preferenceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p.SetPreferSingleRequest(req.PreferSingleRequest)
	s.respond(w, r, http.StatusOK, id, p, nil)
}

// LoadMore handles POST /v1/pages/{id}/more.
func (s *Server) LoadMore(w http.ResponseWriter, r *http.Request) {
	id, p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	accepted := p.LoadMore()
	s.respond(w, r, http.StatusOK, id, p, &accepted)
}

// Retry handles POST /v1/pages/{id}/retry.
func (s *Server) Retry(w http.ResponseWriter, r *http.Request) {
	id, p, ok := s.lookup(w, r)
	if !ok {
		return
	}
	accepted := p.Retry()
	s.respond(w, r, http.StatusOK, id, p, &accepted)
}

// PurgeCache handles DELETE /v1/cache.
func (s *Server) PurgeCache(w http.ResponseWriter, r *http.Request) {
	if s.purger == nil {
		writeError(w, http.StatusNotImplemented, codeCacheDisabled, "response cache is not configured")
		return
	}
	n, err := s.purger.Purge(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"purged": n})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (string, *page.Page, bool) {
	id := chi.URLParam(r, "id")
	p, err := s.sessions.Get(id)
	if err != nil {
		s.handleDomainError(w, err)
		return "", nil, false
	}
	return id, p, true
}

// respond writes the page view. With ?wait=true it first blocks until the
// page settles or the wait budget runs out; an unsettled view is still a 200.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, id string, p *page.Page, accepted *bool) {
	v := p.View()
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), s.maxWait)
		var err error
		v, err = p.WaitIdle(ctx)
		cancel()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			s.handleDomainError(w, err)
			return
		}
	}
	resp := pageToResponse(id, p.PreferSingleRequest(), p.Refinement(), v)
	resp.Accepted = accepted
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var se *domain.UpstreamStatusError
	if errors.As(err, &se) {
		return se.Error()
	}
	sentinels := []error{
		domain.ErrSessionNotFound,
		domain.ErrPageClosed,
		domain.ErrInvalidRefinement,
		domain.ErrTooManySessions,
		domain.ErrUpstreamGraphQL,
		domain.ErrTransport,
		domain.ErrDecode,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	if errors.Is(err, domain.ErrInvalidRefinement) {
		msg = err.Error()
	}
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
