package listingpage

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type clientConfig struct {
	driver       string
	addrs        []string
	password     string
	cacheTTL     time.Duration
	keyPrefix    string
	headers      map[string]string
	timeout      time.Duration
	httpClient   *http.Client
	rateLimitRPS float64
	burst        int
	prefer       bool
	pageSize     int
	limit        int
	logger       *zap.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

// WithValkey caches query responses in Valkey.
func WithValkey(addrs ...string) Option {
	return func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = addrs
	}
}

// WithRedis caches query responses in Redis.
func WithRedis(addrs ...string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = addrs
	}
}

// WithCachePassword sets the cache password.
func WithCachePassword(password string) Option {
	return func(c *clientConfig) { c.password = password }
}

// WithCacheTTL sets how long cached responses stay valid.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *clientConfig) { c.cacheTTL = ttl }
}

// WithCacheKeyPrefix namespaces cached responses.
func WithCacheKeyPrefix(prefix string) Option {
	return func(c *clientConfig) { c.keyPrefix = prefix }
}

// WithHeaders adds static headers to every upstream request.
func WithHeaders(h map[string]string) Option {
	return func(c *clientConfig) { c.headers = h }
}

// WithTimeout sets the upstream request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithHTTPClient replaces the upstream HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithRateLimit caps upstream requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *clientConfig) {
		c.rateLimitRPS = rps
		c.burst = burst
	}
}

// WithPreferSingleRequest enables the unified and consolidated strategies.
func WithPreferSingleRequest(prefer bool) Option {
	return func(c *clientConfig) { c.prefer = prefer }
}

// WithPageSize sets the listing page size.
func WithPageSize(n int) Option {
	return func(c *clientConfig) { c.pageSize = n }
}

// WithConsolidatedLimit sets the item limit of the consolidated strategy.
func WithConsolidatedLimit(n int) Option {
	return func(c *clientConfig) { c.limit = n }
}

// WithLogger sets the logger for pages and transport.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
