package querycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/listingpage/internal/db"
	"github.com/kailas-cloud/listingpage/internal/domain/query"
)

// DefaultKeyPrefix namespaces cached responses.
const DefaultKeyPrefix = "listingpage:query:"

// executor is the decorated query executor.
type executor interface {
	Execute(ctx context.Context, id query.ID, variables map[string]any) ([]byte, error)
}

// store is the consumer interface for the response cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// CachedExecutor de-duplicates identical in-flight queries and, with a
// store configured, serves repeated queries from it within the TTL.
// Requests are keyed by query identity plus the full variable set.
type CachedExecutor struct {
	inner      executor
	store      store
	ttl        time.Duration
	prefix     string
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. s may be nil for de-duplication only.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"shared"), passed explicitly.
func New(
	inner executor,
	s store,
	ttl time.Duration,
	prefix string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedExecutor {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedExecutor{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		prefix:     prefix,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Execute returns a cached response or runs the query once for all
// concurrent identical callers. A caller whose context ends stops waiting
// without aborting the shared request.
func (c *CachedExecutor) Execute(ctx context.Context, id query.ID, variables map[string]any) ([]byte, error) {
	key, err := c.cacheKey(id, variables)
	if err != nil {
		return nil, err
	}

	if data, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return data, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		data, err := c.inner.Execute(context.WithoutCancel(ctx), id, variables)
		if err != nil {
			return nil, err
		}
		c.putToCache(context.WithoutCancel(ctx), key, data)
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.incCache("shared")
		} else {
			c.incCache("miss")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Purge removes every cached response and returns how many were dropped.
func (c *CachedExecutor) Purge(ctx context.Context) (int64, error) {
	if c.store == nil {
		return 0, nil
	}
	keys, err := c.store.Scan(ctx, c.prefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan cached queries: %w", err)
	}
	n, err := c.store.Del(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("delete cached queries: %w", err)
	}
	c.logger.Info("Purged query cache", zap.Int64("keys", n))
	return n, nil
}

func (c *CachedExecutor) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedExecutor) cacheKey(id query.ID, variables map[string]any) (string, error) {
	data, err := json.Marshal(variables)
	if err != nil {
		return "", fmt.Errorf("encode variables of %s: %w", id, err)
	}
	h := sha256.New()
	h.Write([]byte(id))
	h.Write([]byte{0})
	h.Write(data)
	return c.prefix + hex.EncodeToString(h.Sum(nil)), nil
}

func (c *CachedExecutor) getFromCache(ctx context.Context, key string) ([]byte, bool) {
	if c.store == nil || c.ttl <= 0 {
		return nil, false
	}
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached response", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

func (c *CachedExecutor) putToCache(ctx context.Context, key string, data []byte) {
	if c.store == nil || c.ttl <= 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache response", zap.String("key", key), zap.Error(err))
	}
}
