package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listingpage/internal/config"
	dbRedis "github.com/kailas-cloud/listingpage/internal/db/redis"
	logpkg "github.com/kailas-cloud/listingpage/internal/logger"
	"github.com/kailas-cloud/listingpage/internal/metrics"
	"github.com/kailas-cloud/listingpage/internal/repository/querycache"
	"github.com/kailas-cloud/listingpage/internal/telemetry"
	chiTransport "github.com/kailas-cloud/listingpage/internal/transport/chi"
	"github.com/kailas-cloud/listingpage/internal/transport/graphql"
	healthuc "github.com/kailas-cloud/listingpage/internal/usecase/health"
	"github.com/kailas-cloud/listingpage/internal/usecase/page"
	"github.com/kailas-cloud/listingpage/internal/usecase/session"
	"github.com/kailas-cloud/listingpage/internal/version"
)

const sweepInterval = 30 * time.Second

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting listingpage API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("upstream", cfg.Upstream.Endpoint),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.Bool("prefer_single_request", cfg.Page.PreferSingleRequest),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName, cfg.Telemetry.Insecure)
	if err != nil {
		logger.Fatal("Failed to set up tracing", zap.Error(err))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterQueryMetrics()
	metrics.RegisterHTTPMetrics()

	registry, err := graphql.DefaultRegistry()
	if err != nil {
		logger.Fatal("Invalid query documents", zap.Error(err))
	}
	upstream := graphql.NewExecutor(cfg.Upstream.Endpoint, registry,
		graphql.WithTimeout(time.Duration(cfg.Upstream.TimeoutSec)*time.Second),
		graphql.WithHeaders(cfg.Upstream.Headers),
		graphql.WithRateLimit(cfg.Upstream.RateLimitRPS, cfg.Upstream.Burst),
		graphql.WithLogger(logger),
	)

	// Pass nil interfaces (not typed nil pointers) when the cache is disabled.
	var (
		cacheStore  *dbRedis.Store
		cachePinger healthuc.CachePinger
		executor    *querycache.CachedExecutor
	)
	if cfg.Cache.Enabled() {
		cacheStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Cache.Addrs,
			Password:   cfg.Cache.Password,
			ClientName: cfg.Telemetry.ServiceName,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cacheStore.Close()

		if err := cacheStore.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to cache", zap.Strings("addrs", cfg.Cache.Addrs))

		cachePinger = cacheStore
		executor = querycache.New(upstream, cacheStore, time.Duration(cfg.Cache.TTLSec)*time.Second,
			cfg.Cache.KeyPrefix, metrics.QueryCacheTotal, logger)
	} else {
		executor = querycache.New(upstream, nil, 0, "", metrics.QueryCacheTotal, logger)
	}

	sessions := session.New(ctx, executor, page.Config{
		PreferSingleRequest: cfg.Page.PreferSingleRequest,
		PageSize:            cfg.Page.PageSize,
		ConsolidatedLimit:   cfg.Page.ConsolidatedLimit,
	}, session.Limits{
		IdleTTL:     time.Duration(cfg.Sessions.IdleTTLSec) * time.Second,
		MaxSessions: cfg.Sessions.MaxSessions,
	}, logger)
	defer sessions.Close()
	go sessions.Run(ctx, sweepInterval)

	var purger chiTransport.CachePurger
	if cfg.Cache.Enabled() {
		purger = executor
	}
	healthSvc := healthuc.New(upstream, cachePinger)
	server := chiTransport.NewServer(sessions, healthSvc, purger,
		time.Duration(cfg.HTTP.MaxWaitSec)*time.Second, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Error flushing traces", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
