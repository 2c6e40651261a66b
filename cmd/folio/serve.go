package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/folio/pkg/analytics"
	"github.com/platinummonkey/folio/pkg/api"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/config"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/search"
	"github.com/platinummonkey/folio/pkg/search/schemacache"
	"github.com/platinummonkey/folio/pkg/storage/postgres"
	"github.com/platinummonkey/folio/pkg/storage/sqlstore"
)

const (
	replicaCheckInterval = 30 * time.Second
	dbStatsInterval      = 15 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search API server",
		RunE:  runServe,
	}
	cmd.Flags().String("host", "", "listen host")
	cmd.Flags().String("port", "", "listen port")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Observability.Level(), cmd.OutOrStdout())

	// background loops stop when ctx is cancelled during shutdown
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	otelCfg := cfg.Observability.OTel()
	if otelCfg.ServiceVersion == "" || otelCfg.ServiceVersion == "dev" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg.Storage, logger)
	if err != nil {
		return err
	}
	if db.manager != nil {
		db.manager.StartHealthCheckRoutine(ctx, replicaCheckInterval)
	}

	var cache *postgres.RedisClient
	if cfg.Redis.Enabled {
		cache, err = postgres.NewRedisClient(postgres.RedisConfig{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
			SchemaTTL:  cfg.Redis.SchemaTTL,
		})
		if err != nil {
			db.Close()
			return err
		}
	}

	registry := prometheus.NewRegistry()
	var (
		httpMetrics   *observability.Metrics
		searchMetrics *observability.SearchMetrics
	)
	if cfg.Observability.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		httpMetrics = observability.NewMetrics(registry)
		searchMetrics = observability.NewSearchMetrics(registry)
		if otelCfg.Enabled {
			otelMetrics, err := observability.NewOTelSearchMetrics()
			if err != nil {
				logger.WithError(err).Warn("OpenTelemetry search metrics unavailable")
			} else {
				searchMetrics.WithOTel(otelMetrics)
			}
		}
		go recordDBStats(ctx, httpMetrics, db)
	}

	engine := buildEngine(cfg, db, cache, searchMetrics, logger)
	tokens := auth.NewTokenManager(auth.NewSQLKeyStore(db.conn, db.dialect), logger)
	authn := middleware.NewAuthMiddleware(tokens, auth.NewAuditLogger(logger), false)

	var redisClient *redis.Client
	if cache != nil {
		redisClient = cache.GetClient()
	}
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithAnalytics(analytics.NewService(db.conn, db.dialect)),
		api.WithHealth(observability.NewHealthChecker(version, db.primary, redisClient)),
	}
	if cfg.Observability.MetricsEnabled {
		opts = append(opts, api.WithMetrics(httpMetrics, registry))
	}
	if cfg.RateLimit.Enabled {
		limiter := buildLimiter(ctx, cfg.RateLimit, cache)
		opts = append(opts, api.WithRateLimit(middleware.NewRateLimitMiddleware(limiter, cfg.RateLimit.FailOpen)))
	}

	handler := api.NewServer(engine, authn, api.Config{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Tracing:        otelCfg.Enabled,
	}, opts...)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		stop()
		return nil
	})
	if providers != nil {
		shutdown.RegisterShutdownFunc(providers.Shutdown)
	}
	if cache != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error { return cache.Close() })
	}
	shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":    server.Addr,
			"driver":  db.dialect.String(),
			"version": version,
		}).Info("folio search server listening")
		serveErr <- server.ListenAndServe()
	}()

	done := make(chan error, 1)
	go func() { done <- shutdown.WaitForShutdown() }()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return <-done
		}
		_ = shutdown.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	case err := <-done:
		return err
	}
}

func buildEngine(cfg *config.Config, db *database, cache *postgres.RedisClient, metrics *observability.SearchMetrics, logger *observability.Logger) *search.Engine {
	cacheOpts := []schemacache.Option{schemacache.WithLogger(logger)}
	if cache != nil {
		cacheOpts = append(cacheOpts, schemacache.WithRemote(cache))
	}
	if metrics != nil {
		cacheOpts = append(cacheOpts, schemacache.WithMetrics(metrics))
	}
	schemas := schemacache.New(sqlstore.NewSchemaLoader(db.conn, db.dialect), schemacache.Config{
		Size: cfg.Search.SchemaCacheSize,
		TTL:  cfg.Search.SchemaCacheTTL,
	}, cacheOpts...)

	opts := []search.Option{
		search.WithSchemaLoader(schemas),
		search.WithLimits(cfg.Search.Limits()),
		search.WithCursorSecret(cfg.Search.CursorSecret),
		search.WithPropertyPolicy(cfg.Search.Policy()),
		search.WithEventTimeout(cfg.Search.EventTimeout),
		search.WithLogger(logger),
	}
	if metrics != nil {
		opts = append(opts, search.WithMetrics(metrics))
	}
	if cfg.Search.AnalyticsEnabled {
		opts = append(opts, search.WithEventSink(analytics.NewSearchTracker(db.conn, db.dialect)))
	}
	return search.NewEngine(sqlstore.NewExecutors(db.conn, db.dialect), opts...)
}

func buildLimiter(ctx context.Context, cfg config.RateLimitConfig, cache *postgres.RedisClient) middleware.Limiter {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RequestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Burst,
	}
	if cfg.Distributed && cache != nil {
		return middleware.NewDistributedRateLimiter(cache.GetClient(), limits, "")
	}
	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter
}

func recordDBStats(ctx context.Context, metrics *observability.Metrics, db *database) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.RecordDBStats(db.primary.Stats())
		case <-ctx.Done():
			return
		}
	}
}
