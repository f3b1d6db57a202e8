// cmd/librarydesk/app.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"librarydesk/internal/assistant"
	"librarydesk/internal/auth"
	"librarydesk/internal/backend"
	"librarydesk/internal/catalog"
	"librarydesk/internal/config"
	"librarydesk/internal/notify"
	"librarydesk/internal/server"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// buildDeps connects every configured collaborator. Optional ones that are
// not configured, or that cannot be reached at startup, fall back to their
// local stand-ins. The returned cleanup releases whatever was opened.
func buildDeps(ctx context.Context, cfg *config.Config, logger *zap.Logger) (server.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	d := server.Deps{
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		AssistantOptions: assistant.Options{
			CacheTTL:  cfg.AssistantCacheTTL,
			PerMinute: cfg.AssistantPerMin,
			Burst:     cfg.AssistantBurst,
		},
		Logger: logger,
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return d, cleanup, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return d, cleanup, fmt.Errorf("failed to reach database: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		d.Backend = backend.NewPostgresClient(db)
		logger.Info("using direct database backend")
	} else {
		d.Backend = backend.NewClient(cfg.BackendURL, cfg.BackendKey,
			backend.WithReadRetries(cfg.BackendTries, cfg.BackendRetry))
		logger.Info("using REST backend", zap.String("url", cfg.BackendURL))
	}

	if cfg.MeiliHost != "" {
		d.Searcher = catalog.NewMeiliSearcher(cfg.MeiliHost, cfg.MeiliKey, cfg.MeiliIndex, logger)
	}

	if cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Warn("broker unavailable, logging lending events instead", zap.Error(err))
		} else {
			closers = append(closers, func() { _ = pub.Close() })
			d.Publisher = pub
		}
	}
	if d.Publisher == nil {
		d.Publisher = notify.NewLogPublisher(logger)
	}

	if cfg.GenAIKey != "" {
		gen, err := assistant.NewGeminiGenerator(ctx, cfg.GenAIKey, cfg.GenAIModel)
		if err != nil {
			logger.Warn("assistant disabled", zap.Error(err))
		} else {
			d.Generator = gen
		}
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, caching assistant answers in memory", zap.Error(err))
			_ = rdb.Close()
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			d.Cache = assistant.NewRedisCache(rdb, "librarydesk:assistant:")
		}
	}

	return d, cleanup, nil
}
