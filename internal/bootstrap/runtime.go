// Package bootstrap connects the shared runtime dependencies used by the commands.
package bootstrap

import (
	"context"
	"fmt"

	"inkwell/internal/cache"
	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipRedis leaves the cache and realtime delivery disabled.
	SkipRedis bool
	// ServiceName labels traces emitted by the process.
	ServiceName string
}

// Runtime holds the connected dependencies and releases them on Close.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client

	shutdownTracing func(context.Context) error
}

// InitRuntime starts tracing and connects to the database and, unless skipped, Redis.
// An unreachable Redis leaves Runtime.Redis nil rather than failing.
func InitRuntime(cfg *config.Config, opts Options) (*Runtime, error) {
	name := opts.ServiceName
	if name == "" {
		name = "inkwell"
	}
	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  name,
		Environment:  cfg.Env,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSamplerRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rt := &Runtime{DB: db, shutdownTracing: shutdown}
	if !opts.SkipRedis {
		rt.Redis = cache.InitRedis(cfg.RedisURL)
	}
	return rt, nil
}

// Close flushes pending traces.
func (r *Runtime) Close(ctx context.Context) {
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			observability.GlobalLogger.Error("tracing shutdown failed", "error", err)
		}
	}
}

// CloseStores closes the database and Redis connections. Commands that hand the
// connections to a server leave this to the server's own shutdown.
func (r *Runtime) CloseStores() {
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
}
