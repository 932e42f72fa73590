package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskd/internal/platform/logger"
)

// TTLs holds the lifetime of each kind of cached read.
type TTLs struct {
	FindOne time.Duration
	FindAll time.Duration
	Stats   time.Duration
}

// DefaultTTLs returns the standard lifetimes: 120s point reads, 60s lists, 30s stats.
func DefaultTTLs() TTLs {
	return TTLs{
		FindOne: 120 * time.Second,
		FindAll: 60 * time.Second,
		Stats:   30 * time.Second,
	}
}

// Policy wraps a Cache with JSON encoding and the invalidation rules of the
// task engine. Cache failures are logged and swallowed: a failed read is a
// miss, a failed write or invalidation is left to expire by TTL.
type Policy struct {
	cache  Cache
	ttl    TTLs
	logger *slog.Logger
}

// NewPolicy creates a Policy over c.
func NewPolicy(c Cache, ttl TTLs, logger *slog.Logger) *Policy {
	if c == nil {
		panic("cache cannot be nil") // ALLOW-PANIC: required dependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		cache:  c,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "cache_policy")),
	}
}

// TTLs returns the configured lifetimes.
func (p *Policy) TTLs() TTLs {
	return p.ttl
}

// Load decodes the entry under key into dst and reports whether it was a hit.
func (p *Policy) Load(ctx context.Context, key string, dst any) bool {
	log := logger.FromContextOrDefault(ctx, p.logger)

	b, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed, treating as miss",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return false
	}
	if !ok {
		return false
	}

	if err := json.Unmarshal(b, dst); err != nil {
		log.Warn("discarding undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()))
		p.delete(ctx, key)
		return false
	}
	return true
}

// Store encodes v and writes it under key for ttl.
func (p *Policy) Store(ctx context.Context, key string, v any, ttl time.Duration) {
	log := logger.FromContextOrDefault(ctx, p.logger)

	b, err := json.Marshal(v)
	if err != nil {
		log.Warn("cannot encode cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return
	}
	if err := p.cache.Set(ctx, key, b, ttl); err != nil {
		log.Warn("cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// InvalidateTask clears everything a change to task id can affect: its point
// entry, every list page and the stats.
func (p *Policy) InvalidateTask(ctx context.Context, id uuid.UUID) {
	p.delete(ctx, FindOneKey(id), StatsKey)
	p.deletePrefix(ctx, FindAllPrefix)
}

// InvalidateCollections clears the list pages and the stats. Used after an
// insert, where no point entry can exist yet.
func (p *Policy) InvalidateCollections(ctx context.Context) {
	p.delete(ctx, StatsKey)
	p.deletePrefix(ctx, FindAllPrefix)
}

func (p *Policy) delete(ctx context.Context, keys ...string) {
	if err := p.cache.Delete(ctx, keys...); err != nil {
		logger.FromContextOrDefault(ctx, p.logger).Warn("cache invalidation failed",
			slog.Any("keys", keys),
			slog.String("error", err.Error()))
	}
}

func (p *Policy) deletePrefix(ctx context.Context, prefix string) {
	if err := p.cache.DeleteByPrefix(ctx, prefix); err != nil {
		logger.FromContextOrDefault(ctx, p.logger).Warn("cache prefix invalidation failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()))
	}
}
