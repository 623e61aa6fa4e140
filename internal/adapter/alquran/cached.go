package alquran

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/escalopa/quran-recite-feedback/internal/domain"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "content:"

// Cached serves content responses from a cache before asking the API.
// Content is immutable, so entries only expire by TTL. Cache failures are
// logged and bypassed.
type Cached struct {
	next  domain.ContentPort
	cache domain.CachePort
	ttl   time.Duration
	log   *zap.Logger
}

var _ domain.ContentPort = (*Cached)(nil)

func NewCached(next domain.ContentPort, cache domain.CachePort, ttl time.Duration, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   logger.Named("content_cache"),
	}
}

func (c *Cached) ListSurahs(ctx context.Context) ([]domain.Surah, error) {
	return cached(ctx, c, cacheKeyPrefix+"surahs", func() ([]domain.Surah, error) {
		return c.next.ListSurahs(ctx)
	})
}

func (c *Cached) Surah(ctx context.Context, number int) (*domain.Surah, error) {
	return cached(ctx, c, fmt.Sprintf("%ssurah:%d", cacheKeyPrefix, number), func() (*domain.Surah, error) {
		return c.next.Surah(ctx, number)
	})
}

func (c *Cached) Verses(ctx context.Context, sel domain.Selection, edition string) (*domain.EditionListing, error) {
	key := fmt.Sprintf("%sverses:%s:%d:%s", cacheKeyPrefix, sel.Scope, sel.Number, edition)
	return cached(ctx, c, key, func() (*domain.EditionListing, error) {
		return c.next.Verses(ctx, sel, edition)
	})
}

func cached[T any](ctx context.Context, c *Cached, key string, load func() (T, error)) (T, error) {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.log.Warn("cache entry corrupt", zap.String("key", key))
	}

	v, err := load()
	if err != nil {
		return v, err
	}

	raw, err = json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return v, nil
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
