package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"umrah_prices/internal/domain"
)

// CacheManager fronts the provider adapters with per-source TTLs. It is a
// performance layer only: any cache failure falls through to a direct,
// rate-limited fetch.
type CacheManager struct {
	cache      domain.Cache
	ttls       map[string]int // seconds per source
	defaultTTL int
}

func NewCacheManager(cache domain.Cache, ttls map[string]int, defaultTTLSec int) *CacheManager {
	if defaultTTLSec <= 0 {
		defaultTTLSec = 900
	}
	return &CacheManager{cache: cache, ttls: ttls, defaultTTL: defaultTTLSec}
}

func (m *CacheManager) TTL(source string) int {
	if sec, ok := m.ttls[source]; ok && sec > 0 {
		return sec
	}
	return m.defaultTTL
}

// GetOrFetch returns the live cached value for key, or invokes fetch and
// stores the result under the source's TTL. The second return reports a
// cache hit, so callers can skip rate-limiter accounting.
func GetOrFetch[T any](ctx context.Context, m *CacheManager, source, key string, fetch func(context.Context) (T, error)) (T, bool, error) {
	var cached T
	if m != nil && m.cache != nil {
		ok, err := m.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn().Err(err).Str("source", source).Str("key", key).Msg("cache read failed, fetching directly")
		} else if ok {
			return cached, true, nil
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, false, err
	}

	if m != nil && m.cache != nil {
		if err := m.cache.Set(ctx, key, v, m.TTL(source)); err != nil {
			log.Warn().Err(err).Str("source", source).Str("key", key).Msg("cache write failed")
		}
	}
	return v, false, nil
}
