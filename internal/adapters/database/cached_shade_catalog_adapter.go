package database

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/providers"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	"github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/observability"
)

// shadeCatalogTTL in seconds; the catalog only changes with a migration
const shadeCatalogTTL = 3600

// CachedShadeCatalogAdapter wraps a ShadeCatalogRepository with a read-through cache
type CachedShadeCatalogAdapter struct {
	adapter repositories.ShadeCatalogRepository
	cache   providers.CacheProvider
}

// NewCachedShadeCatalogAdapter creates a new cached shade catalog adapter
func NewCachedShadeCatalogAdapter(adapter repositories.ShadeCatalogRepository, cache providers.CacheProvider) repositories.ShadeCatalogRepository {
	return &CachedShadeCatalogAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

func shadeCatalogCacheKey(productLine string) string {
	return "shades:" + strings.ToLower(strings.TrimSpace(productLine))
}

// ListByProductLine serves from cache and falls back to the store on a miss or a cache error
func (a *CachedShadeCatalogAdapter) ListByProductLine(ctx context.Context, productLine string) ([]entities.ShadeEntry, error) {
	logger := observability.LoggerFromContext(ctx)
	key := shadeCatalogCacheKey(productLine)

	cached, err := a.cache.Get(ctx, key)
	switch {
	case err == nil:
		var shades []entities.ShadeEntry
		decodeErr := json.Unmarshal(cached, &shades)
		if decodeErr == nil {
			observability.RecordShadeCatalogLookup(ctx, true)
			return shades, nil
		}
		logger.Warn().Err(decodeErr).Str("key", key).Msg("Discarding undecodable cached shade list")
	case !errors.Is(err, providers.ErrCacheMiss):
		logger.Warn().Err(err).Str("key", key).Msg("Shade cache read failed")
	}

	observability.RecordShadeCatalogLookup(ctx, false)
	shades, err := a.adapter.ListByProductLine(ctx, productLine)
	if err != nil {
		return nil, err
	}

	// empty lists are cached too so unknown brands do not hit the database every call
	if data, err := json.Marshal(shades); err == nil {
		if err := a.cache.Set(ctx, key, data, shadeCatalogTTL); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("Failed to cache shade list")
		}
	}
	return shades, nil
}

// InvalidateShadeCatalog drops the cached shade lists of the given product
// lines so the next lookup reads the store again
func InvalidateShadeCatalog(ctx context.Context, cache providers.CacheProvider, productLines ...string) error {
	if len(productLines) == 0 {
		return nil
	}
	keys := make([]string, len(productLines))
	for i, line := range productLines {
		keys[i] = shadeCatalogCacheKey(line)
	}
	return cache.Delete(ctx, keys...)
}
