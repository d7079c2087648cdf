package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"travel_desk/internal/domain"
)

type QueryService struct {
	catalog  domain.CatalogAPI
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(c domain.CatalogAPI, cache domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{catalog: c, cache: cache, cacheTTL: ttl}
}

func CatalogKey(t domain.EntityType, id string) string {
	return fmt.Sprintf("catalog:%s:%s", t, id)
}

// GetEntity reads through the cache. The returned payload is a private copy.
func (s *QueryService) GetEntity(ctx context.Context, t domain.EntityType, id string) (domain.Payload, error) {
	key := CatalogKey(t, id)
	if s.cache != nil {
		var p domain.Payload
		if ok, _ := s.cache.Get(ctx, key, &p); ok && p != nil {
			return p, nil
		}
	}
	p, err := s.catalog.Get(ctx, t, id)
	if err != nil {
		return nil, err
	}

	cp, _ := deepCopy(map[string]any(p)).(map[string]any)
	if s.cache != nil {
		// optional size guard
		if b, _ := json.Marshal(cp); len(b) < 1_000_000 {
			_ = s.cache.Set(ctx, key, cp, int(s.cacheTTL.Seconds()))
		}
	}
	return domain.Payload(cp), nil
}

// Evict drops the cached copy after the entity was written.
func (s *QueryService) Evict(ctx context.Context, t domain.EntityType, id string) {
	if s == nil || s.cache == nil || id == "" {
		return
	}
	if err := s.cache.Del(ctx, CatalogKey(t, id)); err != nil {
		log.Warn().Err(err).Str("entity", string(t)).Str("id", id).Msg("catalog cache evict failed")
	}
}
