package jobroles

import (
	"context"
)

// Recorder is notified of every lookup outcome
type Recorder interface {
	RecordRoleLookup(ctx context.Context, outcome string)
}

// Lookup outcomes reported to the Recorder
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeFallback = "fallback"
)

// Service answers role lookups for the UI. It never fails: when the cache
// cannot be filled the fallback catalog is returned instead.
type Service struct {
	cache    *Cache
	catalog  *Catalog
	recorder Recorder
}

// NewService wires a cache to its fallback catalog
func NewService(cache *Cache, catalog *Catalog, recorder Recorder) *Service {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Service{cache: cache, catalog: catalog, recorder: recorder}
}

// Roles returns the backend list, or the fallback list with fromFallback set
func (s *Service) Roles(ctx context.Context, token string) (roles []string, fromFallback bool) {
	roles, hit, err := s.cache.Get(ctx, token)
	if err != nil {
		s.cache.logger.Warn("Using fallback job roles", "error", err)
		s.record(ctx, OutcomeFallback)
		return s.catalog.Roles(), true
	}
	if hit {
		s.record(ctx, OutcomeHit)
	} else {
		s.record(ctx, OutcomeMiss)
	}
	return roles, false
}

// Reset drops the cached list
func (s *Service) Reset() {
	s.cache.Invalidate()
}

// Stats reports cache state for the ops endpoint
func (s *Service) Stats() map[string]any {
	return map[string]any{
		"cached":         s.cache.Cached(),
		"fallback_count": len(s.catalog.Roles()),
		"fallback_file":  s.catalog.Path(),
	}
}

func (s *Service) record(ctx context.Context, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordRoleLookup(ctx, outcome)
	}
}
