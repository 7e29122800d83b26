package export

import (
	"context"
	"time"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/metrics"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

const (
	registryCacheKey = "export:registry"
	reportCacheKey   = "export:quality-report"
)

// ReportCache is the read-through cache the decorated service loads
// expensive exports into. Satisfied by the redis cache.
type ReportCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedService wraps a Service and serves the two full-registry sweeps,
// Registry and the unsampled Metrics report, through the cache. Entries
// carry a short TTL rather than explicit invalidation, so a registry
// mutated by a concurrent run is visible within one TTL window.
type CachedService struct {
	Service
	cache  ReportCache
	ttl    time.Duration
	logger logging.Logger
}

// NewCachedService decorates svc with read-through caching. A ttl of zero
// defaults to 30 seconds.
func NewCachedService(svc Service, cache ReportCache, ttl time.Duration, logger logging.Logger) (*CachedService, error) {
	if svc == nil || cache == nil {
		return nil, errors.InvalidParam("cached export service requires a service and a cache")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachedService{Service: svc, cache: cache, ttl: ttl, logger: logger.Named("export-cache")}, nil
}

func (s *CachedService) Registry(ctx context.Context) ([]restypes.EntityExport, error) {
	var out []restypes.EntityExport
	err := s.cache.GetOrSet(ctx, registryCacheKey, &out, s.ttl, func(ctx context.Context) (interface{}, error) {
		entities, err := s.Service.Registry(ctx)
		if err != nil {
			return nil, err
		}
		return entities, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Metrics caches only the unsampled report; a labeled validation sample
// changes the precision/recall section, so sampled requests go straight
// through.
func (s *CachedService) Metrics(ctx context.Context, sample []metrics.LabeledPair) (*restypes.MetricsReport, error) {
	if len(sample) > 0 {
		return s.Service.Metrics(ctx, sample)
	}
	var out restypes.MetricsReport
	err := s.cache.GetOrSet(ctx, reportCacheKey, &out, s.ttl, func(ctx context.Context) (interface{}, error) {
		report, err := s.Service.Metrics(ctx, nil)
		if err != nil {
			return nil, err
		}
		return report, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate drops the cached sweeps. Call after a run mutates the registry
// to shrink the staleness window below the TTL.
func (s *CachedService) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, registryCacheKey, reportCacheKey)
}
