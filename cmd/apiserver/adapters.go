package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	appexport "github.com/DailyForkCast/osint-foresight-sub003/internal/application/export"
	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	domres "github.com/DailyForkCast/osint-foresight-sub003/internal/domain/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/redis"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/storage/minio"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// invalidatingBatchService drops the cached export sweeps whenever a run
// mutates the registry, so readers see new entities before the cache TTL.
type invalidatingBatchService struct {
	appres.Service
	cache *appexport.CachedService
}

func (s *invalidatingBatchService) Run(ctx context.Context, in *appres.RunInput) (*appres.RunResult, error) {
	out, err := s.Service.Run(ctx, in)
	if err == nil {
		_ = s.cache.Invalidate(ctx)
	}
	return out, err
}

func (s *invalidatingBatchService) ResolveOne(ctx context.Context, dto restypes.MentionDTO) (domres.Decision, error) {
	d, err := s.Service.ResolveOne(ctx, dto)
	if err == nil {
		_ = s.cache.Invalidate(ctx)
	}
	return d, err
}

// Adapters for the readiness probe.

type postgresHealthAdapter struct {
	pool *pgxpool.Pool
}

func (a *postgresHealthAdapter) Name() string { return "postgres" }

func (a *postgresHealthAdapter) Check(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

type redisHealthAdapter struct {
	client *redis.Client
}

func (a *redisHealthAdapter) Name() string { return "redis" }

func (a *redisHealthAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}

type minioHealthAdapter struct {
	client *minio.Client
}

func (a *minioHealthAdapter) Name() string { return "minio" }

func (a *minioHealthAdapter) Check(ctx context.Context) error {
	return a.client.HealthCheck(ctx)
}
