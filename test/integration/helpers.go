// Shared fixtures for the integration tests: an assembled resolution stack
// over an in-memory registry with a miniredis-backed checkpoint store.
package integration

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	appexport "github.com/DailyForkCast/osint-foresight-sub003/internal/application/export"
	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/bootstrap"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/config"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/redis"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// stack bundles the services under test.
type stack struct {
	Store       *entity.MemoryStore
	Core        *bootstrap.Core
	Batch       appres.Service
	Export      appexport.Service
	Checkpoints *redis.CheckpointStore
	Resolver    config.ResolverConfig
}

// newStack assembles the full resolution pipeline over an in-memory store.
// mutate tweaks the resolver configuration before assembly.
func newStack(t *testing.T, mutate func(*config.ResolverConfig)) *stack {
	t.Helper()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	rc := cfg.Resolver
	if mutate != nil {
		mutate(&rc)
	}

	logger := logging.NewNopLogger()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := redis.NewClient(config.RedisConfig{Addr: mr.Addr(), KeyPrefix: "foresight:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	checkpoints := redis.NewCheckpointStore(client, 0, logger)

	store := entity.NewMemoryStore()
	core, err := bootstrap.BuildCore(context.Background(), store, rc, logger)
	require.NoError(t, err)

	batch, err := appres.NewService(core.Engine, core.Index, core.Normalizer, store,
		checkpoints, nil, 2, logger)
	require.NoError(t, err)

	export, err := appexport.NewService(store, core.Packs, core.Calculator, nil, logger)
	require.NoError(t, err)

	return &stack{
		Store:       store,
		Core:        core,
		Batch:       batch,
		Export:      export,
		Checkpoints: checkpoints,
		Resolver:    rc,
	}
}

func mention(source, name, country string) restypes.MentionDTO {
	return restypes.MentionDTO{SourceID: source, RawName: name, CountryHint: country}
}
