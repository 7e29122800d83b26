package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/config"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
)

func defaultResolverConfig() config.ResolverConfig {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg.Resolver
}

func TestBuildCore(t *testing.T) {
	core, err := BuildCore(context.Background(), entity.NewMemoryStore(), defaultResolverConfig(), logging.NewNopLogger())
	require.NoError(t, err)

	assert.NotNil(t, core.Engine)
	assert.NotNil(t, core.Index)
	assert.NotNil(t, core.Normalizer)
	assert.NotNil(t, core.Tracker)
	assert.NotNil(t, core.Packs)
	assert.NotNil(t, core.Calculator)
}

func TestBuildCoreRejectsBadWeights(t *testing.T) {
	rc := defaultResolverConfig()
	rc.ExactMatchWeight = 0.9 // weights no longer sum to 1

	_, err := BuildCore(context.Background(), entity.NewMemoryStore(), rc, logging.NewNopLogger())
	assert.Error(t, err)
}

func TestIDNamespaceIsStable(t *testing.T) {
	a := idNamespace("prod-2026")
	b := idNamespace("prod-2026")
	c := idNamespace("staging")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewLoggerHonorsConfig(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
