package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestApplyDefaults_FillsEveryRequiredField(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, []string{DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultWorkerConcurrency, cfg.Worker.Concurrency)
	assert.Equal(t, DefaultAutoMergeThreshold, cfg.Resolver.AutoMergeThreshold)
	assert.Equal(t, DefaultReviewThreshold, cfg.Resolver.ReviewThreshold)
	assert.Equal(t, DefaultCandidateCap, cfg.Resolver.CandidateCap)
	assert.NotEmpty(t, cfg.Resolver.LegalSuffixes)

	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaults_ExplicitValuesWin(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9999
	cfg.Resolver.CandidateCap = 50
	ApplyDefaults(cfg)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Resolver.CandidateCap)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad server port", func(c *Config) { c.Server.Port = 0 }},
		{"bad server mode", func(c *Config) { c.Server.Mode = "verbose" }},
		{"missing db host", func(c *Config) { c.Database.Host = "" }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"zero concurrency", func(c *Config) { c.Worker.Concurrency = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"review above auto-merge", func(c *Config) { c.Resolver.ReviewThreshold = 0.97 }},
		{"threshold above one", func(c *Config) { c.Resolver.AutoMergeThreshold = 1.5 }},
		{"weights do not sum", func(c *Config) { c.Resolver.JaccardWeight = 0.9 }},
		{"zero timeline window", func(c *Config) { c.Resolver.TimelineWindow = -time.Hour }},
		{"zero pack sources", func(c *Config) { c.Resolver.MinPackSources = -3 }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_ReadsYAMLAndAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8088
resolver:
  auto_merge_threshold: 0.9
  review_threshold: 0.7
  source_trust:
    sanctions_eu: 3.0
  acronyms:
    mit: massachusetts institute of technology
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 0.9, cfg.Resolver.AutoMergeThreshold)
	assert.Equal(t, 0.7, cfg.Resolver.ReviewThreshold)
	assert.Equal(t, 3.0, cfg.Resolver.SourceTrust["sanctions_eu"])
	assert.Equal(t, "massachusetts institute of technology", cfg.Resolver.Acronyms["mit"])
	// Unset sections still get defaults.
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultKafkaGroupID, cfg.Kafka.GroupID)
}
