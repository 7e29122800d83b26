// Package config defines all configuration structures for the foresight
// resolution engine. No I/O or parsing logic lives here, only plain data
// types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables for the read API.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the registry.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters for checkpoints and caching.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka consumer/producer parameters for the mention
// stream and the mismatch/rejection topics.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	GroupID         string        `mapstructure:"group_id"`
	AutoOffsetReset string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	ProducerRetries int           `mapstructure:"producer_retries"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
}

// MinIOConfig holds object-storage parameters for provenance-pack archival.
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// WorkerConfig holds batch-execution parameters.
type WorkerConfig struct {
	Concurrency        int           `mapstructure:"concurrency"`
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// ResolverConfig holds every tunable of the resolution core. Thresholds are
// configuration, not constants, because some source pairs are noisier than
// others and need retuning without a rebuild.
type ResolverConfig struct {
	// AutoMergeThreshold is the score at or above which a mention is merged
	// without review. Default 0.95.
	AutoMergeThreshold float64 `mapstructure:"auto_merge_threshold"`

	// ReviewThreshold is the lower bound of the logged-candidate band.
	// Scores in [ReviewThreshold, AutoMergeThreshold) are logged but not
	// merged. Default 0.80. Scores below it never merge, and a candidate
	// alias scoring below it vetoes a complete-linkage merge.
	ReviewThreshold float64 `mapstructure:"review_threshold"`

	// Signal weights for the similarity scorer. Must sum to 1.0.
	ExactMatchWeight float64 `mapstructure:"exact_match_weight"` // default 0.4
	JaccardWeight    float64 `mapstructure:"jaccard_weight"`     // default 0.3
	CharRatioWeight  float64 `mapstructure:"char_ratio_weight"`  // default 0.2
	AgreementWeight  float64 `mapstructure:"agreement_weight"`   // default 0.1

	// CandidateCap bounds each candidate set so pairwise comparison stays
	// bounded regardless of corpus size. Default 200.
	CandidateCap int `mapstructure:"candidate_cap"`

	// BlockPrefixLen is the normalized-key prefix length of the primary
	// blocking key. Default 4.
	BlockPrefixLen int `mapstructure:"block_prefix_len"`

	// DegradedPenalty scales the similarity contribution of mentions whose
	// normalization fell back to the minimal path. Default 0.85.
	DegradedPenalty float64 `mapstructure:"degraded_penalty"`

	// TimelineWindow is the maximum disagreement between two sources' dates
	// for the same underlying fact before a mismatch report is emitted.
	// Default 365 days.
	TimelineWindow time.Duration `mapstructure:"timeline_window"`

	// MinPackSources is the provenance-pack gate. Default 3.
	MinPackSources int `mapstructure:"min_pack_sources"`

	// DuplicateSweepDistance is the maximum Levenshtein distance between
	// two canonical names for the under-merge sweep to flag them as
	// duplicate candidates. Default 2.
	DuplicateSweepDistance int `mapstructure:"duplicate_sweep_distance"`

	// SourceTrust maps source IDs to trust weights used by the
	// canonical-name tie-break. Unlisted sources weigh 1.0.
	SourceTrust map[string]float64 `mapstructure:"source_trust"`

	// LegalSuffixes are the legal-form tokens stripped by the normalizer,
	// matched as whole tokens only.
	LegalSuffixes []string `mapstructure:"legal_suffixes"`

	// Acronyms maps acronym → expansion for the variant generator's
	// alias-bridge. Entries are curated, never inferred.
	Acronyms map[string]string `mapstructure:"acronyms"`

	// Transliterations maps script variants ("华为" → "huawei") for the
	// variant generator. Table-driven; unknown inputs produce no variants.
	Transliterations map[string]string `mapstructure:"transliterations"`

	// DeterministicSeed, when non-empty, namespaces entity-ID allocation so
	// re-running an unchanged batch reproduces identical assignments.
	DeterministicSeed string `mapstructure:"deterministic_seed"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure. Every infrastructure component
// and application service reads its settings from the relevant sub-struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
	Resolver ResolverConfig `mapstructure:"resolver"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be >= 1, got %d", c.Worker.Concurrency)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return c.Resolver.Validate()
}

// Validate checks the resolver tunables: band ordering, weight normalisation
// and positive caps.
func (r *ResolverConfig) Validate() error {
	if r.AutoMergeThreshold <= 0 || r.AutoMergeThreshold > 1 {
		return fmt.Errorf("config: resolver.auto_merge_threshold %v is out of range (0, 1]", r.AutoMergeThreshold)
	}
	if r.ReviewThreshold <= 0 || r.ReviewThreshold >= r.AutoMergeThreshold {
		return fmt.Errorf("config: resolver.review_threshold %v must be in (0, auto_merge_threshold)", r.ReviewThreshold)
	}
	sum := r.ExactMatchWeight + r.JaccardWeight + r.CharRatioWeight + r.AgreementWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: resolver signal weights must sum to 1.0, got %v", sum)
	}
	if r.CandidateCap < 1 {
		return fmt.Errorf("config: resolver.candidate_cap must be >= 1, got %d", r.CandidateCap)
	}
	if r.BlockPrefixLen < 1 {
		return fmt.Errorf("config: resolver.block_prefix_len must be >= 1, got %d", r.BlockPrefixLen)
	}
	if r.DegradedPenalty <= 0 || r.DegradedPenalty > 1 {
		return fmt.Errorf("config: resolver.degraded_penalty %v is out of range (0, 1]", r.DegradedPenalty)
	}
	if r.TimelineWindow <= 0 {
		return fmt.Errorf("config: resolver.timeline_window must be positive, got %v", r.TimelineWindow)
	}
	if r.MinPackSources < 1 {
		return fmt.Errorf("config: resolver.min_pack_sources must be >= 1, got %d", r.MinPackSources)
	}
	return nil
}
