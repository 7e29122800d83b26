package config

import "time"

// Default value constants.
const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "foresight"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "foresight:"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "foresight-resolver"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "provenance-packs"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 8

	DefaultAutoMergeThreshold     = 0.95
	DefaultReviewThreshold        = 0.80
	DefaultExactMatchWeight       = 0.4
	DefaultJaccardWeight          = 0.3
	DefaultCharRatioWeight        = 0.2
	DefaultAgreementWeight        = 0.1
	DefaultCandidateCap           = 200
	DefaultBlockPrefixLen         = 4
	DefaultDegradedPenalty        = 0.85
	DefaultTimelineWindow         = 365 * 24 * time.Hour
	DefaultMinPackSources         = 3
	DefaultDuplicateSweepDistance = 2
)

// defaultLegalSuffixes is the stock list of legal-form tokens stripped by
// the normalizer. Deployments extend it per jurisdiction via configuration.
var defaultLegalSuffixes = []string{
	"ltd", "limited", "inc", "incorporated", "corp", "corporation",
	"co", "company", "llc", "llp", "plc", "gmbh", "ag", "sa", "srl",
	"spa", "bv", "nv", "ab", "as", "oy", "kk", "pte", "pty", "sarl",
	"sdn", "bhd",
}

// ApplyDefaults fills every zero-value field in cfg with the platform
// default. Fields already set by the caller are left unchanged so explicit
// configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "foresight"
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Redis.DialTimeout == 0 {
		cfg.Redis.DialTimeout = 5 * time.Second
	}
	if cfg.Redis.ReadTimeout == 0 {
		cfg.Redis.ReadTimeout = 3 * time.Second
	}
	if cfg.Redis.WriteTimeout == 0 {
		cfg.Redis.WriteTimeout = 3 * time.Second
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = 15 * time.Minute
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = time.Second
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.CheckpointInterval == 0 {
		cfg.Worker.CheckpointInterval = 30 * time.Second
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Resolver ──────────────────────────────────────────────────────────────
	applyResolverDefaults(&cfg.Resolver)
}

func applyResolverDefaults(r *ResolverConfig) {
	if r.AutoMergeThreshold == 0 {
		r.AutoMergeThreshold = DefaultAutoMergeThreshold
	}
	if r.ReviewThreshold == 0 {
		r.ReviewThreshold = DefaultReviewThreshold
	}
	if r.ExactMatchWeight == 0 && r.JaccardWeight == 0 && r.CharRatioWeight == 0 && r.AgreementWeight == 0 {
		r.ExactMatchWeight = DefaultExactMatchWeight
		r.JaccardWeight = DefaultJaccardWeight
		r.CharRatioWeight = DefaultCharRatioWeight
		r.AgreementWeight = DefaultAgreementWeight
	}
	if r.CandidateCap == 0 {
		r.CandidateCap = DefaultCandidateCap
	}
	if r.BlockPrefixLen == 0 {
		r.BlockPrefixLen = DefaultBlockPrefixLen
	}
	if r.DegradedPenalty == 0 {
		r.DegradedPenalty = DefaultDegradedPenalty
	}
	if r.TimelineWindow == 0 {
		r.TimelineWindow = DefaultTimelineWindow
	}
	if r.MinPackSources == 0 {
		r.MinPackSources = DefaultMinPackSources
	}
	if r.DuplicateSweepDistance == 0 {
		r.DuplicateSweepDistance = DefaultDuplicateSweepDistance
	}
	if len(r.LegalSuffixes) == 0 {
		r.LegalSuffixes = append([]string(nil), defaultLegalSuffixes...)
	}
	if r.SourceTrust == nil {
		r.SourceTrust = map[string]float64{}
	}
	if r.Acronyms == nil {
		r.Acronyms = map[string]string{}
	}
	if r.Transliterations == nil {
		r.Transliterations = map[string]string{}
	}
}
