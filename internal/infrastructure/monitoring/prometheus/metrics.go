package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds the engine's metric handles, grouped by pipeline stage.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Ingestion
	MentionsIngestedTotal CounterVec
	MentionsRejectedTotal CounterVec
	AliasesGenerated      HistogramVec

	// Resolution
	DecisionsTotal          CounterVec
	ResolutionDuration      HistogramVec
	SimilarityScores        HistogramVec
	CandidatesPerMention    HistogramVec
	NearMissesTotal         CounterVec
	MismatchesTotal         CounterVec
	EvidenceReassignedTotal CounterVec

	// Registry
	EntitiesTotal        GaugeVec
	RegistryAliasCount   GaugeVec
	IntegrityChecksTotal CounterVec

	// Batch runs
	BatchRunsTotal     CounterVec
	BatchRunDuration   HistogramVec
	BatchMentionsTotal CounterVec
	CheckpointsTotal   CounterVec

	// Export
	ExportsTotal         CounterVec
	ExportDuration       HistogramVec
	PacksGeneratedTotal  CounterVec
	PacksArchivedTotal   CounterVec

	// Infrastructure
	DBQueryDuration        HistogramVec
	DBConnectionPoolActive GaugeVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	QueuePublishesTotal    CounterVec
	QueueProcessDuration   HistogramVec

	// System health
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default buckets
var (
	DefaultHTTPDurationBuckets  = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultBatchDurationBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}
	DefaultDBDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultScoreBuckets         = []float64{.1, .2, .3, .4, .5, .6, .7, .75, .8, .85, .9, .95, 1}
	DefaultCountBuckets         = []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500}
)

// NewAppMetrics registers every metric on the collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Ingestion
	m.MentionsIngestedTotal = collector.RegisterCounter("mentions_ingested_total", "Mentions accepted into the pipeline", "source")
	m.MentionsRejectedTotal = collector.RegisterCounter("mentions_rejected_total", "Mentions rejected at ingestion", "source", "code")
	m.AliasesGenerated = collector.RegisterHistogram("aliases_generated", "Alias variants generated per mention", DefaultCountBuckets, "kind")

	// Resolution
	m.DecisionsTotal = collector.RegisterCounter("decisions_total", "Resolution decisions by final state", "state")
	m.ResolutionDuration = collector.RegisterHistogram("resolution_duration_seconds", "Per-mention resolution duration", DefaultDBDurationBuckets, "state")
	m.SimilarityScores = collector.RegisterHistogram("similarity_scores", "Best candidate similarity per mention", DefaultScoreBuckets)
	m.CandidatesPerMention = collector.RegisterHistogram("candidates_per_mention", "Blocking candidates considered per mention", DefaultCountBuckets)
	m.NearMissesTotal = collector.RegisterCounter("near_misses_total", "Scores in the review band that did not merge")
	m.MismatchesTotal = collector.RegisterCounter("mismatches_total", "Mismatch reports filed", "kind")
	m.EvidenceReassignedTotal = collector.RegisterCounter("evidence_reassigned_total", "Evidence rows moved between entities")

	// Registry
	m.EntitiesTotal = collector.RegisterGauge("entities_total", "Entities in the registry", "kind")
	m.RegistryAliasCount = collector.RegisterGauge("registry_alias_count", "Alias rows in the registry")
	m.IntegrityChecksTotal = collector.RegisterCounter("integrity_checks_total", "Registry integrity checks", "result")

	// Batch runs
	m.BatchRunsTotal = collector.RegisterCounter("batch_runs_total", "Batch resolution runs", "status")
	m.BatchRunDuration = collector.RegisterHistogram("batch_run_duration_seconds", "Batch run duration", DefaultBatchDurationBuckets, "status")
	m.BatchMentionsTotal = collector.RegisterCounter("batch_mentions_total", "Mentions processed by batch runs", "outcome")
	m.CheckpointsTotal = collector.RegisterCounter("checkpoints_total", "Checkpoint operations", "operation")

	// Export
	m.ExportsTotal = collector.RegisterCounter("exports_total", "Registry exports", "format", "status")
	m.ExportDuration = collector.RegisterHistogram("export_duration_seconds", "Export duration", DefaultBatchDurationBuckets, "format")
	m.PacksGeneratedTotal = collector.RegisterCounter("packs_generated_total", "Provenance packs generated")
	m.PacksArchivedTotal = collector.RegisterCounter("packs_archived_total", "Provenance packs archived", "status")

	// Infrastructure
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.QueuePublishesTotal = collector.RegisterCounter("queue_publishes_total", "Messages published", "topic", "status")
	m.QueueProcessDuration = collector.RegisterHistogram("queue_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	// System health
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordDecision(metrics *AppMetrics, state string, score float64, candidates int, duration time.Duration) {
	metrics.DecisionsTotal.WithLabelValues(state).Inc()
	metrics.ResolutionDuration.WithLabelValues(state).Observe(duration.Seconds())
	metrics.SimilarityScores.WithLabelValues().Observe(score)
	metrics.CandidatesPerMention.WithLabelValues().Observe(float64(candidates))
}

func RecordRejection(metrics *AppMetrics, source, code string) {
	metrics.MentionsRejectedTotal.WithLabelValues(source, code).Inc()
}

func RecordMismatch(metrics *AppMetrics, kind string) {
	metrics.MismatchesTotal.WithLabelValues(kind).Inc()
}

func RecordBatchRun(metrics *AppMetrics, status string, duration time.Duration, resolved, rejected int) {
	metrics.BatchRunsTotal.WithLabelValues(status).Inc()
	metrics.BatchRunDuration.WithLabelValues(status).Observe(duration.Seconds())
	metrics.BatchMentionsTotal.WithLabelValues("resolved").Add(float64(resolved))
	metrics.BatchMentionsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

func RecordDBQuery(metrics *AppMetrics, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("postgres", "query_error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
