package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c := newTestCollector(t)
	return NewAppMetrics(c), c
}

func TestNewAppMetricsRegistersAll(t *testing.T) {
	m, _ := newTestAppMetrics(t)

	require.NotNil(t, m.DecisionsTotal)
	require.NotNil(t, m.MismatchesTotal)
	require.NotNil(t, m.BatchRunsTotal)
	require.NotNil(t, m.EntitiesTotal)
	require.NotNil(t, m.PacksArchivedTotal)
	require.NotNil(t, m.HealthCheckStatus)
}

func TestRecordDecision(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDecision(m, "merged", 0.97, 4, 12*time.Millisecond)
	RecordDecision(m, "new_entity", 0.42, 0, 3*time.Millisecond)

	body := scrape(t, c)
	assert.Contains(t, body, `foresight_decisions_total{state="merged"} 1`)
	assert.Contains(t, body, `foresight_decisions_total{state="new_entity"} 1`)
	assert.Contains(t, body, "foresight_similarity_scores_count 2")
	assert.Contains(t, body, "foresight_candidates_per_mention_count 2")
}

func TestRecordRejection(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordRejection(m, "src-a", "ING_001")
	RecordRejection(m, "src-a", "ING_001")

	body := scrape(t, c)
	assert.Contains(t, body, `foresight_mentions_rejected_total{code="ING_001",source="src-a"} 2`)
}

func TestRecordMismatch(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordMismatch(m, "merge_conflict")
	RecordMismatch(m, "timeline_inconsistency")
	RecordMismatch(m, "merge_conflict")

	body := scrape(t, c)
	assert.Contains(t, body, `foresight_mismatches_total{kind="merge_conflict"} 2`)
	assert.Contains(t, body, `foresight_mismatches_total{kind="timeline_inconsistency"} 1`)
}

func TestRecordBatchRun(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordBatchRun(m, "completed", 42*time.Second, 950, 50)

	body := scrape(t, c)
	assert.Contains(t, body, `foresight_batch_runs_total{status="completed"} 1`)
	assert.Contains(t, body, `foresight_batch_mentions_total{outcome="resolved"} 950`)
	assert.Contains(t, body, `foresight_batch_mentions_total{outcome="rejected"} 50`)
}

func TestRecordDBQueryCountsErrors(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "save_entity", time.Millisecond, nil)
	RecordDBQuery(m, "save_entity", time.Millisecond, errors.New("connection reset"))

	body := scrape(t, c)
	assert.Contains(t, body, `foresight_errors_total{component="postgres",error_type="query_error"} 1`)
}

func TestRecordCacheAccess(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordCacheAccess(m, "normalized", true)
	RecordCacheAccess(m, "normalized", true)
	RecordCacheAccess(m, "normalized", false)

	body := scrape(t, c)
	assert.Contains(t, body, `foresight_cache_hits_total{cache="normalized"} 2`)
	assert.Contains(t, body, `foresight_cache_misses_total{cache="normalized"} 1`)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "GET", "/api/v1/entities", 200, 5*time.Millisecond)

	body := scrape(t, c)
	assert.Contains(t, body, `foresight_http_requests_total{method="GET",path="/api/v1/entities",status_code="200"} 1`)
}
