package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appres "github.com/DailyForkCast/osint-foresight-sub003/internal/application/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/metrics"
	domres "github.com/DailyForkCast/osint-foresight-sub003/internal/domain/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/prometheus"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/interfaces/http/handlers"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/interfaces/http/middleware"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stub services
// ─────────────────────────────────────────────────────────────────────────────

type stubExportService struct {
	entities   []restypes.EntityExport
	mismatches []restypes.MismatchReportDTO
	locations  []string
}

func (s *stubExportService) Registry(ctx context.Context) ([]restypes.EntityExport, error) {
	return s.entities, nil
}

func (s *stubExportService) Entity(ctx context.Context, id common.ID) (*restypes.EntityExport, error) {
	for i := range s.entities {
		if s.entities[i].EntityID == id {
			return &s.entities[i], nil
		}
	}
	return nil, errors.NotFound("entity not found: " + string(id))
}

func (s *stubExportService) Evidence(ctx context.Context, entityID common.ID) ([]restypes.EvidenceRecord, error) {
	return nil, nil
}

func (s *stubExportService) Timeline(ctx context.Context, entityID common.ID) ([]entity.TimelineEvent, error) {
	return nil, nil
}

func (s *stubExportService) Mismatches(ctx context.Context) ([]restypes.MismatchReportDTO, error) {
	return s.mismatches, nil
}

func (s *stubExportService) Pack(ctx context.Context, entityID common.ID) (*restypes.ProvenancePack, error) {
	if len(s.entities) == 0 || s.entities[0].EntityID != entityID {
		return nil, errors.NotFound("entity not found: " + string(entityID))
	}
	return &restypes.ProvenancePack{EntityID: entityID}, nil
}

func (s *stubExportService) Packs(ctx context.Context) ([]*restypes.ProvenancePack, error) {
	return nil, nil
}

func (s *stubExportService) ArchivePacks(ctx context.Context) ([]string, error) {
	return s.locations, nil
}

func (s *stubExportService) Metrics(ctx context.Context, sample []metrics.LabeledPair) (*restypes.MetricsReport, error) {
	return &restypes.MetricsReport{}, nil
}

type stubResolutionService struct {
	lastInput *appres.RunInput
}

func (s *stubResolutionService) Run(ctx context.Context, input *appres.RunInput) (*appres.RunResult, error) {
	s.lastInput = input
	return &appres.RunResult{BucketsProcessed: 1}, nil
}

func (s *stubResolutionService) ResolveOne(ctx context.Context, dto restypes.MentionDTO) (domres.Decision, error) {
	if dto.RawName == "" {
		return domres.Decision{}, errors.MalformedMention("raw name is required")
	}
	return domres.Decision{
		MentionID: common.ID("m-1"),
		State:     entity.StateMerged,
		EntityID:  common.ID("org:acme"),
		Score:     0.91,
	}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *stubExportService, *stubResolutionService) {
	t.Helper()

	exportSvc := &stubExportService{
		entities: []restypes.EntityExport{
			{EntityID: common.ID("org:acme"), CanonicalName: "ACME Corporation"},
			{EntityID: common.ID("org:globex"), CanonicalName: "Globex GmbH"},
		},
		locations: []string{"foresight-packs/packs/2026-08-01/org:acme.json"},
	}
	resolutionSvc := &stubResolutionService{}
	logger := logging.NewNopLogger()

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "foresight"}, logger)
	require.NoError(t, err)

	corsCfg := middleware.DefaultCORSConfig()
	router := NewRouter(RouterConfig{
		ExportHandler:     handlers.NewExportHandler(exportSvc, logger),
		ResolutionHandler: handlers.NewResolutionHandler(resolutionSvc, logger),
		HealthHandler:     handlers.NewHealthHandler("test"),
		CORS:              &corsCfg,
		Logger:            logger,
		MetricsCollector:  collector,
	})
	return router, exportSvc, resolutionSvc
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestRouterHealthEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# HELP")
}

func TestRouterListEntities(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
}

func TestRouterGetEntityNotFound(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entities/org:missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterArchivePacks(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/packs/archive", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "foresight-packs/packs/2026-08-01/org:acme.json")
}

func TestRouterResolutionRun(t *testing.T) {
	router, _, resolutionSvc := newTestRouter(t)

	payload, err := json.Marshal(map[string]any{
		"run_id": "run-42",
		"mentions": []restypes.MentionDTO{
			{SourceID: "gleif", RawName: "ACME Corp"},
		},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolution/runs", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resolutionSvc.lastInput)
	assert.Equal(t, "run-42", resolutionSvc.lastInput.RunID)
	assert.Len(t, resolutionSvc.lastInput.Mentions, 1)
}

func TestRouterResolveSingleMention(t *testing.T) {
	router, _, _ := newTestRouter(t)

	payload := []byte(`{"source_id":"gleif","raw_name":"ACME Corp"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolution/mentions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "org:acme")
}

func TestRouterRejectsMalformedMention(t *testing.T) {
	router, _, _ := newTestRouter(t)

	payload := []byte(`{"source_id":"gleif","raw_name":""}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolution/mentions", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouterSetsRequestID(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil))

	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRouterUnknownRouteReturns404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
