// Integration tests for the PostgreSQL entity registry. They require a live
// PostgreSQL instance, provided via INTEGRATION_TEST_DB_URL, and are gated
// behind the "integration" build tag.
//
//go:build integration

package repositories_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/postgres"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/database/postgres/repositories"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

// noopLogger satisfies repositories.Logger without producing output.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

const migrationsPath = "file://../../../../../migrations"

// newTestRepo connects to the integration database, applies the schema, and
// truncates all registry tables so each test starts clean.
func newTestRepo(t *testing.T) *repositories.RegistryRepository {
	t.Helper()

	dbURL := os.Getenv("INTEGRATION_TEST_DB_URL")
	if dbURL == "" {
		t.Skip("INTEGRATION_TEST_DB_URL not set; skipping integration test")
	}

	require.NoError(t, postgres.Migrate(dbURL, migrationsPath))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		TRUNCATE mismatch_reports, timeline_events, evidence,
		         entity_sources, entity_aliases, entities`)
	require.NoError(t, err)

	return repositories.NewRegistryRepository(pool, noopLogger{})
}

func seedEntity(t *testing.T, repo *repositories.RegistryRepository, id common.ID, name string) *entity.Entity {
	t.Helper()
	e, err := entity.NewEntity(id, name, mention.KindCompany)
	require.NoError(t, err)
	e.AddAlias(name)
	require.NoError(t, repo.SaveEntity(context.Background(), e))
	return e
}

// ─────────────────────────────────────────────────────────────────────────────
// Entities
// ─────────────────────────────────────────────────────────────────────────────

func TestRegistryRepository_SaveAndLoadEntity(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := seedEntity(t, repo, "ent-1", "Acme Corporation")
	e.AddAlias("Acme Corp")
	e.RecordSource("registry")
	e.SetCountry("US")
	require.NoError(t, repo.SaveEntity(ctx, e))

	got, err := repo.Entity(ctx, "ent-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation", got.CanonicalName)
	assert.Equal(t, mention.KindCompany, got.Type)
	assert.Equal(t, "US", got.Country)
	assert.Equal(t, []string{"Acme Corp", "Acme Corporation"}, got.Aliases())
	assert.Equal(t, []string{"registry"}, got.Sources())
	assert.Equal(t, e.Version, got.Version)
}

func TestRegistryRepository_EntityNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Entity(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistryRepository_UpsertKeepsAliasSet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e := seedEntity(t, repo, "ent-1", "Globex GmbH")
	e.SetCanonicalName("Globex Corporation")
	e.AddAlias("Globex Corporation")
	require.NoError(t, repo.SaveEntity(ctx, e))

	got, err := repo.Entity(ctx, "ent-1")
	require.NoError(t, err)
	assert.Equal(t, "Globex Corporation", got.CanonicalName)
	// The earlier alias survives the rename.
	assert.Contains(t, got.Aliases(), "Globex GmbH")
}

func TestRegistryRepository_EntitiesSortedByID(t *testing.T) {
	repo := newTestRepo(t)

	seedEntity(t, repo, "ent-b", "Beta")
	seedEntity(t, repo, "ent-a", "Alpha")

	all, err := repo.Entities(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, common.ID("ent-a"), all[0].ID)
	assert.Equal(t, common.ID("ent-b"), all[1].ID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Evidence
// ─────────────────────────────────────────────────────────────────────────────

func TestRegistryRepository_EvidenceLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedEntity(t, repo, "ent-1", "Acme")
	ev, err := entity.NewEvidence("ent-1", "m-1", "registry", 1.0)
	require.NoError(t, err)
	require.NoError(t, repo.AppendEvidence(ctx, ev))

	held, err := repo.ActiveAssignment(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, common.ID("ent-1"), held)

	n, err := repo.DeactivateEvidence(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	held, err = repo.ActiveAssignment(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, common.ID(""), held)

	rows, err := repo.EvidenceFor(ctx, "ent-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Active)
}

func TestRegistryRepository_ReassignIsAtomic(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedEntity(t, repo, "ent-1", "Acme")
	seedEntity(t, repo, "ent-2", "Acme Corporation")

	old, err := entity.NewEvidence("ent-1", "m-1", "registry", 0.96)
	require.NoError(t, err)
	require.NoError(t, repo.AppendEvidence(ctx, old))

	replacement, err := entity.NewEvidence("ent-2", "m-1", "registry", 0.97)
	require.NoError(t, err)
	require.NoError(t, repo.Reassign(ctx, "m-1", replacement))

	held, err := repo.ActiveAssignment(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, common.ID("ent-2"), held)

	// The old row survives, inactive: the log is append-only.
	rows, err := repo.EvidenceFor(ctx, "ent-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Active)
}

func TestRegistryRepository_ReassignRejectsMismatchedMention(t *testing.T) {
	repo := newTestRepo(t)

	replacement, err := entity.NewEvidence("ent-1", "m-other", "registry", 0.9)
	require.NoError(t, err)

	err = repo.Reassign(context.Background(), "m-1", replacement)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

// ─────────────────────────────────────────────────────────────────────────────
// Timeline and mismatch reports
// ─────────────────────────────────────────────────────────────────────────────

func TestRegistryRepository_TimelineRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedEntity(t, repo, "ent-1", "Acme")

	first := entity.NewTimelineEvent("ent-1", entity.TimelineEntityCreated, "created from mention m-1")
	observed := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	second := entity.NewTimelineEvent("ent-1", entity.TimelineMentionMerged, "merged mention m-2")
	second.MentionID = "m-2"
	second.ObservedDate = &observed

	require.NoError(t, repo.AppendTimeline(ctx, first))
	require.NoError(t, repo.AppendTimeline(ctx, second))

	events, err := repo.Timeline(ctx, "ent-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, entity.TimelineEntityCreated, events[0].Type)
	assert.Equal(t, common.ID("m-2"), events[1].MentionID)
	require.NotNil(t, events[1].ObservedDate)
	assert.True(t, events[1].ObservedDate.Equal(observed))
}

func TestRegistryRepository_MismatchRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	report := entity.NewMismatchReport(restypes.MismatchMergeConflict,
		"alias set disagrees below review threshold", "ent-1", "ent-2")
	report.MentionID = "m-9"
	report.Score = 0.97
	ev, err := entity.NewEvidence("ent-1", "m-9", "news", 0.97)
	require.NoError(t, err)
	report.Evidence = []entity.Evidence{ev}

	require.NoError(t, repo.FileMismatch(ctx, report))

	got, err := repo.Mismatches(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, restypes.MismatchMergeConflict, got[0].Kind)
	assert.Equal(t, []common.ID{"ent-1", "ent-2"}, got[0].Entities)
	assert.Equal(t, common.ID("m-9"), got[0].MentionID)
	require.Len(t, got[0].Evidence, 1)
	assert.Equal(t, common.ID("ent-1"), got[0].Evidence[0].EntityID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Integrity
// ─────────────────────────────────────────────────────────────────────────────

func TestRegistryRepository_VerifyIntegrityClean(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedEntity(t, repo, "ent-1", "Acme")
	ev, err := entity.NewEvidence("ent-1", "m-1", "registry", 1.0)
	require.NoError(t, err)
	require.NoError(t, repo.AppendEvidence(ctx, ev))

	require.NoError(t, repo.VerifyIntegrity(ctx))
}

func TestRegistryRepository_VerifyIntegrityDetectsDoubleAssignment(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	seedEntity(t, repo, "ent-1", "Acme")
	seedEntity(t, repo, "ent-2", "Acme Corporation")

	for _, entityID := range []common.ID{"ent-1", "ent-2"} {
		ev, err := entity.NewEvidence(entityID, "m-1", "registry", 1.0)
		require.NoError(t, err)
		require.NoError(t, repo.AppendEvidence(ctx, ev))
	}

	err := repo.VerifyIntegrity(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegistryCorrupted))
}

func TestRegistryRepository_VerifyIntegrityDetectsOrphanEvidence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	ev, err := entity.NewEvidence("ghost", "m-1", "registry", 1.0)
	require.NoError(t, err)
	require.NoError(t, repo.AppendEvidence(ctx, ev))

	err = repo.VerifyIntegrity(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeRegistryCorrupted))
}
