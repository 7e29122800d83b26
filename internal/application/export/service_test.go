package export

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/metrics"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/provenance"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

type memArchive struct {
	stored []string
}

func (a *memArchive) StorePack(_ context.Context, pack *restypes.ProvenancePack) (string, error) {
	loc := fmt.Sprintf("packs/%s.json", pack.EntityID)
	a.stored = append(a.stored, loc)
	return loc, nil
}

func newTestService(t *testing.T, store entity.EntityStore, archive PackArchive) Service {
	t.Helper()
	normalizer := mention.NewNormalizer([]string{"co", "ltd", "corp", "gmbh"})
	packs, err := provenance.NewPackBuilder(store, 2)
	require.NoError(t, err)
	calc, err := metrics.NewCalculator(store, normalizer, 2)
	require.NoError(t, err)
	svc, err := NewService(store, packs, calc, archive, logging.NewNopLogger())
	require.NoError(t, err)
	return svc
}

func seed(t *testing.T, store entity.EntityStore, name string, sources ...string) *entity.Entity {
	t.Helper()
	ctx := context.Background()
	e, err := entity.NewEntity(common.NewID(), name, mention.KindCompany)
	require.NoError(t, err)
	e.AddAlias(name)
	var rows []entity.Evidence
	for _, src := range sources {
		ev, err := entity.NewEvidence(e.ID, common.NewID(), common.SourceID(src), 0.97)
		require.NoError(t, err)
		require.NoError(t, store.AppendEvidence(ctx, ev))
		e.RecordSource(common.SourceID(src))
		rows = append(rows, ev)
	}
	e.RecomputeConfidence(rows)
	require.NoError(t, store.SaveEntity(ctx, e))
	return e
}

func TestRegistryExportSkipsDissolved(t *testing.T) {
	ctx := context.Background()
	store := entity.NewMemoryStore()
	live := seed(t, store, "Acme Corp", "src-a", "src-b")
	dissolved := seed(t, store, "Acme Corporation")
	dissolved.RecomputeConfidence(nil)
	require.NoError(t, store.SaveEntity(ctx, dissolved))

	svc := newTestService(t, store, nil)
	exports, err := svc.Registry(ctx)
	require.NoError(t, err)
	require.Len(t, exports, 1)
	assert.Equal(t, live.ID, exports[0].EntityID)
	assert.Equal(t, []string{"src-a", "src-b"}, exports[0].Sources)
	assert.Equal(t, 1, exports[0].AliasCount)

	// Direct lookup still reaches the dissolved record.
	exp, err := svc.Entity(ctx, dissolved.ID)
	require.NoError(t, err)
	assert.Zero(t, exp.Confidence)
}

func TestEvidenceAndTimelineRequireEntity(t *testing.T) {
	ctx := context.Background()
	store := entity.NewMemoryStore()
	svc := newTestService(t, store, nil)

	_, err := svc.Evidence(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
	_, err = svc.Timeline(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestArchivePacks(t *testing.T) {
	ctx := context.Background()
	store := entity.NewMemoryStore()
	seed(t, store, "Acme Corp", "src-a", "src-b")
	seed(t, store, "Globex GmbH", "src-a") // below the source gate

	archive := &memArchive{}
	svc := newTestService(t, store, archive)

	locations, err := svc.ArchivePacks(ctx)
	require.NoError(t, err)
	assert.Len(t, locations, 1, "only qualifying entities are archived")
	assert.Equal(t, archive.stored, locations)
}

func TestArchivePacksWithoutArchive(t *testing.T) {
	store := entity.NewMemoryStore()
	svc := newTestService(t, store, nil)
	_, err := svc.ArchivePacks(context.Background())
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestMetricsPassthrough(t *testing.T) {
	ctx := context.Background()
	store := entity.NewMemoryStore()
	seed(t, store, "Acme Corp", "src-a", "src-b")

	svc := newTestService(t, store, nil)
	report, err := svc.Metrics(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.EntityCount)
	assert.Nil(t, report.Precision)
}
