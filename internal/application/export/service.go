// Package export exposes the read side of a finished resolution run: the
// registry export, evidence chains, mismatch reports, provenance packs,
// and the metrics report, plus archival of packs to object storage.
package export

import (
	"context"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/metrics"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/provenance"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// PackArchive persists provenance packs to durable storage and returns
// the stored object's location.
type PackArchive interface {
	StorePack(ctx context.Context, pack *restypes.ProvenancePack) (string, error)
}

// Service is the export surface over a finished registry.
type Service interface {
	Registry(ctx context.Context) ([]restypes.EntityExport, error)
	Entity(ctx context.Context, id common.ID) (*restypes.EntityExport, error)
	Evidence(ctx context.Context, entityID common.ID) ([]restypes.EvidenceRecord, error)
	Timeline(ctx context.Context, entityID common.ID) ([]entity.TimelineEvent, error)
	Mismatches(ctx context.Context) ([]restypes.MismatchReportDTO, error)
	Pack(ctx context.Context, entityID common.ID) (*restypes.ProvenancePack, error)
	Packs(ctx context.Context) ([]*restypes.ProvenancePack, error)
	ArchivePacks(ctx context.Context) ([]string, error)
	Metrics(ctx context.Context, sample []metrics.LabeledPair) (*restypes.MetricsReport, error)
}

type service struct {
	store   entity.EntityStore
	packs   *provenance.PackBuilder
	calc    *metrics.Calculator
	archive PackArchive
	logger  logging.Logger
}

// NewService wires the export service. archive may be nil, in which case
// ArchivePacks fails with an invalid-param error.
func NewService(
	store entity.EntityStore,
	packs *provenance.PackBuilder,
	calc *metrics.Calculator,
	archive PackArchive,
	logger logging.Logger,
) (Service, error) {
	if store == nil || packs == nil || calc == nil {
		return nil, errors.InvalidParam("export service requires store, pack builder, and calculator")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &service{store: store, packs: packs, calc: calc, archive: archive, logger: logger.Named("export")}, nil
}

func (s *service) Registry(ctx context.Context) ([]restypes.EntityExport, error) {
	entities, err := s.store.Entities(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]restypes.EntityExport, 0, len(entities))
	for _, e := range entities {
		if e.Confidence == 0 {
			continue // dissolved by an entity merge; history only
		}
		out = append(out, exportEntity(e))
	}
	return out, nil
}

func (s *service) Entity(ctx context.Context, id common.ID) (*restypes.EntityExport, error) {
	e, err := s.store.Entity(ctx, id)
	if err != nil {
		return nil, err
	}
	exp := exportEntity(e)
	return &exp, nil
}

func (s *service) Evidence(ctx context.Context, entityID common.ID) ([]restypes.EvidenceRecord, error) {
	if _, err := s.store.Entity(ctx, entityID); err != nil {
		return nil, err
	}
	rows, err := s.store.EvidenceFor(ctx, entityID)
	if err != nil {
		return nil, err
	}
	out := make([]restypes.EvidenceRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.DTO())
	}
	return out, nil
}

func (s *service) Timeline(ctx context.Context, entityID common.ID) ([]entity.TimelineEvent, error) {
	if _, err := s.store.Entity(ctx, entityID); err != nil {
		return nil, err
	}
	return s.store.Timeline(ctx, entityID)
}

func (s *service) Mismatches(ctx context.Context) ([]restypes.MismatchReportDTO, error) {
	reports, err := s.store.Mismatches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]restypes.MismatchReportDTO, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.DTO())
	}
	return out, nil
}

func (s *service) Pack(ctx context.Context, entityID common.ID) (*restypes.ProvenancePack, error) {
	return s.packs.Build(ctx, entityID)
}

func (s *service) Packs(ctx context.Context) ([]*restypes.ProvenancePack, error) {
	return s.packs.BuildAll(ctx)
}

func (s *service) ArchivePacks(ctx context.Context) ([]string, error) {
	if s.archive == nil {
		return nil, errors.InvalidParam("no pack archive configured")
	}
	packs, err := s.packs.BuildAll(ctx)
	if err != nil {
		return nil, err
	}
	locations := make([]string, 0, len(packs))
	for _, pack := range packs {
		loc, err := s.archive.StorePack(ctx, pack)
		if err != nil {
			return locations, errors.Wrap(err, errors.CodeStorageError, "failed to archive provenance pack")
		}
		locations = append(locations, loc)
	}
	s.logger.Info("archived provenance packs", logging.Int("count", len(locations)))
	return locations, nil
}

func (s *service) Metrics(ctx context.Context, sample []metrics.LabeledPair) (*restypes.MetricsReport, error) {
	return s.calc.Report(ctx, sample)
}

func exportEntity(e *entity.Entity) restypes.EntityExport {
	return restypes.EntityExport{
		EntityID:      e.ID,
		CanonicalName: e.CanonicalName,
		Aliases:       e.Aliases(),
		Type:          string(e.Type),
		Country:       e.Country,
		Sources:       e.Sources(),
		Confidence:    e.Confidence,
		AliasCount:    e.AliasCount(),
	}
}
