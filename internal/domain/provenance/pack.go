package provenance

import (
	"context"
	"fmt"
	"time"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// PackBuilder assembles provenance packs from the registry. An entity
// qualifies only when its active evidence spans at least minSources
// distinct sources; thinner entities are real but unpublishable, and
// requesting their pack is an explicit error rather than a thin pack.
type PackBuilder struct {
	store      entity.EntityStore
	minSources int
}

// NewPackBuilder wires a builder; minSources below 1 is rejected.
func NewPackBuilder(store entity.EntityStore, minSources int) (*PackBuilder, error) {
	if store == nil {
		return nil, errors.InvalidParam("pack builder requires a store")
	}
	if minSources < 1 {
		return nil, errors.InvalidParam("minimum source count must be at least 1")
	}
	return &PackBuilder{store: store, minSources: minSources}, nil
}

// Build assembles the pack for one entity. The evidence chain carries
// every row, active and inactive, oldest first, so the pack doubles as the
// full decision history; the source gate counts active rows only.
func (b *PackBuilder) Build(ctx context.Context, entityID common.ID) (*restypes.ProvenancePack, error) {
	e, err := b.store.Entity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	rows, err := b.store.EvidenceFor(ctx, entityID)
	if err != nil {
		return nil, err
	}

	sources := map[string]bool{}
	for _, r := range rows {
		if r.Active && r.SourceID != "" {
			sources[string(r.SourceID)] = true
		}
	}
	if len(sources) < b.minSources {
		return nil, errors.InsufficientEvidence(
			fmt.Sprintf("entity %s has evidence from %d sources, %d required", entityID, len(sources), b.minSources))
	}

	pack := &restypes.ProvenancePack{
		EntityID:      e.ID,
		CanonicalName: e.CanonicalName,
		Sources:       e.Sources(),
		SourceCount:   len(sources),
		Aliases:       e.Aliases(),
		GeneratedAt:   time.Now().UTC(),
	}
	for _, r := range rows {
		pack.EvidenceChain = append(pack.EvidenceChain, r.DTO())
	}
	return pack, nil
}

// BuildAll assembles packs for every qualifying entity, silently skipping
// the ones under the source gate and the dissolved ones. The registry
// order (sorted by ID) makes the output deterministic.
func (b *PackBuilder) BuildAll(ctx context.Context) ([]*restypes.ProvenancePack, error) {
	entities, err := b.store.Entities(ctx)
	if err != nil {
		return nil, err
	}
	var packs []*restypes.ProvenancePack
	for _, e := range entities {
		pack, err := b.Build(ctx, e.ID)
		if err != nil {
			if errors.IsCode(err, errors.ErrCodeInsufficientEvidence) {
				continue
			}
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, nil
}
