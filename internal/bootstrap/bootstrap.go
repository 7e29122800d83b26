// Package bootstrap assembles the resolution core from configuration. The
// API server, the worker, and the CLI all build the engine through it so the
// wiring stays identical across entry points.
package bootstrap

import (
	"context"

	"github.com/google/uuid"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/config"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/metrics"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/provenance"
	domres "github.com/DailyForkCast/osint-foresight-sub003/internal/domain/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
)

// NewLogger builds the process logger from the log section of the config.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	return logging.NewLogger(logging.Config{
		Level:            cfg.Level,
		Format:           cfg.Format,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: cfg.ErrorOutputPaths,
	})
}

// Core bundles the assembled domain components.
type Core struct {
	Store      entity.EntityStore
	Normalizer *mention.Normalizer
	Variants   *mention.VariantGenerator
	Index      *domres.Index
	Engine     *domres.Engine
	Tracker    *provenance.Tracker
	Packs      *provenance.PackBuilder
	Calculator *metrics.Calculator
}

// BuildCore assembles the resolution engine and its satellites over the
// given store, then re-registers every persisted entity so the in-memory
// blocking index reflects the registry.
func BuildCore(ctx context.Context, store entity.EntityStore, rc config.ResolverConfig, logger logging.Logger) (*Core, error) {
	normalizer := mention.NewNormalizer(rc.LegalSuffixes)
	variants := mention.NewVariantGenerator(normalizer, rc.Acronyms, rc.Transliterations)

	scorer, err := domres.NewScorer(domres.Weights{
		ExactMatch: rc.ExactMatchWeight,
		Jaccard:    rc.JaccardWeight,
		CharRatio:  rc.CharRatioWeight,
		Agreement:  rc.AgreementWeight,
	}, rc.DegradedPenalty)
	if err != nil {
		return nil, err
	}

	index := domres.NewIndex(rc.BlockPrefixLen, rc.CandidateCap)

	tracker, err := provenance.NewTracker(store, rc.TimelineWindow, logger)
	if err != nil {
		return nil, err
	}

	engine, err := domres.NewEngine(store, index, normalizer, variants, scorer, domres.Params{
		AutoMergeThreshold: rc.AutoMergeThreshold,
		ReviewThreshold:    rc.ReviewThreshold,
		SourceTrust:        rc.SourceTrust,
		IDNamespace:        idNamespace(rc.DeterministicSeed),
	}, tracker, logger)
	if err != nil {
		return nil, err
	}

	entities, err := store.Entities(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if err := engine.Register(ctx, e); err != nil {
			return nil, err
		}
	}
	if len(entities) > 0 {
		logger.Info("registry warmed", logging.Int("entities", len(entities)))
	}

	packs, err := provenance.NewPackBuilder(store, rc.MinPackSources)
	if err != nil {
		return nil, err
	}
	calc, err := metrics.NewCalculator(store, normalizer, rc.DuplicateSweepDistance)
	if err != nil {
		return nil, err
	}

	return &Core{
		Store:      store,
		Normalizer: normalizer,
		Variants:   variants,
		Index:      index,
		Engine:     engine,
		Tracker:    tracker,
		Packs:      packs,
		Calculator: calc,
	}, nil
}

// idNamespace derives the entity-ID namespace from the configured seed. An
// empty seed still yields deterministic IDs, just in the nil namespace.
func idNamespace(seed string) uuid.UUID {
	if seed == "" {
		return uuid.Nil
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))
}
