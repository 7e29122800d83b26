// Package resolution provides the application-level batch service driving
// the resolver: ingestion with a rejection log, parallel normalization,
// bucket-ordered single-writer merging, and checkpointed resume.
package resolution

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	domentity "github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	domres "github.com/DailyForkCast/osint-foresight-sub003/internal/domain/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// CheckpointStore persists the resumable cursor of a batch run: the last
// fully-processed bucket key.
type CheckpointStore interface {
	Load(ctx context.Context, runID string) (string, error)
	Save(ctx context.Context, runID, bucketKey string) error
	Clear(ctx context.Context, runID string) error
}

// Publisher receives the run's review artifacts as they are produced.
// Implementations forward to the message bus; a nil publisher disables
// forwarding without changing run semantics.
type Publisher interface {
	PublishRejection(ctx context.Context, rec restypes.RejectionRecord) error
	PublishMismatch(ctx context.Context, report restypes.MismatchReportDTO) error
}

// Service is the batch resolution surface.
type Service interface {
	Run(ctx context.Context, input *RunInput) (*RunResult, error)
	ResolveOne(ctx context.Context, dto restypes.MentionDTO) (domres.Decision, error)
}

// RunInput describes one batch run. RunID keys the checkpoint cursor;
// reusing the ID of an interrupted run resumes it.
type RunInput struct {
	RunID    string
	Mentions []restypes.MentionDTO
}

// RunResult summarizes a finished run.
type RunResult struct {
	Decisions  []domres.Decision
	Rejections []restypes.RejectionRecord
	// BucketsProcessed counts buckets resolved in this invocation;
	// BucketsSkipped counts those skipped by the resume cursor.
	BucketsProcessed int
	BucketsSkipped   int
	ResumedFrom      string
}

type service struct {
	engine      *domres.Engine
	index       *domres.Index
	normalizer  *mention.Normalizer
	store       domentity.EntityStore
	checkpoints CheckpointStore
	publisher   Publisher
	workers     int
	logger      logging.Logger
}

// NewService wires the batch service. checkpoints and publisher may be
// nil; workers below 1 defaults to 4.
func NewService(
	engine *domres.Engine,
	index *domres.Index,
	normalizer *mention.Normalizer,
	store domentity.EntityStore,
	checkpoints CheckpointStore,
	publisher Publisher,
	workers int,
	logger logging.Logger,
) (Service, error) {
	if engine == nil || index == nil || normalizer == nil || store == nil {
		return nil, errors.InvalidParam("batch service requires engine, index, normalizer, and store")
	}
	if workers < 1 {
		workers = 4
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &service{
		engine:      engine,
		index:       index,
		normalizer:  normalizer,
		store:       store,
		checkpoints: checkpoints,
		publisher:   publisher,
		workers:     workers,
		logger:      logger.Named("batch-resolver"),
	}, nil
}

// prepared is one admitted mention with its precomputed bucket.
type prepared struct {
	pos    int
	m      *mention.Mention
	bucket string
}

func (s *service) Run(ctx context.Context, input *RunInput) (*RunResult, error) {
	if input == nil || input.RunID == "" {
		return nil, errors.InvalidParam("run requires a run id")
	}
	result := &RunResult{}

	admitted, rejections := s.prepare(ctx, input.Mentions)
	result.Rejections = rejections
	for _, rec := range rejections {
		s.publishRejection(ctx, rec)
	}

	buckets := map[string][]prepared{}
	for _, p := range admitted {
		buckets[p.bucket] = append(buckets[p.bucket], p)
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cursor := ""
	if s.checkpoints != nil {
		var err error
		cursor, err = s.checkpoints.Load(ctx, input.RunID)
		if err != nil {
			return nil, err
		}
		if cursor != "" {
			result.ResumedFrom = cursor
			s.logger.Info("resuming run",
				logging.String("run_id", input.RunID),
				logging.String("cursor", cursor))
		}
	}

	reported := 0
	for _, key := range keys {
		if cursor != "" && key <= cursor {
			result.BucketsSkipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "run canceled")
		}

		// Input order within a bucket keeps reruns deterministic.
		work := buckets[key]
		sort.Slice(work, func(i, j int) bool { return work[i].pos < work[j].pos })
		for _, p := range work {
			d, err := s.engine.Resolve(ctx, p.m)
			if err != nil {
				// Mention-level failures go to the rejection log, never
				// abort the batch.
				rec := rejectionFor(p.m, err)
				result.Rejections = append(result.Rejections, rec)
				s.publishRejection(ctx, rec)
				continue
			}
			result.Decisions = append(result.Decisions, d)
		}
		result.BucketsProcessed++

		if s.checkpoints != nil {
			if err := s.checkpoints.Save(ctx, input.RunID, key); err != nil {
				return nil, errors.Wrap(err, errors.CodeCacheError, "failed to persist checkpoint")
			}
		}
		reported = s.publishNewMismatches(ctx, reported)
	}

	if s.checkpoints != nil {
		if err := s.checkpoints.Clear(ctx, input.RunID); err != nil {
			s.logger.Warn("failed to clear checkpoint", logging.String("run_id", input.RunID), logging.Err(err))
		}
	}

	s.logger.Info("run finished",
		logging.String("run_id", input.RunID),
		logging.Int("decisions", len(result.Decisions)),
		logging.Int("rejections", len(result.Rejections)),
		logging.Int("buckets", result.BucketsProcessed),
		logging.Int("skipped", result.BucketsSkipped))
	return result, nil
}

// prepare admits and normalizes mentions in parallel. Order is preserved
// through positional slots, so no locking is needed.
func (s *service) prepare(ctx context.Context, dtos []restypes.MentionDTO) ([]prepared, []restypes.RejectionRecord) {
	type slot struct {
		p   *prepared
		rej []restypes.RejectionRecord
	}
	slots := make([]slot, len(dtos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range dtos {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return nil
			}
			dto := dtos[i]
			m, err := mention.New(dto)
			if err != nil {
				slots[i].rej = append(slots[i].rej, restypes.RejectionRecord{
					SourceID:   dto.SourceID,
					RawName:    dto.RawName,
					Code:       string(errors.GetCode(err)),
					Reason:     err.Error(),
					RecordedAt: time.Now().UTC(),
				})
				return nil
			}
			nz := s.normalizer.Normalize(m.RawName)
			if nz.Key == "" {
				slots[i].rej = append(slots[i].rej, rejectionFor(m, errors.MalformedMention("name is empty after normalization")))
				return nil
			}
			if nz.Degraded {
				// Degraded mentions proceed, but must be observable.
				slots[i].rej = append(slots[i].rej, restypes.RejectionRecord{
					MentionID:  m.ID,
					SourceID:   string(m.SourceID),
					RawName:    m.RawName,
					Code:       string(errors.ErrCodeNormalizationDegraded),
					Reason:     "normalization fell back to case-fold only",
					RecordedAt: time.Now().UTC(),
				})
			}
			slots[i].p = &prepared{pos: i, m: m, bucket: s.index.BucketKey(nz, m.CountryHint, m.TypeHint)}
			return nil
		})
	}
	_ = g.Wait()

	var admitted []prepared
	var rejections []restypes.RejectionRecord
	for _, sl := range slots {
		rejections = append(rejections, sl.rej...)
		if sl.p != nil {
			admitted = append(admitted, *sl.p)
		}
	}
	return admitted, rejections
}

func (s *service) ResolveOne(ctx context.Context, dto restypes.MentionDTO) (domres.Decision, error) {
	m, err := mention.New(dto)
	if err != nil {
		s.publishRejection(ctx, restypes.RejectionRecord{
			SourceID:   dto.SourceID,
			RawName:    dto.RawName,
			Code:       string(errors.GetCode(err)),
			Reason:     err.Error(),
			RecordedAt: time.Now().UTC(),
		})
		return domres.Decision{}, err
	}
	d, err := s.engine.Resolve(ctx, m)
	if err != nil {
		s.publishRejection(ctx, rejectionFor(m, err))
		return domres.Decision{}, err
	}
	return d, nil
}

func rejectionFor(m *mention.Mention, err error) restypes.RejectionRecord {
	return restypes.RejectionRecord{
		MentionID:  m.ID,
		SourceID:   string(m.SourceID),
		RawName:    m.RawName,
		Code:       string(errors.GetCode(err)),
		Reason:     err.Error(),
		RecordedAt: time.Now().UTC(),
	}
}

func (s *service) publishRejection(ctx context.Context, rec restypes.RejectionRecord) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRejection(ctx, rec); err != nil {
		s.logger.Warn("failed to publish rejection", logging.Err(err))
	}
}

// publishNewMismatches forwards reports filed since the last call and
// returns the new high-water mark.
func (s *service) publishNewMismatches(ctx context.Context, from int) int {
	if s.publisher == nil {
		return from
	}
	reports, err := s.store.Mismatches(ctx)
	if err != nil {
		s.logger.Warn("failed to read mismatch reports", logging.Err(err))
		return from
	}
	for _, r := range reports[from:] {
		if err := s.publisher.PublishMismatch(ctx, r.DTO()); err != nil {
			s.logger.Warn("failed to publish mismatch report", logging.Err(err))
		}
	}
	return len(reports)
}
