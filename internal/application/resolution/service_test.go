package resolution

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domentity "github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	domres "github.com/DailyForkCast/osint-foresight-sub003/internal/domain/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

type memCheckpoints struct {
	mu      sync.Mutex
	cursors map[string]string
	saves   []string
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{cursors: map[string]string{}}
}

func (c *memCheckpoints) Load(_ context.Context, runID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursors[runID], nil
}

func (c *memCheckpoints) Save(_ context.Context, runID, bucketKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors[runID] = bucketKey
	c.saves = append(c.saves, bucketKey)
	return nil
}

func (c *memCheckpoints) Clear(_ context.Context, runID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cursors, runID)
	return nil
}

type memPublisher struct {
	mu         sync.Mutex
	rejections []restypes.RejectionRecord
	mismatches []restypes.MismatchReportDTO
}

func (p *memPublisher) PublishRejection(_ context.Context, rec restypes.RejectionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejections = append(p.rejections, rec)
	return nil
}

func (p *memPublisher) PublishMismatch(_ context.Context, report restypes.MismatchReportDTO) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mismatches = append(p.mismatches, report)
	return nil
}

func newTestService(t *testing.T, checkpoints CheckpointStore, publisher Publisher) (Service, *domentity.MemoryStore) {
	t.Helper()
	store := domentity.NewMemoryStore()
	normalizer := mention.NewNormalizer([]string{"co", "ltd", "inc", "corp", "gmbh"})
	variants := mention.NewVariantGenerator(normalizer, nil, nil)
	scorer, err := domres.NewScorer(domres.Weights{ExactMatch: 0.4, Jaccard: 0.3, CharRatio: 0.2, Agreement: 0.1}, 0.85)
	require.NoError(t, err)
	index := domres.NewIndex(4, 200)
	engine, err := domres.NewEngine(store, index, normalizer, variants, scorer, domres.Params{
		AutoMergeThreshold: 0.95,
		ReviewThreshold:    0.80,
		IDNamespace:        uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	}, nil, logging.NewNopLogger())
	require.NoError(t, err)
	svc, err := NewService(engine, index, normalizer, store, checkpoints, publisher, 2, logging.NewNopLogger())
	require.NoError(t, err)
	return svc, store
}

func testMentions() []restypes.MentionDTO {
	return []restypes.MentionDTO{
		{SourceID: "registry", RawName: "Huawei Technologies Co., Ltd.", CountryHint: "CN", TypeHint: "company"},
		{SourceID: "news", RawName: "Huawei Technologies", CountryHint: "CN", TypeHint: "company"},
		{SourceID: "registry", RawName: "Acme Corporation", CountryHint: "US", TypeHint: "company"},
		{SourceID: "news", RawName: "Globex GmbH", CountryHint: "DE", TypeHint: "company"},
	}
}

func TestRunResolvesBatch(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	result, err := svc.Run(ctx, &RunInput{RunID: "run-1", Mentions: testMentions()})
	require.NoError(t, err)
	assert.Len(t, result.Decisions, 4)
	assert.Empty(t, result.Rejections)
	assert.Equal(t, 3, result.BucketsProcessed)

	entities, err := store.Entities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 3)
}

func TestRunRejectsMalformedMentions(t *testing.T) {
	ctx := context.Background()
	pub := &memPublisher{}
	svc, _ := newTestService(t, nil, pub)

	mentions := append(testMentions(),
		restypes.MentionDTO{SourceID: "news", RawName: "   "},
		restypes.MentionDTO{RawName: "No Source Inc."},
	)
	result, err := svc.Run(ctx, &RunInput{RunID: "run-1", Mentions: mentions})
	require.NoError(t, err, "bad mentions never abort the batch")
	assert.Len(t, result.Decisions, 4)
	require.Len(t, result.Rejections, 2)
	for _, rec := range result.Rejections {
		assert.Equal(t, string(errors.ErrCodeMalformedMention), rec.Code)
	}
	assert.Len(t, pub.rejections, 2, "every rejection is published")
}

func TestRunLogsDegradedMentions(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, nil, nil)

	mentions := []restypes.MentionDTO{
		{SourceID: "registry", RawName: "华为技术有限公司", CountryHint: "CN", TypeHint: "company"},
	}
	result, err := svc.Run(ctx, &RunInput{RunID: "run-1", Mentions: mentions})
	require.NoError(t, err)

	// Degraded mentions proceed into resolution and appear in the log.
	assert.Len(t, result.Decisions, 1)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, string(errors.ErrCodeNormalizationDegraded), result.Rejections[0].Code)

	entities, err := store.Entities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestRunCheckpointsAndResumes(t *testing.T) {
	ctx := context.Background()
	cp := newMemCheckpoints()
	svc, _ := newTestService(t, cp, nil)

	first, err := svc.Run(ctx, &RunInput{RunID: "run-1", Mentions: testMentions()})
	require.NoError(t, err)
	require.Equal(t, 3, first.BucketsProcessed)
	require.Len(t, cp.saves, 3, "one checkpoint per bucket")
	assert.Empty(t, cp.cursors["run-1"], "finished runs clear their cursor")

	// Simulate an interrupted run: cursor parked at the first bucket key.
	cp.cursors["run-2"] = cp.saves[0]
	svc2, _ := newTestService(t, cp, nil)
	resumed, err := svc2.Run(ctx, &RunInput{RunID: "run-2", Mentions: testMentions()})
	require.NoError(t, err)
	assert.Equal(t, cp.saves[0], resumed.ResumedFrom)
	assert.Equal(t, 1, resumed.BucketsSkipped)
	assert.Equal(t, 2, resumed.BucketsProcessed)
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	ctx := context.Background()

	run := func() []domres.Decision {
		svc, _ := newTestService(t, nil, nil)
		result, err := svc.Run(ctx, &RunInput{RunID: "run-1", Mentions: testMentions()})
		require.NoError(t, err)
		return result.Decisions
	}

	first := run()
	second := run()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].EntityID, second[i].EntityID)
		assert.Equal(t, first[i].State, second[i].State)
	}
}

func TestResolveOne(t *testing.T) {
	ctx := context.Background()
	pub := &memPublisher{}
	svc, _ := newTestService(t, nil, pub)

	d, err := svc.ResolveOne(ctx, restypes.MentionDTO{SourceID: "registry", RawName: "Acme Corp", CountryHint: "US", TypeHint: "company"})
	require.NoError(t, err)
	assert.True(t, d.Created)

	_, err = svc.ResolveOne(ctx, restypes.MentionDTO{SourceID: "registry", RawName: ""})
	assert.True(t, errors.IsCode(err, errors.ErrCodeMalformedMention))
	assert.Len(t, pub.rejections, 1)
}

func TestRunRequiresRunID(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)
	_, err := svc.Run(context.Background(), &RunInput{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}
