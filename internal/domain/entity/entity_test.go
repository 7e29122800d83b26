package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
)

func TestNewEntityValidation(t *testing.T) {
	_, err := NewEntity("", "Huawei", mention.KindCompany)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = NewEntity(common.NewID(), "", mention.KindCompany)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	e, err := NewEntity(common.NewID(), "Huawei Technologies", mention.KindCompany)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.Version)
	assert.Zero(t, e.Confidence)
}

func TestAliasSetGrowsMonotonically(t *testing.T) {
	e, err := NewEntity(common.NewID(), "Huawei Technologies", mention.KindCompany)
	require.NoError(t, err)

	e.AddAlias("huawei technologies")
	e.AddAlias("huawei technologies co ltd")
	e.AddAlias("huawei technologies") // duplicate, no version bump
	v := e.Version
	e.AddAlias("huawei technologies")
	assert.Equal(t, v, e.Version)

	assert.Equal(t, []string{"huawei technologies", "huawei technologies co ltd"}, e.Aliases())
	assert.True(t, e.HasAlias("huawei technologies co ltd"))
}

func TestSetCanonicalNameKeepsOldAlias(t *testing.T) {
	e, err := NewEntity(common.NewID(), "HTC", mention.KindCompany)
	require.NoError(t, err)
	e.AddAlias("HTC")

	e.SetCanonicalName("Huawei Technologies Co Ltd")
	assert.Equal(t, "Huawei Technologies Co Ltd", e.CanonicalName)
	assert.True(t, e.HasAlias("HTC"))
}

func TestRecomputeConfidence(t *testing.T) {
	e, err := NewEntity(common.NewID(), "Acme", mention.KindCompany)
	require.NoError(t, err)

	e.RecomputeConfidence(nil)
	assert.Zero(t, e.Confidence)

	one := []Evidence{{SimilarityScore: 1.0, Active: true}}
	e.RecomputeConfidence(one)
	single := e.Confidence
	assert.InDelta(t, 0.75, single, 0.01)

	four := []Evidence{
		{SimilarityScore: 1.0, Active: true},
		{SimilarityScore: 1.0, Active: true},
		{SimilarityScore: 1.0, Active: true},
		{SimilarityScore: 1.0, Active: true},
	}
	e.RecomputeConfidence(four)
	assert.Greater(t, e.Confidence, single)
	assert.LessOrEqual(t, e.Confidence, 1.0)
}

func TestMentionStateTransitions(t *testing.T) {
	tests := []struct {
		from, to MentionState
		ok       bool
	}{
		{StateUnresolved, StatePendingCandidateCheck, true},
		{StateUnresolved, StateNewEntity, true},
		{StateUnresolved, StateMerged, false},
		{StatePendingCandidateCheck, StateMerged, true},
		{StatePendingCandidateCheck, StateConflicted, true},
		{StateConflicted, StatePendingCandidateCheck, true},
		{StateMerged, StateNewEntity, false},
		{StateNewEntity, StateMerged, false},
	}
	for _, tt := range tests {
		got, err := Transition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
			assert.Equal(t, tt.to, got)
		} else {
			assert.True(t, errors.IsCode(err, errors.CodeConflict), "%s -> %s", tt.from, tt.to)
			assert.Equal(t, tt.from, got)
		}
	}
	assert.True(t, StateMerged.IsTerminal())
	assert.False(t, StateConflicted.IsTerminal())
}

func TestMemoryStoreEvidenceAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	e, err := NewEntity(common.NewID(), "Acme Corp", mention.KindCompany)
	require.NoError(t, err)
	require.NoError(t, s.SaveEntity(ctx, e))

	mentionID := common.NewID()
	ev, err := NewEvidence(e.ID, mentionID, "src-a", 0.97)
	require.NoError(t, err)
	require.NoError(t, s.AppendEvidence(ctx, ev))

	owner, err := s.ActiveAssignment(ctx, mentionID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, owner)

	rows, err := s.EvidenceFor(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Active)
}

func TestMemoryStoreReassignIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := NewEntity(common.NewID(), "Acme Corp", mention.KindCompany)
	require.NoError(t, err)
	b, err := NewEntity(common.NewID(), "Acme Corporation", mention.KindCompany)
	require.NoError(t, err)
	require.NoError(t, s.SaveEntity(ctx, a))
	require.NoError(t, s.SaveEntity(ctx, b))

	mentionID := common.NewID()
	first, err := NewEvidence(a.ID, mentionID, "src-a", 0.91)
	require.NoError(t, err)
	require.NoError(t, s.AppendEvidence(ctx, first))

	second, err := NewEvidence(b.ID, mentionID, "src-a", 0.98)
	require.NoError(t, err)
	require.NoError(t, s.Reassign(ctx, mentionID, second))

	owner, err := s.ActiveAssignment(ctx, mentionID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, owner)

	// The old row survives, deactivated.
	rowsA, err := s.EvidenceFor(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rowsA, 1)
	assert.False(t, rowsA[0].Active)

	rowsB, err := s.EvidenceFor(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rowsB, 1)
	assert.True(t, rowsB[0].Active)
}

func TestMemoryStoreReassignRejectsMismatchedMention(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	ev, err := NewEvidence(common.NewID(), common.NewID(), "src-a", 0.9)
	require.NoError(t, err)
	err = s.Reassign(ctx, common.NewID(), ev)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestMemoryStoreTimelineAndMismatches(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	entityID := common.NewID()
	require.NoError(t, s.AppendTimeline(ctx, NewTimelineEvent(entityID, TimelineEntityCreated, "seeded")))
	require.NoError(t, s.AppendTimeline(ctx, NewTimelineEvent(entityID, TimelineMentionMerged, "merged m1")))

	tl, err := s.Timeline(ctx, entityID)
	require.NoError(t, err)
	require.Len(t, tl, 2)
	assert.Equal(t, TimelineEntityCreated, tl[0].Type)
	assert.Equal(t, TimelineMentionMerged, tl[1].Type)

	require.NoError(t, s.FileMismatch(ctx, NewMismatchReport("merge_conflict", "contradictory scores")))
	reports, err := s.Mismatches(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "contradictory scores", reports[0].Detail)
}

func TestMemoryStoreEntityNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Entity(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))
}
