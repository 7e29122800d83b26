package entity

import (
	"time"

	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// Evidence links one mention to one entity with the score that justified
// the assignment. Rows are append-only: a reassignment never rewrites an
// old row, it deactivates it and appends a fresh one, so the full decision
// history stays replayable.
type Evidence struct {
	ID              common.ID       `json:"id"`
	EntityID        common.ID       `json:"entity_id"`
	MentionID       common.ID       `json:"mention_id"`
	SourceID        common.SourceID `json:"source_id"`
	SimilarityScore float64         `json:"similarity_score"`
	DecidedAt       time.Time       `json:"decided_at"`
	Active          bool            `json:"active"`
}

// NewEvidence builds an active evidence row for an assignment decision.
func NewEvidence(entityID, mentionID common.ID, src common.SourceID, score float64) (Evidence, error) {
	if entityID == "" || mentionID == "" {
		return Evidence{}, errors.InvalidParam("evidence requires entity and mention ids")
	}
	if score < 0 || score > 1 {
		return Evidence{}, errors.InvalidParam("similarity score out of range")
	}
	return Evidence{
		ID:              common.NewID(),
		EntityID:        entityID,
		MentionID:       mentionID,
		SourceID:        src,
		SimilarityScore: score,
		DecidedAt:       time.Now().UTC(),
		Active:          true,
	}, nil
}

// DTO converts the evidence row to its export shape.
func (ev Evidence) DTO() restypes.EvidenceRecord {
	return restypes.EvidenceRecord{
		EntityID:        ev.EntityID,
		MentionID:       ev.MentionID,
		SourceID:        string(ev.SourceID),
		SimilarityScore: ev.SimilarityScore,
		DecidedAt:       ev.DecidedAt,
		Active:          ev.Active,
	}
}

// TimelineEventType enumerates the recorded lifecycle events of an entity.
type TimelineEventType string

const (
	TimelineEntityCreated  TimelineEventType = "entity_created"
	TimelineMentionMerged  TimelineEventType = "mention_merged"
	TimelineAliasAdded     TimelineEventType = "alias_added"
	TimelineEntitiesMerged TimelineEventType = "entities_merged"
	TimelineRenamed        TimelineEventType = "canonical_renamed"
	TimelineReassigned     TimelineEventType = "mention_reassigned"
)

// TimelineEvent is one append-only entry in an entity's history. Detail is
// a short human-readable note; structured references go in the ID fields.
type TimelineEvent struct {
	ID         common.ID         `json:"id"`
	EntityID   common.ID         `json:"entity_id"`
	Type       TimelineEventType `json:"type"`
	MentionID  common.ID         `json:"mention_id,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	// ObservedDate carries the mention's own date where one exists, so
	// timeline consistency checks compare source dates, not ingest times.
	ObservedDate *time.Time `json:"observed_date,omitempty"`
	Detail       string     `json:"detail,omitempty"`
}

// NewTimelineEvent appends-ready event with OccurredAt stamped now.
func NewTimelineEvent(entityID common.ID, typ TimelineEventType, detail string) TimelineEvent {
	return TimelineEvent{
		ID:         common.NewID(),
		EntityID:   entityID,
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Detail:     detail,
	}
}

// MismatchReport records a resolution anomaly for offline review. Reports
// never block the pipeline; they are the audit trail for the band between
// automatic action and silence.
type MismatchReport struct {
	ID         common.ID             `json:"id"`
	Kind       restypes.MismatchKind `json:"kind"`
	Entities   []common.ID           `json:"entities,omitempty"`
	MentionID  common.ID             `json:"mention_id,omitempty"`
	Evidence   []Evidence            `json:"evidence,omitempty"`
	Score      float64               `json:"score,omitempty"`
	Detail     string                `json:"detail"`
	DetectedAt time.Time             `json:"detected_at"`
}

// NewMismatchReport builds a report stamped now.
func NewMismatchReport(kind restypes.MismatchKind, detail string, entities ...common.ID) MismatchReport {
	return MismatchReport{
		ID:         common.NewID(),
		Kind:       kind,
		Entities:   entities,
		Detail:     detail,
		DetectedAt: time.Now().UTC(),
	}
}

// DTO converts the report to its export shape.
func (r MismatchReport) DTO() restypes.MismatchReportDTO {
	dto := restypes.MismatchReportDTO{
		ReportID:         r.ID,
		Kind:             r.Kind,
		EntitiesInvolved: r.Entities,
		Description:      r.Detail,
		DetectedAt:       r.DetectedAt,
	}
	for _, ev := range r.Evidence {
		dto.Evidence = append(dto.Evidence, ev.DTO())
	}
	return dto
}
