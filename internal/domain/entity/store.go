package entity

import (
	"context"

	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
)

// EntityStore is the registry the merge engine works against during a
// batch run. Implementations must keep evidence append-only and make
// Reassign atomic: the deactivation of the old rows and the append of the
// new one are observed together or not at all.
type EntityStore interface {
	// SaveEntity upserts an entity aggregate.
	SaveEntity(ctx context.Context, e *Entity) error
	// Entity returns an entity by ID, or a not-found error.
	Entity(ctx context.Context, id common.ID) (*Entity, error)
	// Entities returns all entities sorted by ID.
	Entities(ctx context.Context) ([]*Entity, error)

	// AppendEvidence appends one evidence row.
	AppendEvidence(ctx context.Context, ev Evidence) error
	// DeactivateEvidence flips all active rows for a mention to inactive
	// and returns how many were flipped.
	DeactivateEvidence(ctx context.Context, mentionID common.ID) (int, error)
	// EvidenceFor returns all rows for an entity, active and inactive,
	// oldest first.
	EvidenceFor(ctx context.Context, entityID common.ID) ([]Evidence, error)
	// ActiveAssignment returns the entity currently holding the mention,
	// or "" when unassigned.
	ActiveAssignment(ctx context.Context, mentionID common.ID) (common.ID, error)
	// Reassign atomically deactivates the mention's active rows and
	// appends the replacement row.
	Reassign(ctx context.Context, mentionID common.ID, replacement Evidence) error

	// AppendTimeline appends one timeline event.
	AppendTimeline(ctx context.Context, ev TimelineEvent) error
	// Timeline returns an entity's events oldest first.
	Timeline(ctx context.Context, entityID common.ID) ([]TimelineEvent, error)

	// FileMismatch records a mismatch report.
	FileMismatch(ctx context.Context, r MismatchReport) error
	// Mismatches returns all reports oldest first.
	Mismatches(ctx context.Context) ([]MismatchReport, error)
}
