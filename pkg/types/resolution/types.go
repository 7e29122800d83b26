// Package resolution defines the transport DTOs for the resolver's input and
// output boundaries: the mention stream consumed from collectors and the
// registry export, provenance packs, mismatch reports, and metrics report
// produced for downstream reporting and risk scoring.
package resolution

import (
	"time"

	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
)

// ─────────────────────────────────────────────────────────────────────────────
// Input boundary
// ─────────────────────────────────────────────────────────────────────────────

// MentionDTO is the stable wire schema for one observed name occurrence.
// Collectors (out of scope here) publish these; the resolver only reads them.
type MentionDTO struct {
	SourceID     string `json:"source_id"`
	RawName      string `json:"raw_name"`
	CountryHint  string `json:"country_hint,omitempty"`
	TypeHint     string `json:"type_hint,omitempty"`
	ObservedDate string `json:"observed_date,omitempty"` // ISO-8601
	AddressHint  string `json:"address_hint,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Output boundary
// ─────────────────────────────────────────────────────────────────────────────

// EntityExport is one record of the entity registry export.
type EntityExport struct {
	EntityID      common.ID `json:"entity_id"`
	CanonicalName string    `json:"canonical_name"`
	Aliases       []string  `json:"aliases"`
	Type          string    `json:"type"`
	Country       string    `json:"country"`
	Sources       []string  `json:"sources"`
	Confidence    float64   `json:"confidence"`
	AliasCount    int       `json:"alias_count"`
}

// EvidenceRecord is one row of an evidence chain, exported verbatim from the
// append-only evidence log.
type EvidenceRecord struct {
	EntityID        common.ID `json:"entity_id"`
	MentionID       common.ID `json:"mention_id"`
	SourceID        string    `json:"source_id"`
	SimilarityScore float64   `json:"similarity_score"`
	DecidedAt       time.Time `json:"decided_at"`
	Active          bool      `json:"active"`
}

// ProvenancePack bundles the corroborating evidence for one entity. Packs
// are only produced for entities whose active evidence spans the minimum
// number of distinct sources.
type ProvenancePack struct {
	EntityID      common.ID        `json:"entity_id"`
	CanonicalName string           `json:"canonical_name"`
	Sources       []string         `json:"sources"`
	SourceCount   int              `json:"source_count"`
	Aliases       []string         `json:"aliases"`
	EvidenceChain []EvidenceRecord `json:"evidence_chain"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// MismatchKind enumerates the detected-conflict categories.
type MismatchKind string

const (
	MismatchDuplicateCandidate    MismatchKind = "duplicate_candidate"
	MismatchTimelineInconsistency MismatchKind = "timeline_inconsistency"
	MismatchMergeConflict         MismatchKind = "merge_conflict"
	MismatchCountryConflict       MismatchKind = "country_conflict"
)

// MismatchReportDTO is the export form of a detected conflict. Reports are
// review material for analysts; the engine never auto-resolves them.
type MismatchReportDTO struct {
	ReportID         common.ID        `json:"report_id"`
	Kind             MismatchKind     `json:"kind"`
	EntitiesInvolved []common.ID      `json:"entities_involved"`
	Evidence         []EvidenceRecord `json:"evidence,omitempty"`
	Description      string           `json:"description,omitempty"`
	DetectedAt       time.Time        `json:"detected_at"`
}

// MetricsReport summarises resolution quality over the final registry.
// Precision/recall/F1 are present only when a labeled validation sample was
// supplied; they are never synthesized from unlabeled data.
type MetricsReport struct {
	AliasCoverage              float64  `json:"alias_coverage"`
	Precision                  *float64 `json:"precision,omitempty"`
	Recall                     *float64 `json:"recall,omitempty"`
	F1                         *float64 `json:"f1,omitempty"`
	TimelineInconsistencies    int      `json:"timeline_inconsistencies_count"`
	EntityCount                int      `json:"entity_count"`
	DuplicateCandidateEntities int      `json:"duplicate_candidate_entities"`
}

// RejectionRecord is one row of the rejection log: a mention that was
// rejected or degraded at ingestion, with the reason. Silent failure of
// individual mentions is disallowed, so every such mention appears here.
type RejectionRecord struct {
	MentionID  common.ID  `json:"mention_id,omitempty"`
	SourceID   string     `json:"source_id"`
	RawName    string     `json:"raw_name"`
	Code       string     `json:"code"`
	Reason     string     `json:"reason"`
	RecordedAt time.Time  `json:"recorded_at"`
}
