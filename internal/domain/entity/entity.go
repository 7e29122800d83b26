// Package entity implements the canonical Entity aggregate of the
// resolution engine together with its evidence, timeline, and mismatch
// records, the EntityStore registry contract, and the in-memory registry
// used during batch runs. All invariants that concern a resolved entity
// (alias monotonicity, append-only evidence, atomic reassignment) are
// enforced here.
package entity

import (
	"math"
	"sort"
	"time"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
)

// Entity is the canonical resolved record. It exclusively owns its alias
// set; mentions are referenced by ID only, never owned, so reassigning a
// mention elsewhere cannot corrupt this entity's remaining members.
//
// Consumers must not modify fields directly; mutations go through the
// exported methods so invariants are maintained.
type Entity struct {
	common.BaseEntity

	CanonicalName string             `json:"canonical_name"`
	Type          mention.EntityKind `json:"type"`

	// Country is the best-evidence country value, "" when unknown.
	Country string `json:"country,omitempty"`

	// Confidence is the aggregate merge confidence in [0,1]. It is always
	// recomputed from evidence, never hand-edited.
	Confidence float64 `json:"confidence"`

	// aliases is the monotonically-growing alias set. Insertion order is
	// irrelevant; Aliases() returns a sorted copy.
	aliases map[string]bool

	// sources is the set of source IDs with evidence for this entity.
	sources map[common.SourceID]bool
}

// NewEntity constructs a fresh Entity around its first alias. The caller
// (the merge engine) supplies the ID so that deterministic batch runs can
// reproduce identical assignments.
func NewEntity(id common.ID, canonicalName string, kind mention.EntityKind) (*Entity, error) {
	if id == "" {
		return nil, errors.InvalidParam("entity id must not be empty")
	}
	if canonicalName == "" {
		return nil, errors.InvalidParam("canonical name must not be empty")
	}
	now := time.Now().UTC()
	return &Entity{
		BaseEntity: common.BaseEntity{
			ID:        id,
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		CanonicalName: canonicalName,
		Type:          kind,
		aliases:       map[string]bool{},
		sources:       map[common.SourceID]bool{},
	}, nil
}

// Rehydrate rebuilds an Entity from persisted state. It is for storage
// adapters only: it restores the aggregate exactly as stored, bypassing the
// mutation methods and their version bumps.
func Rehydrate(base common.BaseEntity, canonicalName string, kind mention.EntityKind, country string, confidence float64, aliases, sources []string) *Entity {
	e := &Entity{
		BaseEntity:    base,
		CanonicalName: canonicalName,
		Type:          kind,
		Country:       country,
		Confidence:    confidence,
		aliases:       make(map[string]bool, len(aliases)),
		sources:       make(map[common.SourceID]bool, len(sources)),
	}
	for _, a := range aliases {
		if a != "" {
			e.aliases[a] = true
		}
	}
	for _, s := range sources {
		if s != "" {
			e.sources[common.SourceID(s)] = true
		}
	}
	return e
}

// AddAlias records an alias. Aliases only ever grow; there is no removal.
// The only permitted change to the name set is replacing the canonical name.
func (e *Entity) AddAlias(alias string) {
	if alias == "" {
		return
	}
	if !e.aliases[alias] {
		e.aliases[alias] = true
		e.touch()
	}
}

// HasAlias reports membership in the alias set.
func (e *Entity) HasAlias(alias string) bool {
	return e.aliases[alias]
}

// Aliases returns a sorted copy of the alias set.
func (e *Entity) Aliases() []string {
	out := make([]string, 0, len(e.aliases))
	for a := range e.aliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// AliasCount returns the size of the alias set.
func (e *Entity) AliasCount() int {
	return len(e.aliases)
}

// RecordSource marks a source as contributing evidence.
func (e *Entity) RecordSource(src common.SourceID) {
	if src == "" {
		return
	}
	if !e.sources[src] {
		e.sources[src] = true
		e.touch()
	}
}

// Sources returns a sorted copy of the contributing source set.
func (e *Entity) Sources() []string {
	out := make([]string, 0, len(e.sources))
	for s := range e.sources {
		out = append(out, string(s))
	}
	sort.Strings(out)
	return out
}

// SourceCount returns the number of distinct contributing sources.
func (e *Entity) SourceCount() int {
	return len(e.sources)
}

// SetCanonicalName replaces the canonical name. The tie-break policy lives
// in the merge engine; this method only applies its decision. The previous
// canonical name stays in the alias set, so the name set never shrinks.
func (e *Entity) SetCanonicalName(name string) {
	if name == "" || name == e.CanonicalName {
		return
	}
	e.CanonicalName = name
	e.touch()
}

// SetKind upgrades an unknown type to a concrete one. A concrete type is
// never overwritten; type disagreements are scoring's concern.
func (e *Entity) SetKind(kind mention.EntityKind) {
	if kind == "" || kind == mention.KindUnknown {
		return
	}
	if e.Type == "" || e.Type == mention.KindUnknown {
		e.Type = kind
		e.touch()
	}
}

// SetCountry applies the best-evidence country value.
func (e *Entity) SetCountry(country string) {
	if country == "" || country == e.Country {
		return
	}
	e.Country = country
	e.touch()
}

// RecomputeConfidence derives the aggregate confidence from the active
// evidence rows: the mean similarity score, dampened toward zero when only
// a single evidence row backs the entity. A dissolved entity (no active
// evidence) has confidence 0.
func (e *Entity) RecomputeConfidence(active []Evidence) {
	if len(active) == 0 {
		e.Confidence = 0
		e.touch()
		return
	}
	var sum float64
	for _, ev := range active {
		sum += ev.SimilarityScore
	}
	mean := sum / float64(len(active))
	// Corroboration factor: 1 row → 0.5, 2 → ~0.79, 4+ → ~0.94+.
	corr := 1 - math.Pow(0.5, float64(len(active)))
	e.Confidence = clamp01(mean * (0.5 + 0.5*corr))
	e.touch()
}

func (e *Entity) touch() {
	e.UpdatedAt = time.Now().UTC()
	e.Version++
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
