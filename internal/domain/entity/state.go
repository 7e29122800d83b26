package entity

import (
	"fmt"

	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
)

// MentionState tracks a mention through the resolution pipeline.
type MentionState string

const (
	// StateUnresolved is the initial state after ingestion.
	StateUnresolved MentionState = "unresolved"
	// StatePendingCandidateCheck means blocking produced candidates that
	// still need scoring.
	StatePendingCandidateCheck MentionState = "pending_candidate_check"
	// StateMerged means the mention was attached to an existing entity.
	StateMerged MentionState = "merged"
	// StateNewEntity means the mention seeded a fresh entity.
	StateNewEntity MentionState = "new_entity"
	// StateConflicted means scoring produced contradictory signals and the
	// mention was parked with a mismatch report instead of merged.
	StateConflicted MentionState = "conflicted"
)

// allowedTransitions is the full transition table. Terminal states have no
// outgoing edges except conflicted, which review can route back through
// the pipeline.
var allowedTransitions = map[MentionState][]MentionState{
	StateUnresolved:            {StatePendingCandidateCheck, StateNewEntity},
	StatePendingCandidateCheck: {StateMerged, StateNewEntity, StateConflicted},
	StateConflicted:            {StatePendingCandidateCheck},
	StateMerged:                {},
	StateNewEntity:             {},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to MentionState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new state, or a conflict error
// naming the illegal edge.
func Transition(from, to MentionState) (MentionState, error) {
	if !CanTransition(from, to) {
		return from, errors.Conflict(fmt.Sprintf("illegal mention state transition %s -> %s", from, to))
	}
	return to, nil
}

// IsTerminal reports whether the state accepts no further automatic
// transitions.
func (s MentionState) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}
