package entity

import (
	"context"
	"sort"
	"sync"

	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
)

// MemoryStore is the in-process registry used during batch resolution.
// One RWMutex guards everything; the merge engine is single-writer, so
// contention is limited to read-side lookups from scoring workers.
type MemoryStore struct {
	mu sync.RWMutex

	entities map[common.ID]*Entity

	// evidence is the append-only log; byMention indexes the positions of
	// each mention's rows inside it.
	evidence  []Evidence
	byMention map[common.ID][]int
	byEntity  map[common.ID][]int

	timelines  map[common.ID][]TimelineEvent
	mismatches []MismatchReport
}

// NewMemoryStore returns an empty registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:  map[common.ID]*Entity{},
		byMention: map[common.ID][]int{},
		byEntity:  map[common.ID][]int{},
		timelines: map[common.ID][]TimelineEvent{},
	}
}

func (s *MemoryStore) SaveEntity(_ context.Context, e *Entity) error {
	if e == nil || e.ID == "" {
		return errors.InvalidParam("entity must have an id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.ID] = e
	return nil
}

func (s *MemoryStore) Entity(_ context.Context, id common.ID) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, errors.NotFound("entity " + string(id))
	}
	return e, nil
}

func (s *MemoryStore) Entities(_ context.Context) ([]*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AppendEvidence(_ context.Context, ev Evidence) error {
	if ev.ID == "" || ev.EntityID == "" || ev.MentionID == "" {
		return errors.InvalidParam("evidence row is missing ids")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(ev)
	return nil
}

func (s *MemoryStore) appendLocked(ev Evidence) {
	idx := len(s.evidence)
	s.evidence = append(s.evidence, ev)
	s.byMention[ev.MentionID] = append(s.byMention[ev.MentionID], idx)
	s.byEntity[ev.EntityID] = append(s.byEntity[ev.EntityID], idx)
}

func (s *MemoryStore) DeactivateEvidence(_ context.Context, mentionID common.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deactivateLocked(mentionID), nil
}

func (s *MemoryStore) deactivateLocked(mentionID common.ID) int {
	n := 0
	for _, idx := range s.byMention[mentionID] {
		if s.evidence[idx].Active {
			s.evidence[idx].Active = false
			n++
		}
	}
	return n
}

func (s *MemoryStore) EvidenceFor(_ context.Context, entityID common.ID) ([]Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byEntity[entityID]
	out := make([]Evidence, 0, len(idxs))
	for _, idx := range idxs {
		out = append(out, s.evidence[idx])
	}
	return out, nil
}

func (s *MemoryStore) ActiveAssignment(_ context.Context, mentionID common.ID) (common.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, idx := range s.byMention[mentionID] {
		if s.evidence[idx].Active {
			return s.evidence[idx].EntityID, nil
		}
	}
	return "", nil
}

func (s *MemoryStore) Reassign(_ context.Context, mentionID common.ID, replacement Evidence) error {
	if replacement.MentionID != mentionID {
		return errors.InvalidParam("replacement evidence does not reference the mention")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivateLocked(mentionID)
	s.appendLocked(replacement)
	return nil
}

func (s *MemoryStore) AppendTimeline(_ context.Context, ev TimelineEvent) error {
	if ev.EntityID == "" {
		return errors.InvalidParam("timeline event must reference an entity")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timelines[ev.EntityID] = append(s.timelines[ev.EntityID], ev)
	return nil
}

func (s *MemoryStore) Timeline(_ context.Context, entityID common.ID) ([]TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.timelines[entityID]
	out := make([]TimelineEvent, len(evs))
	copy(out, evs)
	return out, nil
}

func (s *MemoryStore) FileMismatch(_ context.Context, r MismatchReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mismatches = append(s.mismatches, r)
	return nil
}

func (s *MemoryStore) Mismatches(_ context.Context) ([]MismatchReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MismatchReport, len(s.mismatches))
	copy(out, s.mismatches)
	return out, nil
}

var _ EntityStore = (*MemoryStore)(nil)
