package resolution

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// Params configure the merge engine's decision bands and tie-breaks.
type Params struct {
	// AutoMergeThreshold is the floor of the automatic-merge band.
	AutoMergeThreshold float64
	// ReviewThreshold is the floor of the logged no-merge band; below it
	// scores are ignored entirely.
	ReviewThreshold float64
	// SourceTrust maps source IDs to trust in [0,1] for the canonical-name
	// tie-break. Unlisted sources get DefaultSourceTrust.
	SourceTrust map[string]float64
	// IDNamespace seeds deterministic entity IDs so identical inputs
	// produce identical registries across runs.
	IDNamespace uuid.UUID
}

// DefaultSourceTrust applies to sources absent from the trust map.
const DefaultSourceTrust = 0.5

// Validate checks the band ordering.
func (p Params) Validate() error {
	if p.ReviewThreshold <= 0 || p.AutoMergeThreshold > 1 {
		return errors.InvalidParam("decision thresholds must lie in (0,1]")
	}
	if p.ReviewThreshold >= p.AutoMergeThreshold {
		return errors.InvalidParam("review threshold must be below the auto-merge threshold")
	}
	return nil
}

// Observer receives resolution lifecycle callbacks. The provenance tracker
// hangs its timeline bookkeeping here so the engine stays free of pack and
// consistency concerns.
type Observer interface {
	MentionAttached(ctx context.Context, e *entity.Entity, m *mention.Mention, ev entity.Evidence) error
	EntitiesMerged(ctx context.Context, winner, loser *entity.Entity) error
}

// Decision is the outcome of resolving one mention.
type Decision struct {
	MentionID common.ID           `json:"mention_id"`
	State     entity.MentionState `json:"state"`
	EntityID  common.ID           `json:"entity_id"`
	Score     float64             `json:"score"`
	// NearMiss marks a logged no-merge: the best score fell inside the
	// review band, so a new entity was created and the near-match logged.
	NearMiss bool `json:"near_miss,omitempty"`
	// Created reports that the decision seeded a new entity.
	Created bool `json:"created,omitempty"`
}

// aliasForm is one indexed alias with its precomputed normal form.
type aliasForm struct {
	display string
	nz      mention.Normalized
}

// Engine is the single-writer merge engine. It owns the blocking index,
// the union-find over merged entity IDs, and all mutation of the registry;
// callers serialize Resolve calls (the batch service runs one writer
// goroutine).
type Engine struct {
	store      entity.EntityStore
	index      *Index
	normalizer *mention.Normalizer
	variants   *mention.VariantGenerator
	scorer     *Scorer
	params     Params
	observer   Observer
	logger     logging.Logger

	// parents is the union-find forest over entity IDs; merged losers
	// point at their winners. The blocking index is never rewritten, so
	// every candidate lookup maps through Find.
	parents map[common.ID]common.ID

	// forms caches the normalized alias forms per live entity.
	forms map[common.ID][]aliasForm

	// canonTrust remembers the trust behind each entity's current
	// canonical name for the replacement tie-break.
	canonTrust map[common.ID]float64

	// idSeq disambiguates deterministic IDs on the rare identical-seed
	// collision (same key and hints but a degraded score kept them apart).
	idSeq map[string]int
}

// NewEngine wires a merge engine. observer may be nil.
func NewEngine(
	store entity.EntityStore,
	index *Index,
	normalizer *mention.Normalizer,
	variants *mention.VariantGenerator,
	scorer *Scorer,
	params Params,
	observer Observer,
	logger logging.Logger,
) (*Engine, error) {
	if store == nil || index == nil || normalizer == nil || scorer == nil {
		return nil, errors.InvalidParam("engine requires store, index, normalizer, and scorer")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Engine{
		store:      store,
		index:      index,
		normalizer: normalizer,
		variants:   variants,
		scorer:     scorer,
		params:     params,
		observer:   observer,
		logger:     logger.Named("merge-engine"),
		parents:    map[common.ID]common.ID{},
		forms:      map[common.ID][]aliasForm{},
		canonTrust: map[common.ID]float64{},
		idSeq:      map[string]int{},
	}, nil
}

// Find maps an entity ID through the union-find to its live representative.
func (g *Engine) Find(id common.ID) common.ID {
	root := id
	for {
		p, ok := g.parents[root]
		if !ok {
			break
		}
		root = p
	}
	// Path compression.
	for id != root {
		next := g.parents[id]
		g.parents[id] = root
		id = next
	}
	return root
}

// Register loads a pre-existing entity into the index and caches, used
// when resuming a checkpointed run over a previously flushed registry.
func (g *Engine) Register(ctx context.Context, e *entity.Entity) error {
	if e == nil {
		return errors.InvalidParam("cannot register nil entity")
	}
	if err := g.store.SaveEntity(ctx, e); err != nil {
		return err
	}
	for _, alias := range e.Aliases() {
		g.indexAlias(e, alias)
	}
	g.canonTrust[e.ID] = DefaultSourceTrust
	return nil
}

// Resolve decides one mention. Not safe for concurrent use.
func (g *Engine) Resolve(ctx context.Context, m *mention.Mention) (Decision, error) {
	if m == nil {
		return Decision{}, errors.InvalidParam("cannot resolve nil mention")
	}
	nz := g.normalizer.Normalize(m.RawName)
	if nz.Key == "" {
		return Decision{}, errors.MalformedMention("name is empty after normalization")
	}
	attrs := Attributes{Country: m.CountryHint, Kind: m.TypeHint}

	mforms := g.mentionForms(m.RawName, nz)
	cands := g.liveCandidates(mforms, m)
	scored := g.scoreCandidates(ctx, mforms, attrs, cands)

	state := entity.StateUnresolved
	if len(scored) > 0 {
		state, _ = entity.Transition(state, entity.StatePendingCandidateCheck)
	}

	auto, conflicted := g.classify(scored)

	// Conflicting candidates produce reports regardless of the final
	// decision; an auto target elsewhere does not erase the contradiction.
	for _, c := range conflicted {
		g.fileMergeConflict(ctx, c, m)
	}

	switch {
	case len(auto) > 0:
		return g.mergeInto(ctx, state, m, nz, auto)
	case len(conflicted) > 0:
		st, err := entity.Transition(state, entity.StateConflicted)
		if err != nil {
			return Decision{}, err
		}
		return Decision{MentionID: m.ID, State: st, Score: conflicted[0].max}, nil
	default:
		return g.createFor(ctx, state, m, nz, bestScore(scored))
	}
}

// candidateScore is one candidate with its complete-linkage bounds: min
// and max score across every alias form the entity holds.
type candidateScore struct {
	ent      *entity.Entity
	min, max float64
}

// liveCandidates unions the index lookups of every mention form and maps
// the results through the union-find, so stale post-merge index entries
// and variant-key bridges both land on live entities.
func (g *Engine) liveCandidates(mforms []mention.Normalized, m *mention.Mention) []common.ID {
	seen := map[common.ID]bool{}
	var out []common.ID
	for _, mf := range mforms {
		for _, id := range g.index.Candidates(mf, m.CountryHint, m.TypeHint) {
			live := g.Find(id)
			if !seen[live] {
				seen[live] = true
				out = append(out, live)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// mentionForms returns the mention's normal form plus the normal forms of
// its generated variants, deduplicated by key. Scoring takes the best
// mention form per entity alias, which is what lets an acronym or
// transliteration bridge actually clear the merge band instead of only
// widening the candidate set.
func (g *Engine) mentionForms(raw string, nz mention.Normalized) []mention.Normalized {
	forms := []mention.Normalized{nz}
	if g.variants == nil {
		return forms
	}
	seen := map[mention.NormalizedKey]bool{nz.Key: true}
	for _, v := range g.variants.Variants(raw) {
		vnz := g.normalizer.Normalize(v.Value)
		if vnz.Key == "" || seen[vnz.Key] {
			continue
		}
		seen[vnz.Key] = true
		forms = append(forms, vnz)
	}
	return forms
}

func (g *Engine) scoreCandidates(ctx context.Context, mforms []mention.Normalized, attrs Attributes, ids []common.ID) []candidateScore {
	out := make([]candidateScore, 0, len(ids))
	for _, id := range ids {
		forms := g.forms[id]
		if len(forms) == 0 {
			continue
		}
		e, err := g.store.Entity(ctx, id)
		if err != nil {
			continue
		}
		eAttrs := Attributes{Country: e.Country, Kind: e.Type}
		cs := candidateScore{ent: e, min: 1}
		for _, f := range forms {
			// Best mention form against this alias.
			best := 0.0
			for _, mf := range mforms {
				if s := g.scorer.Score(mf, f.nz, attrs, eAttrs); s > best {
					best = s
				}
			}
			if best < cs.min {
				cs.min = best
			}
			if best > cs.max {
				cs.max = best
			}
		}
		out = append(out, cs)
	}
	return out
}

// classify splits scored candidates into auto-merge targets (every alias
// clears the review floor and the best clears the auto floor) and
// conflicted candidates (the best clears the auto floor but some alias
// falls below review, so complete linkage vetoes the merge).
func (g *Engine) classify(scored []candidateScore) (auto, conflicted []candidateScore) {
	for _, c := range scored {
		switch {
		case c.max >= g.params.AutoMergeThreshold && c.min >= g.params.ReviewThreshold:
			auto = append(auto, c)
		case c.max >= g.params.AutoMergeThreshold:
			conflicted = append(conflicted, c)
		}
	}
	sort.Slice(auto, func(i, j int) bool {
		if auto[i].max != auto[j].max {
			return auto[i].max > auto[j].max
		}
		return auto[i].ent.ID < auto[j].ent.ID
	})
	return auto, conflicted
}

func bestScore(scored []candidateScore) float64 {
	best := 0.0
	for _, c := range scored {
		if c.max > best {
			best = c.max
		}
	}
	return best
}

// mergeInto attaches the mention to the primary auto target, then folds
// any further auto targets into it when their alias sets also pass
// complete linkage against the primary's.
func (g *Engine) mergeInto(ctx context.Context, state entity.MentionState, m *mention.Mention, nz mention.Normalized, auto []candidateScore) (Decision, error) {
	st, err := entity.Transition(state, entity.StateMerged)
	if err != nil {
		return Decision{}, err
	}
	primary := auto[0]

	if err := g.attach(ctx, primary.ent, m, nz, primary.max); err != nil {
		return Decision{}, err
	}

	for _, other := range auto[1:] {
		if g.Find(other.ent.ID) == primary.ent.ID {
			continue
		}
		if g.crossLinkage(ctx, primary.ent.ID, other.ent.ID) >= g.params.ReviewThreshold {
			if err := g.mergeEntities(ctx, primary.ent, other.ent); err != nil {
				return Decision{}, err
			}
		} else {
			report := entity.NewMismatchReport(
				restypes.MismatchMergeConflict,
				fmt.Sprintf("mention %s qualifies for both %q and %q but their alias sets fail complete linkage", m.ID, primary.ent.CanonicalName, other.ent.CanonicalName),
				primary.ent.ID, other.ent.ID,
			)
			report.MentionID = m.ID
			report.Score = other.max
			if err := g.store.FileMismatch(ctx, report); err != nil {
				return Decision{}, err
			}
		}
	}

	return Decision{MentionID: m.ID, State: st, EntityID: primary.ent.ID, Score: primary.max}, nil
}

// crossLinkage is the complete-linkage bound between two entities: the
// minimum pairwise score across their alias form sets.
func (g *Engine) crossLinkage(ctx context.Context, a, b common.ID) float64 {
	ea, errA := g.store.Entity(ctx, a)
	eb, errB := g.store.Entity(ctx, b)
	if errA != nil || errB != nil {
		return 0
	}
	attrA := Attributes{Country: ea.Country, Kind: ea.Type}
	attrB := Attributes{Country: eb.Country, Kind: eb.Type}
	min := 1.0
	for _, fa := range g.forms[a] {
		for _, fb := range g.forms[b] {
			if s := g.scorer.Score(fa.nz, fb.nz, attrA, attrB); s < min {
				min = s
			}
		}
	}
	return min
}

func (g *Engine) fileMergeConflict(ctx context.Context, c candidateScore, m *mention.Mention) {
	report := entity.NewMismatchReport(
		restypes.MismatchMergeConflict,
		fmt.Sprintf("mention %q scores %.3f against one alias of %q but %.3f against another", m.RawName, c.max, c.ent.CanonicalName, c.min),
		c.ent.ID,
	)
	report.MentionID = m.ID
	report.Score = c.max
	if err := g.store.FileMismatch(ctx, report); err != nil {
		g.logger.Error("failed to file merge conflict report", logging.Err(err))
	}
	g.logger.Warn("merge conflict detected",
		logging.String("mention_id", string(m.ID)),
		logging.String("entity_id", string(c.ent.ID)),
		logging.Float64("max_score", c.max),
		logging.Float64("min_score", c.min))
}

// attach binds the mention to the entity: evidence row, alias growth,
// attribute upgrades, canonical tie-break, confidence refresh.
func (g *Engine) attach(ctx context.Context, e *entity.Entity, m *mention.Mention, nz mention.Normalized, score float64) error {
	ev, err := entity.NewEvidence(e.ID, m.ID, m.SourceID, score)
	if err != nil {
		return err
	}
	current, err := g.store.ActiveAssignment(ctx, m.ID)
	if err != nil {
		return err
	}
	switch {
	case current == "":
		if err := g.store.AppendEvidence(ctx, ev); err != nil {
			return err
		}
	case current != e.ID:
		if err := g.store.Reassign(ctx, m.ID, ev); err != nil {
			return err
		}
		if err := g.store.AppendTimeline(ctx, entity.NewTimelineEvent(e.ID, entity.TimelineReassigned,
			fmt.Sprintf("mention %s reassigned from entity %s", m.ID, current))); err != nil {
			return err
		}
	default:
		// Already the active owner; idempotent replay.
		return nil
	}

	if m.CountryHint != "" {
		if e.Country == "" {
			e.SetCountry(m.CountryHint)
		} else if e.Country != m.CountryHint {
			report := entity.NewMismatchReport(
				restypes.MismatchCountryConflict,
				fmt.Sprintf("mention %q carries country %s but entity %q holds %s", m.RawName, m.CountryHint, e.CanonicalName, e.Country),
				e.ID,
			)
			report.MentionID = m.ID
			if err := g.store.FileMismatch(ctx, report); err != nil {
				return err
			}
		}
	}
	e.SetKind(m.TypeHint)
	e.RecordSource(m.SourceID)

	if !e.HasAlias(nz.Alias) {
		e.AddAlias(nz.Alias)
		g.indexAlias(e, m.RawName)
		if err := g.store.AppendTimeline(ctx, entity.NewTimelineEvent(e.ID, entity.TimelineAliasAdded, nz.Alias)); err != nil {
			return err
		}
	}

	g.reconsiderCanonical(ctx, e, m)

	rows, err := g.store.EvidenceFor(ctx, e.ID)
	if err != nil {
		return err
	}
	e.RecomputeConfidence(activeRows(rows))
	if err := g.store.SaveEntity(ctx, e); err != nil {
		return err
	}

	tl := entity.NewTimelineEvent(e.ID, entity.TimelineMentionMerged, fmt.Sprintf("mention %s from %s", m.ID, m.SourceID))
	tl.MentionID = m.ID
	tl.ObservedDate = m.ObservedDate
	if err := g.store.AppendTimeline(ctx, tl); err != nil {
		return err
	}

	if g.observer != nil {
		if err := g.observer.MentionAttached(ctx, e, m, ev); err != nil {
			return err
		}
	}
	return nil
}

// reconsiderCanonical applies the tie-break: higher source trust wins;
// equal trust prefers the longer non-abbreviated name; remaining ties go
// to the lexicographically smaller name so reruns are stable.
func (g *Engine) reconsiderCanonical(ctx context.Context, e *entity.Entity, m *mention.Mention) {
	trust := g.trust(string(m.SourceID))
	cur := g.canonTrust[e.ID]
	replace := false
	switch {
	case trust > cur:
		replace = true
	case trust == cur && preferName(m.RawName, e.CanonicalName):
		replace = true
	}
	if !replace || m.RawName == e.CanonicalName {
		if trust > cur {
			g.canonTrust[e.ID] = trust
		}
		return
	}
	old := e.CanonicalName
	e.AddAlias(old)
	e.SetCanonicalName(m.RawName)
	g.canonTrust[e.ID] = trust
	if err := g.store.AppendTimeline(ctx, entity.NewTimelineEvent(e.ID, entity.TimelineRenamed,
		fmt.Sprintf("%q replaces %q", m.RawName, old))); err != nil {
		g.logger.Error("failed to record rename", logging.Err(err))
	}
}

// preferName reports whether a should replace b as canonical at equal
// trust.
func preferName(a, b string) bool {
	aAbbr, bAbbr := isAbbreviation(a), isAbbreviation(b)
	if aAbbr != bAbbr {
		return !aAbbr
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a < b
}

// isAbbreviation marks single-token all-caps names like "HTC" or "IBM".
func isAbbreviation(name string) bool {
	if strings.ContainsRune(name, ' ') {
		return false
	}
	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// mergeEntities folds loser into winner. The loser aggregate is retained
// with zero active evidence so historical references stay resolvable; the
// union-find routes future lookups to the winner.
func (g *Engine) mergeEntities(ctx context.Context, winner, loser *entity.Entity) error {
	if winner.ID == loser.ID {
		return nil
	}
	g.logger.Info("merging entities",
		logging.String("winner_id", string(winner.ID)),
		logging.String("loser_id", string(loser.ID)),
		logging.String("winner", winner.CanonicalName),
		logging.String("loser", loser.CanonicalName))

	for _, alias := range loser.Aliases() {
		winner.AddAlias(alias)
	}
	for _, src := range loser.Sources() {
		winner.RecordSource(common.SourceID(src))
	}
	if winner.Country == "" {
		winner.SetCountry(loser.Country)
	} else if loser.Country != "" && loser.Country != winner.Country {
		if err := g.store.FileMismatch(ctx, entity.NewMismatchReport(
			restypes.MismatchCountryConflict,
			fmt.Sprintf("merged entities disagree on country: %q holds %s, %q held %s", winner.CanonicalName, winner.Country, loser.CanonicalName, loser.Country),
			winner.ID, loser.ID,
		)); err != nil {
			return err
		}
	}
	winner.SetKind(loser.Type)

	// Move the loser's active evidence one mention at a time so each row
	// keeps its original score and source.
	rows, err := g.store.EvidenceFor(ctx, loser.ID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if !row.Active {
			continue
		}
		moved, err := entity.NewEvidence(winner.ID, row.MentionID, row.SourceID, row.SimilarityScore)
		if err != nil {
			return err
		}
		moved.DecidedAt = row.DecidedAt
		if err := g.store.Reassign(ctx, row.MentionID, moved); err != nil {
			return err
		}
	}

	g.parents[loser.ID] = winner.ID
	g.forms[winner.ID] = append(g.forms[winner.ID], g.forms[loser.ID]...)
	delete(g.forms, loser.ID)
	loserTrust, winnerTrust := g.canonTrust[loser.ID], g.canonTrust[winner.ID]
	if loserTrust > winnerTrust || (loserTrust == winnerTrust && preferName(loser.CanonicalName, winner.CanonicalName)) {
		winner.AddAlias(winner.CanonicalName)
		winner.SetCanonicalName(loser.CanonicalName)
		g.canonTrust[winner.ID] = loserTrust
	}
	delete(g.canonTrust, loser.ID)

	loser.RecomputeConfidence(nil)
	if err := g.store.SaveEntity(ctx, loser); err != nil {
		return err
	}
	winnerRows, err := g.store.EvidenceFor(ctx, winner.ID)
	if err != nil {
		return err
	}
	winner.RecomputeConfidence(activeRows(winnerRows))
	if err := g.store.SaveEntity(ctx, winner); err != nil {
		return err
	}

	if err := g.store.AppendTimeline(ctx, entity.NewTimelineEvent(winner.ID, entity.TimelineEntitiesMerged,
		fmt.Sprintf("absorbed entity %s (%q)", loser.ID, loser.CanonicalName))); err != nil {
		return err
	}

	if g.observer != nil {
		return g.observer.EntitiesMerged(ctx, winner, loser)
	}
	return nil
}

// createFor seeds a new entity from the mention. best carries the highest
// rejected candidate score; inside the review band it becomes a logged
// no-merge.
func (g *Engine) createFor(ctx context.Context, state entity.MentionState, m *mention.Mention, nz mention.Normalized, best float64) (Decision, error) {
	st, err := entity.Transition(state, entity.StateNewEntity)
	if err != nil {
		return Decision{}, err
	}

	nearMiss := best >= g.params.ReviewThreshold
	if nearMiss {
		g.logger.Info("near-miss below auto-merge threshold, creating new entity",
			logging.String("mention_id", string(m.ID)),
			logging.String("raw_name", m.RawName),
			logging.Float64("best_score", best))
	}

	e, err := entity.NewEntity(g.nextID(ctx, m, nz), m.RawName, m.TypeHint)
	if err != nil {
		return Decision{}, err
	}
	e.SetCountry(m.CountryHint)
	e.AddAlias(nz.Alias)
	e.RecordSource(m.SourceID)
	g.canonTrust[e.ID] = g.trust(string(m.SourceID))

	if err := g.store.SaveEntity(ctx, e); err != nil {
		return Decision{}, err
	}
	if err := g.store.AppendTimeline(ctx, entity.NewTimelineEvent(e.ID, entity.TimelineEntityCreated,
		fmt.Sprintf("seeded by mention %s (%q)", m.ID, m.RawName))); err != nil {
		return Decision{}, err
	}
	g.indexAlias(e, m.RawName)

	ev, err := entity.NewEvidence(e.ID, m.ID, m.SourceID, 1.0)
	if err != nil {
		return Decision{}, err
	}
	if err := g.store.AppendEvidence(ctx, ev); err != nil {
		return Decision{}, err
	}
	rows, err := g.store.EvidenceFor(ctx, e.ID)
	if err != nil {
		return Decision{}, err
	}
	e.RecomputeConfidence(activeRows(rows))
	if err := g.store.SaveEntity(ctx, e); err != nil {
		return Decision{}, err
	}

	tl := entity.NewTimelineEvent(e.ID, entity.TimelineMentionMerged, fmt.Sprintf("mention %s from %s", m.ID, m.SourceID))
	tl.MentionID = m.ID
	tl.ObservedDate = m.ObservedDate
	if err := g.store.AppendTimeline(ctx, tl); err != nil {
		return Decision{}, err
	}

	if g.observer != nil {
		if err := g.observer.MentionAttached(ctx, e, m, ev); err != nil {
			return Decision{}, err
		}
	}

	return Decision{MentionID: m.ID, State: st, EntityID: e.ID, Score: best, NearMiss: nearMiss, Created: true}, nil
}

// nextID derives a deterministic entity ID from the mention's normal form
// and hints, with a sequence suffix on the rare seed collision.
func (g *Engine) nextID(ctx context.Context, m *mention.Mention, nz mention.Normalized) common.ID {
	seed := strings.Join([]string{string(nz.Key), m.CountryHint, string(m.TypeHint)}, "|")
	for {
		n := g.idSeq[seed]
		candidate := seed
		if n > 0 {
			candidate = fmt.Sprintf("%s#%d", seed, n)
		}
		g.idSeq[seed] = n + 1
		id := common.DeterministicID(g.params.IDNamespace, candidate)
		if _, err := g.store.Entity(ctx, id); err != nil {
			return id
		}
	}
}

// indexAlias normalizes one display name and indexes its key plus every
// generated variant key, wiring acronym and transliteration bridges into
// the blocking index.
func (g *Engine) indexAlias(e *entity.Entity, display string) {
	nz := g.normalizer.Normalize(display)
	if nz.Key == "" {
		return
	}
	g.index.Add(e.ID, nz.Key, e.Country, e.Type)
	g.forms[e.ID] = append(g.forms[e.ID], aliasForm{display: display, nz: nz})

	if g.variants == nil {
		return
	}
	for _, v := range g.variants.Variants(display) {
		vnz := g.normalizer.Normalize(v.Value)
		if vnz.Key == "" || vnz.Key == nz.Key {
			continue
		}
		g.index.Add(e.ID, vnz.Key, e.Country, e.Type)
	}
}

func (g *Engine) trust(sourceID string) float64 {
	if t, ok := g.params.SourceTrust[sourceID]; ok {
		return t
	}
	return DefaultSourceTrust
}

func activeRows(rows []entity.Evidence) []entity.Evidence {
	out := rows[:0:0]
	for _, r := range rows {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}

// ObservedWithin reports whether two observation dates fall inside the
// window; a nil date on either side is always consistent.
func ObservedWithin(a, b *time.Time, window time.Duration) bool {
	if a == nil || b == nil {
		return true
	}
	d := a.Sub(*b)
	if d < 0 {
		d = -d
	}
	return d <= window
}
