// Package metrics computes resolution-quality metrics over a finished
// registry: alias coverage, precision/recall/F1 against a labeled
// validation sample, the timeline-inconsistency count, and an under-merge
// sweep for near-duplicate entities that were never merged.
//
// Precision/recall/F1 are computed only from a supplied labeled sample.
// There is deliberately no fallback that estimates them from the registry
// itself; fabricated quality numbers are worse than absent ones.
package metrics

import (
	"context"
	"fmt"

	"github.com/agnivade/levenshtein"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// LabeledPair is one row of an externally-supplied validation sample: two
// mentions and the ground truth of whether they name the same real-world
// entity.
type LabeledPair struct {
	MentionA   common.ID `json:"mention_a"`
	MentionB   common.ID `json:"mention_b"`
	SameEntity bool      `json:"same_entity"`
}

// Calculator derives the metrics report from the registry store.
type Calculator struct {
	store      entity.EntityStore
	normalizer *mention.Normalizer

	// sweepDistance is the Levenshtein bound of the under-merge sweep;
	// zero disables the sweep.
	sweepDistance int
}

// NewCalculator wires a calculator over a finished registry.
func NewCalculator(store entity.EntityStore, normalizer *mention.Normalizer, sweepDistance int) (*Calculator, error) {
	if store == nil || normalizer == nil {
		return nil, errors.InvalidParam("calculator requires a store and a normalizer")
	}
	if sweepDistance < 0 {
		return nil, errors.InvalidParam("sweep distance must not be negative")
	}
	return &Calculator{store: store, normalizer: normalizer, sweepDistance: sweepDistance}, nil
}

// Report assembles the full metrics report. sample may be nil, in which
// case precision/recall/F1 are omitted from the report entirely.
func (c *Calculator) Report(ctx context.Context, sample []LabeledPair) (*restypes.MetricsReport, error) {
	entities, err := c.store.Entities(ctx)
	if err != nil {
		return nil, err
	}

	report := &restypes.MetricsReport{
		EntityCount:   len(entities),
		AliasCoverage: aliasCoverage(entities),
	}

	dups, err := c.DuplicateSweep(ctx)
	if err != nil {
		return nil, err
	}
	report.DuplicateCandidateEntities = dups

	inconsistencies, err := c.timelineInconsistencies(ctx)
	if err != nil {
		return nil, err
	}
	report.TimelineInconsistencies = inconsistencies

	if len(sample) > 0 {
		p, r, f1, err := c.PrecisionRecall(ctx, sample)
		if err != nil {
			return nil, err
		}
		report.Precision = &p
		report.Recall = &r
		report.F1 = &f1
	}
	return report, nil
}

// aliasCoverage is the fraction of entities carrying at least one alias.
func aliasCoverage(entities []*entity.Entity) float64 {
	if len(entities) == 0 {
		return 0
	}
	covered := 0
	for _, e := range entities {
		if e.AliasCount() > 0 {
			covered++
		}
	}
	return float64(covered) / float64(len(entities))
}

// PrecisionRecall scores the clustering against the labeled sample. A
// pair is predicted positive when both mentions are actively assigned to
// the same entity. An empty sample is refused, never estimated around.
func (c *Calculator) PrecisionRecall(ctx context.Context, sample []LabeledPair) (precision, recall, f1 float64, err error) {
	if len(sample) == 0 {
		return 0, 0, 0, errors.New(errors.ErrCodeUnlabeledSample, "no labeled validation sample supplied")
	}

	var tp, fp, fn int
	for _, pair := range sample {
		a, err := c.store.ActiveAssignment(ctx, pair.MentionA)
		if err != nil {
			return 0, 0, 0, err
		}
		b, err := c.store.ActiveAssignment(ctx, pair.MentionB)
		if err != nil {
			return 0, 0, 0, err
		}
		predicted := a != "" && a == b
		switch {
		case predicted && pair.SameEntity:
			tp++
		case predicted && !pair.SameEntity:
			fp++
		case !predicted && pair.SameEntity:
			fn++
		}
	}

	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1, nil
}

// DuplicateSweep looks for under-merges: pairs of live entities whose
// normalized canonical keys are within the Levenshtein bound. Each such
// pair gets a duplicate_candidate report; the count of involved entities
// is returned. Comparison is bucketed by first key rune to stay far from
// quadratic on real registries.
func (c *Calculator) DuplicateSweep(ctx context.Context) (int, error) {
	if c.sweepDistance == 0 {
		return 0, nil
	}
	entities, err := c.store.Entities(ctx)
	if err != nil {
		return 0, err
	}

	type liveKey struct {
		id  common.ID
		key string
	}
	buckets := map[rune][]liveKey{}
	for _, e := range entities {
		if e.Confidence == 0 {
			continue // dissolved by an entity merge
		}
		key := string(c.normalizer.Normalize(e.CanonicalName).Key)
		if key == "" {
			continue
		}
		first := []rune(key)[0]
		buckets[first] = append(buckets[first], liveKey{id: e.ID, key: key})
	}

	involved := map[common.ID]bool{}
	for _, bucket := range buckets {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				a, b := bucket[i], bucket[j]
				if levenshtein.ComputeDistance(a.key, b.key) > c.sweepDistance {
					continue
				}
				if err := c.store.FileMismatch(ctx, entity.NewMismatchReport(
					restypes.MismatchDuplicateCandidate,
					fmt.Sprintf("entities %s and %s have near-identical keys %q / %q", a.id, b.id, a.key, b.key),
					a.id, b.id,
				)); err != nil {
					return 0, err
				}
				involved[a.id] = true
				involved[b.id] = true
			}
		}
	}
	return len(involved), nil
}

func (c *Calculator) timelineInconsistencies(ctx context.Context) (int, error) {
	reports, err := c.store.Mismatches(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range reports {
		if r.Kind == restypes.MismatchTimelineInconsistency {
			n++
		}
	}
	return n, nil
}
