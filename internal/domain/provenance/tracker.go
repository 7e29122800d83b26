// Package provenance maintains the audit side of resolution: per-entity
// observation timelines with consistency checking, and provenance packs
// bundling the multi-source evidence behind an entity.
package provenance

import (
	"context"
	"fmt"
	"time"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/resolution"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/infrastructure/monitoring/logging"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// dateRange is the closed interval of observation dates seen on one entity.
type dateRange struct {
	min, max time.Time
}

// Tracker watches resolution decisions and checks each new observation
// date against the entity's existing range. A date farther than the window
// from the range files a timeline inconsistency report; the merge itself
// is never blocked, matching the report-do-not-resolve posture.
//
// Tracker implements the merge engine's observer contract.
type Tracker struct {
	store  entity.EntityStore
	window time.Duration
	logger logging.Logger

	bounds map[common.ID]dateRange
}

var _ resolution.Observer = (*Tracker)(nil)

// NewTracker builds a tracker over the registry store. window is the
// maximum tolerated gap between a new observation and the entity's known
// range.
func NewTracker(store entity.EntityStore, window time.Duration, logger logging.Logger) (*Tracker, error) {
	if store == nil {
		return nil, errors.InvalidParam("tracker requires a store")
	}
	if window <= 0 {
		return nil, errors.InvalidParam("timeline window must be positive")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Tracker{
		store:  store,
		window: window,
		logger: logger.Named("provenance"),
		bounds: map[common.ID]dateRange{},
	}, nil
}

// MentionAttached records the mention's observation date on the entity's
// range and reports a gap beyond the window.
func (t *Tracker) MentionAttached(ctx context.Context, e *entity.Entity, m *mention.Mention, _ entity.Evidence) error {
	if m.ObservedDate == nil {
		return nil
	}
	d := *m.ObservedDate

	r, ok := t.bounds[e.ID]
	if !ok {
		t.bounds[e.ID] = dateRange{min: d, max: d}
		return nil
	}

	if gap := rangeGap(r, d); gap > t.window {
		report := entity.NewMismatchReport(
			restypes.MismatchTimelineInconsistency,
			fmt.Sprintf("mention %s observed %s, %s outside the entity's known range [%s, %s]",
				m.ID, d.Format(time.DateOnly), gap.Round(24*time.Hour), r.min.Format(time.DateOnly), r.max.Format(time.DateOnly)),
			e.ID,
		)
		report.MentionID = m.ID
		if err := t.store.FileMismatch(ctx, report); err != nil {
			return err
		}
		t.logger.Warn("timeline inconsistency",
			logging.String("entity_id", string(e.ID)),
			logging.String("mention_id", string(m.ID)),
			logging.Duration("gap", gap))
	}

	t.bounds[e.ID] = extend(r, d)
	return nil
}

// EntitiesMerged folds the loser's date range into the winner's and
// reports when the two ranges are farther apart than the window.
func (t *Tracker) EntitiesMerged(ctx context.Context, winner, loser *entity.Entity) error {
	lr, ok := t.bounds[loser.ID]
	if !ok {
		return nil
	}
	delete(t.bounds, loser.ID)

	wr, ok := t.bounds[winner.ID]
	if !ok {
		t.bounds[winner.ID] = lr
		return nil
	}

	if gap := rangesGap(wr, lr); gap > t.window {
		if err := t.store.FileMismatch(ctx, entity.NewMismatchReport(
			restypes.MismatchTimelineInconsistency,
			fmt.Sprintf("merged entities' observation ranges are %s apart", gap.Round(24*time.Hour)),
			winner.ID, loser.ID,
		)); err != nil {
			return err
		}
	}

	t.bounds[winner.ID] = dateRange{min: earlier(wr.min, lr.min), max: later(wr.max, lr.max)}
	return nil
}

// InconsistencyCount returns the number of timeline inconsistency reports
// currently on file.
func (t *Tracker) InconsistencyCount(ctx context.Context) (int, error) {
	reports, err := t.store.Mismatches(ctx)
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

// rangeGap is the distance from d to the closed range, zero when inside.
func rangeGap(r dateRange, d time.Time) time.Duration {
	switch {
	case d.Before(r.min):
		return r.min.Sub(d)
	case d.After(r.max):
		return d.Sub(r.max)
	default:
		return 0
	}
}

// rangesGap is the distance between two closed ranges, zero on overlap.
func rangesGap(a, b dateRange) time.Duration {
	switch {
	case a.max.Before(b.min):
		return b.min.Sub(a.max)
	case b.max.Before(a.min):
		return a.min.Sub(b.max)
	default:
		return 0
	}
}

func extend(r dateRange, d time.Time) dateRange {
	return dateRange{min: earlier(r.min, d), max: later(r.max, d)}
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
