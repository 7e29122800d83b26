// Package repositories provides the PostgreSQL-backed implementation of the
// entity registry used by the resolution engine: entities with their alias
// and source sets, the append-only evidence log, per-entity timelines, and
// filed mismatch reports.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/entity"
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	appErrors "github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// ─────────────────────────────────────────────────────────────────────────────
// RegistryRepository
// ─────────────────────────────────────────────────────────────────────────────

// RegistryRepository is the PostgreSQL implementation of entity.EntityStore.
// Every public method accepts a context.Context for cancellation and uses
// parameterised queries exclusively. The evidence log is append-only at the
// schema level too: rows are only ever inserted or flipped inactive.
type RegistryRepository struct {
	pool   *pgxpool.Pool
	logger Logger
}

// NewRegistryRepository constructs a ready-to-use RegistryRepository.
func NewRegistryRepository(pool *pgxpool.Pool, logger Logger) *RegistryRepository {
	return &RegistryRepository{pool: pool, logger: logger}
}

var _ entity.EntityStore = (*RegistryRepository)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// Entities
// ─────────────────────────────────────────────────────────────────────────────

// SaveEntity upserts the entity row together with its alias and source sets
// inside a single transaction. Aliases and sources only ever grow, so stale
// set rows are never deleted.
func (r *RegistryRepository) SaveEntity(ctx context.Context, e *entity.Entity) error {
	if e == nil || e.ID == "" {
		return appErrors.InvalidParam("entity must have an id")
	}
	r.logger.Debug("RegistryRepository.SaveEntity", "entity_id", e.ID)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("RegistryRepository.SaveEntity: begin tx", "error", err)
		return appErrors.Wrap(err, appErrors.CodeDBConnectionError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO entities (
			id, canonical_name, kind, country, confidence,
			created_at, updated_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			canonical_name = EXCLUDED.canonical_name,
			kind           = EXCLUDED.kind,
			country        = EXCLUDED.country,
			confidence     = EXCLUDED.confidence,
			updated_at     = EXCLUDED.updated_at,
			version        = EXCLUDED.version`,
		e.ID, e.CanonicalName, string(e.Type), e.Country, e.Confidence,
		e.CreatedAt, e.UpdatedAt, e.Version,
	)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to upsert entity")
	}

	for _, alias := range e.Aliases() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO entity_aliases (entity_id, alias)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			e.ID, alias,
		); err != nil {
			return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to insert alias")
		}
	}

	for _, src := range e.Sources() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO entity_sources (entity_id, source_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			e.ID, src,
		); err != nil {
			return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to insert source")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to commit entity")
	}
	return nil
}

// Entity returns one entity by ID, fully rehydrated.
func (r *RegistryRepository) Entity(ctx context.Context, id common.ID) (*entity.Entity, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, canonical_name, kind, country, confidence,
		       created_at, updated_at, version
		FROM entities
		WHERE id = $1`,
		id,
	)

	e, err := r.scanEntity(ctx, row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, appErrors.NotFound("entity " + string(id))
		}
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load entity")
	}
	return e, nil
}

// Entities returns all entities sorted by ID. Alias and source sets are
// loaded in two grouped queries rather than per entity.
func (r *RegistryRepository) Entities(ctx context.Context) ([]*entity.Entity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, canonical_name, kind, country, confidence,
		       created_at, updated_at, version
		FROM entities
		ORDER BY id`,
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to list entities")
	}
	defer rows.Close()

	type raw struct {
		base          common.BaseEntity
		canonicalName string
		kind          string
		country       string
		confidence    float64
	}
	var raws []raw
	for rows.Next() {
		var rw raw
		if err := rows.Scan(
			&rw.base.ID, &rw.canonicalName, &rw.kind, &rw.country, &rw.confidence,
			&rw.base.CreatedAt, &rw.base.UpdatedAt, &rw.base.Version,
		); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan entity")
		}
		raws = append(raws, rw)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to list entities")
	}

	aliases, err := r.groupedSet(ctx, `SELECT entity_id, alias FROM entity_aliases`)
	if err != nil {
		return nil, err
	}
	sources, err := r.groupedSet(ctx, `SELECT entity_id, source_id FROM entity_sources`)
	if err != nil {
		return nil, err
	}

	out := make([]*entity.Entity, 0, len(raws))
	for _, rw := range raws {
		out = append(out, entity.Rehydrate(
			rw.base, rw.canonicalName, mention.EntityKind(rw.kind), rw.country,
			rw.confidence, aliases[rw.base.ID], sources[rw.base.ID],
		))
	}
	return out, nil
}

// scanEntity scans one entity row and loads its alias and source sets.
func (r *RegistryRepository) scanEntity(ctx context.Context, row rowScanner) (*entity.Entity, error) {
	var (
		base          common.BaseEntity
		canonicalName string
		kind          string
		country       string
		confidence    float64
	)
	if err := row.Scan(
		&base.ID, &canonicalName, &kind, &country, &confidence,
		&base.CreatedAt, &base.UpdatedAt, &base.Version,
	); err != nil {
		return nil, err
	}

	aliases, err := r.memberList(ctx, `SELECT alias FROM entity_aliases WHERE entity_id = $1`, base.ID)
	if err != nil {
		return nil, err
	}
	sources, err := r.memberList(ctx, `SELECT source_id FROM entity_sources WHERE entity_id = $1`, base.ID)
	if err != nil {
		return nil, err
	}

	return entity.Rehydrate(base, canonicalName, mention.EntityKind(kind), country, confidence, aliases, sources), nil
}

func (r *RegistryRepository) memberList(ctx context.Context, query string, entityID common.ID) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *RegistryRepository) groupedSet(ctx context.Context, query string) (map[common.ID][]string, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load member sets")
	}
	defer rows.Close()

	out := map[common.ID][]string{}
	for rows.Next() {
		var (
			id common.ID
			v  string
		)
		if err := rows.Scan(&id, &v); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan member set")
		}
		out[id] = append(out[id], v)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load member sets")
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Evidence
// ─────────────────────────────────────────────────────────────────────────────

// AppendEvidence inserts one evidence row. Rows are never updated in place
// except for the active flag.
func (r *RegistryRepository) AppendEvidence(ctx context.Context, ev entity.Evidence) error {
	if ev.ID == "" || ev.EntityID == "" || ev.MentionID == "" {
		return appErrors.InvalidParam("evidence row is missing ids")
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO evidence (
			id, entity_id, mention_id, source_id,
			similarity_score, decided_at, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.EntityID, ev.MentionID, string(ev.SourceID),
		ev.SimilarityScore, ev.DecidedAt, ev.Active,
	)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to append evidence")
	}
	return nil
}

// DeactivateEvidence flips all active rows for a mention to inactive.
func (r *RegistryRepository) DeactivateEvidence(ctx context.Context, mentionID common.ID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE evidence
		SET active = FALSE
		WHERE mention_id = $1 AND active`,
		mentionID,
	)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to deactivate evidence")
	}
	return int(tag.RowsAffected()), nil
}

// EvidenceFor returns all rows for an entity, active and inactive, in
// insertion order.
func (r *RegistryRepository) EvidenceFor(ctx context.Context, entityID common.ID) ([]entity.Evidence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entity_id, mention_id, source_id,
		       similarity_score, decided_at, active
		FROM evidence
		WHERE entity_id = $1
		ORDER BY seq`,
		entityID,
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load evidence")
	}
	defer rows.Close()

	var out []entity.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan evidence")
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ActiveAssignment returns the entity currently holding the mention, or ""
// when unassigned.
func (r *RegistryRepository) ActiveAssignment(ctx context.Context, mentionID common.ID) (common.ID, error) {
	var entityID common.ID
	err := r.pool.QueryRow(ctx, `
		SELECT entity_id
		FROM evidence
		WHERE mention_id = $1 AND active
		ORDER BY seq DESC
		LIMIT 1`,
		mentionID,
	).Scan(&entityID)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to look up assignment")
	}
	return entityID, nil
}

// Reassign deactivates the mention's active rows and appends the
// replacement row in one transaction, so no reader ever observes the
// mention held by two entities or by none mid-flight.
func (r *RegistryRepository) Reassign(ctx context.Context, mentionID common.ID, replacement entity.Evidence) error {
	if replacement.MentionID != mentionID {
		return appErrors.InvalidParam("replacement evidence does not reference the mention")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBConnectionError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		UPDATE evidence
		SET active = FALSE
		WHERE mention_id = $1 AND active`,
		mentionID,
	); err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to deactivate evidence")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO evidence (
			id, entity_id, mention_id, source_id,
			similarity_score, decided_at, active
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		replacement.ID, replacement.EntityID, replacement.MentionID,
		string(replacement.SourceID), replacement.SimilarityScore,
		replacement.DecidedAt, replacement.Active,
	); err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to append replacement evidence")
	}

	if err := tx.Commit(ctx); err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to commit reassignment")
	}
	return nil
}

func scanEvidence(row rowScanner) (entity.Evidence, error) {
	var (
		ev  entity.Evidence
		src string
	)
	if err := row.Scan(
		&ev.ID, &ev.EntityID, &ev.MentionID, &src,
		&ev.SimilarityScore, &ev.DecidedAt, &ev.Active,
	); err != nil {
		return entity.Evidence{}, err
	}
	ev.SourceID = common.SourceID(src)
	return ev, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Timeline
// ─────────────────────────────────────────────────────────────────────────────

// AppendTimeline appends one timeline event.
func (r *RegistryRepository) AppendTimeline(ctx context.Context, ev entity.TimelineEvent) error {
	if ev.EntityID == "" {
		return appErrors.InvalidParam("timeline event must reference an entity")
	}
	var mentionID interface{}
	if ev.MentionID != "" {
		mentionID = ev.MentionID
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO timeline_events (
			id, entity_id, event_type, mention_id,
			occurred_at, observed_date, detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.EntityID, string(ev.Type), mentionID,
		ev.OccurredAt, ev.ObservedDate, ev.Detail,
	)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to append timeline event")
	}
	return nil
}

// Timeline returns an entity's events in insertion order.
func (r *RegistryRepository) Timeline(ctx context.Context, entityID common.ID) ([]entity.TimelineEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entity_id, event_type, mention_id,
		       occurred_at, observed_date, detail
		FROM timeline_events
		WHERE entity_id = $1
		ORDER BY seq`,
		entityID,
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load timeline")
	}
	defer rows.Close()

	var out []entity.TimelineEvent
	for rows.Next() {
		var (
			ev        entity.TimelineEvent
			typ       string
			mentionID *common.ID
			observed  *time.Time
		)
		if err := rows.Scan(
			&ev.ID, &ev.EntityID, &typ, &mentionID,
			&ev.OccurredAt, &observed, &ev.Detail,
		); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan timeline event")
		}
		ev.Type = entity.TimelineEventType(typ)
		if mentionID != nil {
			ev.MentionID = *mentionID
		}
		ev.ObservedDate = observed
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Mismatch reports
// ─────────────────────────────────────────────────────────────────────────────

// FileMismatch records a mismatch report. The evidence snapshot is stored as
// JSONB; entity references go in a text array for querying.
func (r *RegistryRepository) FileMismatch(ctx context.Context, report entity.MismatchReport) error {
	entities := make([]string, len(report.Entities))
	for i, id := range report.Entities {
		entities[i] = string(id)
	}
	evidenceJSON, err := json.Marshal(report.Evidence)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to encode evidence snapshot")
	}
	var mentionID interface{}
	if report.MentionID != "" {
		mentionID = report.MentionID
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO mismatch_reports (
			id, kind, entities, mention_id,
			evidence, score, detail, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		report.ID, string(report.Kind), entities, mentionID,
		evidenceJSON, report.Score, report.Detail, report.DetectedAt,
	)
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to file mismatch report")
	}
	return nil
}

// Mismatches returns all filed reports in insertion order.
func (r *RegistryRepository) Mismatches(ctx context.Context) ([]entity.MismatchReport, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, entities, mention_id,
		       evidence, score, detail, detected_at
		FROM mismatch_reports
		ORDER BY seq`,
	)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to load mismatch reports")
	}
	defer rows.Close()

	var out []entity.MismatchReport
	for rows.Next() {
		var (
			report       entity.MismatchReport
			kind         string
			entities     []string
			mentionID    *common.ID
			evidenceJSON []byte
		)
		if err := rows.Scan(
			&report.ID, &kind, &entities, &mentionID,
			&evidenceJSON, &report.Score, &report.Detail, &report.DetectedAt,
		); err != nil {
			return nil, appErrors.Wrap(err, appErrors.CodeDBQueryError, "failed to scan mismatch report")
		}
		report.Kind = restypes.MismatchKind(kind)
		for _, id := range entities {
			report.Entities = append(report.Entities, common.ID(id))
		}
		if mentionID != nil {
			report.MentionID = *mentionID
		}
		if len(evidenceJSON) > 0 {
			if err := json.Unmarshal(evidenceJSON, &report.Evidence); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrCodeSerialization, "failed to decode evidence snapshot")
			}
		}
		out = append(out, report)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Integrity
// ─────────────────────────────────────────────────────────────────────────────

// VerifyIntegrity checks the persisted registry for corruption before a
// resume: a mention held actively by more than one entity, or evidence
// pointing at an entity that does not exist. Either finding is fatal; the
// batch must not start.
func (r *RegistryRepository) VerifyIntegrity(ctx context.Context) error {
	var mentionID string
	err := r.pool.QueryRow(ctx, `
		SELECT mention_id
		FROM evidence
		WHERE active
		GROUP BY mention_id
		HAVING COUNT(DISTINCT entity_id) > 1
		LIMIT 1`,
	).Scan(&mentionID)
	if err == nil {
		return appErrors.RegistryCorrupted(
			fmt.Sprintf("mention %s is actively assigned to multiple entities", mentionID))
	}
	if err != pgx.ErrNoRows {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "integrity check failed")
	}

	var orphan string
	err = r.pool.QueryRow(ctx, `
		SELECT ev.id
		FROM evidence ev
		LEFT JOIN entities e ON e.id = ev.entity_id
		WHERE e.id IS NULL
		LIMIT 1`,
	).Scan(&orphan)
	if err == nil {
		return appErrors.RegistryCorrupted(
			fmt.Sprintf("evidence row %s references a missing entity", orphan))
	}
	if err != pgx.ErrNoRows {
		return appErrors.Wrap(err, appErrors.CodeDBQueryError, "integrity check failed")
	}

	return nil
}
