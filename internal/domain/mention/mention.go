// Package mention implements the ingestion-side value objects of the
// resolution engine: the immutable Mention record, the deterministic name
// Normalizer, and the table-driven alias/variant generator. All business
// rules that concern a single observed name live here; clustering and
// persistence are handled by separate packages.
package mention

import (
	"fmt"
	"time"

	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
	restypes "github.com/DailyForkCast/osint-foresight-sub003/pkg/types/resolution"
)

// EntityKind is the coarse type hint carried by a mention.
type EntityKind string

const (
	KindOrganization EntityKind = "organization"
	KindCompany      EntityKind = "company"
	KindInstitution  EntityKind = "institution"
	KindPerson       EntityKind = "person"
	KindUnknown      EntityKind = "unknown"
)

// validKinds is the set of type hints accepted at ingestion. Anything else
// is coerced to KindUnknown rather than rejected; the hint only feeds the
// agreement bonus of the scorer.
var validKinds = map[EntityKind]bool{
	KindOrganization: true,
	KindCompany:      true,
	KindInstitution:  true,
	KindPerson:       true,
	KindUnknown:      true,
}

// Mention is one observed name occurrence from one source. It is immutable
// once ingested: the resolver references mentions by ID and never mutates
// them, so a reassignment cannot corrupt the evidence of other entities.
type Mention struct {
	ID           common.ID       `json:"id"`
	SourceID     common.SourceID `json:"source_id"`
	RawName      string          `json:"raw_name"`
	CountryHint  string          `json:"country_hint,omitempty"` // ISO 3166-1 alpha-2, upper-cased
	TypeHint     EntityKind      `json:"type_hint,omitempty"`
	ObservedDate *time.Time      `json:"observed_date,omitempty"`
	AddressHint  string          `json:"address_hint,omitempty"`
	IngestedAt   time.Time       `json:"ingested_at"`
}

// New validates a raw mention DTO and constructs an immutable Mention.
// A missing or empty raw name is the one hard rejection at this boundary
// (ErrCodeMalformedMention); every other field is optional. An unparseable
// observed date degrades to a nil date rather than rejecting the mention,
// since the name itself is still usable evidence.
func New(dto restypes.MentionDTO) (*Mention, error) {
	if dto.RawName == "" || isBlank(dto.RawName) {
		return nil, errors.MalformedMention("raw_name must not be empty").
			WithDetail("source_id=" + dto.SourceID)
	}
	if dto.SourceID == "" {
		return nil, errors.MalformedMention("source_id must not be empty").
			WithDetail(fmt.Sprintf("raw_name=%q", dto.RawName))
	}

	m := &Mention{
		ID:          common.NewID(),
		SourceID:    common.SourceID(dto.SourceID),
		RawName:     dto.RawName,
		CountryHint: normalizeCountry(dto.CountryHint),
		TypeHint:    normalizeKind(dto.TypeHint),
		AddressHint: dto.AddressHint,
		IngestedAt:  time.Now().UTC(),
	}

	if dto.ObservedDate != "" {
		if ts, err := parseObservedDate(dto.ObservedDate); err == nil {
			m.ObservedDate = &ts
		}
	}

	return m, nil
}

// parseObservedDate accepts the ISO-8601 forms collectors actually emit.
func parseObservedDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly, "2006-01"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("mention: unparseable observed date %q", s)
}

func normalizeCountry(c string) string {
	if len(c) != 2 {
		return ""
	}
	out := make([]byte, 2)
	for i := 0; i < 2; i++ {
		ch := c[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch < 'A' || ch > 'Z' {
			return ""
		}
		out[i] = ch
	}
	return string(out)
}

func normalizeKind(t string) EntityKind {
	k := EntityKind(t)
	if t == "" || !validKinds[k] {
		return KindUnknown
	}
	return k
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
