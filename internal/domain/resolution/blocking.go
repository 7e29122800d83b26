// Package resolution implements the candidate blocking index, the weighted
// similarity scorer, and the complete-linkage merge engine that together
// decide which entity a mention belongs to.
package resolution

import (
	"sort"

	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/types/common"
)

// BlockKey is the primary blocking key. Mentions only score against
// entities sharing a key, which keeps candidate sets small without full
// pairwise comparison.
type BlockKey struct {
	Prefix  string
	Country string
	Kind    mention.EntityKind
}

// Index is the two-level blocking index. The primary index blocks on
// prefix+country+type; the alias bridge maps every normalized alias key
// directly to its entities, so a mention whose normal form matches a known
// alias always finds that entity even when hints disagree; the prefix
// fallback serves mentions missing country or type hints.
//
// Index entries are never removed. After an entity-to-entity merge the
// loser's entries go stale; callers map candidate IDs through the merge
// engine's union-find before use, so stale IDs cost a lookup, not
// correctness.
//
// Index is not safe for concurrent mutation; the merge engine is the only
// writer.
type Index struct {
	prefixLen    int
	candidateCap int

	byKey      map[BlockKey]map[common.ID]bool
	byPrefix   map[string]map[common.ID]bool
	byAliasKey map[mention.NormalizedKey]map[common.ID]bool
}

// NewIndex returns an empty index. prefixLen is the number of leading key
// characters used for blocking; candidateCap bounds the candidate set
// returned per lookup.
func NewIndex(prefixLen, candidateCap int) *Index {
	return &Index{
		prefixLen:    prefixLen,
		candidateCap: candidateCap,
		byKey:        map[BlockKey]map[common.ID]bool{},
		byPrefix:     map[string]map[common.ID]bool{},
		byAliasKey:   map[mention.NormalizedKey]map[common.ID]bool{},
	}
}

// Add indexes one normalized alias key for an entity under the entity's
// current country and type.
func (x *Index) Add(entityID common.ID, key mention.NormalizedKey, country string, kind mention.EntityKind) {
	if key == "" || entityID == "" {
		return
	}
	prefix := x.prefix(string(key))

	bk := BlockKey{Prefix: prefix, Country: country, Kind: kind}
	if x.byKey[bk] == nil {
		x.byKey[bk] = map[common.ID]bool{}
	}
	x.byKey[bk][entityID] = true

	if x.byPrefix[prefix] == nil {
		x.byPrefix[prefix] = map[common.ID]bool{}
	}
	x.byPrefix[prefix][entityID] = true

	if x.byAliasKey[key] == nil {
		x.byAliasKey[key] = map[common.ID]bool{}
	}
	x.byAliasKey[key][entityID] = true
}

// Candidates returns the capped, ID-sorted candidate set for a normalized
// mention. The alias bridge is consulted first (an exact alias-key hit is
// the strongest blocking signal), then the primary key, then the prefix
// fallback when either hint is missing.
func (x *Index) Candidates(nz mention.Normalized, country string, kind mention.EntityKind) []common.ID {
	seen := map[common.ID]bool{}

	for id := range x.byAliasKey[nz.Key] {
		seen[id] = true
	}

	prefix := x.prefix(string(nz.Key))
	if country != "" && kind != mention.KindUnknown && kind != "" {
		for id := range x.byKey[BlockKey{Prefix: prefix, Country: country, Kind: kind}] {
			seen[id] = true
		}
	} else {
		for id := range x.byPrefix[prefix] {
			seen[id] = true
		}
	}

	out := make([]common.ID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if x.candidateCap > 0 && len(out) > x.candidateCap {
		out = out[:x.candidateCap]
	}
	return out
}

// BucketKey renders the primary blocking key of a mention as a stable
// string, used by the batch layer to partition and order work units.
func (x *Index) BucketKey(nz mention.Normalized, country string, kind mention.EntityKind) string {
	if kind == "" {
		kind = mention.KindUnknown
	}
	if country == "" {
		country = "unknown"
	}
	return x.prefix(string(nz.Key)) + "|" + country + "|" + string(kind)
}

// HasAliasKey reports whether any entity is indexed under the exact key.
func (x *Index) HasAliasKey(key mention.NormalizedKey) bool {
	return len(x.byAliasKey[key]) > 0
}

// prefix is rune-safe; degraded keys can carry multi-byte characters.
func (x *Index) prefix(key string) string {
	if x.prefixLen <= 0 {
		return key
	}
	r := []rune(key)
	if len(r) <= x.prefixLen {
		return key
	}
	return string(r[:x.prefixLen])
}
