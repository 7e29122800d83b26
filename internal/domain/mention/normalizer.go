package mention

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizedKey is the deterministic comparable form of a raw name. It is
// a blocking and scoring key only, never an identity. Two distinct
// organizations can share a key; identity is decided by the merge engine.
type NormalizedKey string

// Normalized carries the two normal forms derived from one raw name plus
// the degradation flag.
type Normalized struct {
	// Key is the fully-normalized form: NFKC, case-folded, punctuation
	// collapsed, legal suffixes stripped as whole tokens, whitespace
	// collapsed. Used for blocking and the exact-match signal.
	Key NormalizedKey

	// Alias is the display normal form: identical pipeline minus the
	// suffix strip. This is the form recorded in an entity's alias set, so
	// "Huawei Technologies Co., Ltd." is remembered as
	// "huawei technologies co ltd", not as its truncated key.
	Alias string

	// Tokens are the whitespace-split tokens of Key, precomputed for the
	// Jaccard signal.
	Tokens []string

	// Degraded reports that deep normalization was inapplicable (no Latin
	// letter or digit survived, e.g. an unmapped script) and the minimal
	// case-fold fallback was used. Degraded mentions proceed with a
	// confidence penalty; they are never dropped.
	Degraded bool
}

// Normalizer canonicalizes raw names. It is a pure value: no state is
// mutated by Normalize, and blocking correctness depends on that: the same
// input must produce the same key on every run.
type Normalizer struct {
	suffixes map[string]bool
	folder   cases.Caser
}

// NewNormalizer builds a Normalizer with the given legal-form suffix set.
// Suffixes are matched as whole tokens only, never mid-token, so "Ltd"
// strips from "Acme Ltd" but leaves "Maltd Trading" alone.
func NewNormalizer(legalSuffixes []string) *Normalizer {
	set := make(map[string]bool, len(legalSuffixes))
	folder := cases.Fold()
	for _, s := range legalSuffixes {
		set[folder.String(strings.TrimSpace(s))] = true
	}
	return &Normalizer{suffixes: set, folder: cases.Fold()}
}

// Normalize canonicalizes raw into its comparable forms. Total: it never
// fails, falling back to a case-folded whitespace-collapsed copy when
// deeper normalization does not apply. Idempotent: feeding the resulting
// Key back through Normalize yields the same Key.
func (n *Normalizer) Normalize(raw string) Normalized {
	// Unicode NFKC first so width/compatibility variants ("ＬＴＤ", "№")
	// collapse before anything token-based runs.
	s := norm.NFKC.String(raw)
	s = n.folder.String(s)
	s = collapsePunct(s)
	s = collapseSpace(s)

	alias := s

	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, tok := range tokens {
		if n.suffixes[tok] {
			continue
		}
		kept = append(kept, tok)
	}
	key := strings.Join(kept, " ")
	if key == "" {
		// The name was nothing but legal-form tokens; keep the alias form
		// so the key stays non-empty and blocking still works.
		key = alias
	}

	degraded := !hasLatinOrDigit(key)

	return Normalized{
		Key:      NormalizedKey(key),
		Alias:    alias,
		Tokens:   strings.Fields(key),
		Degraded: degraded && key != "",
	}
}

// collapsePunct replaces punctuation with single spaces, except periods and
// apostrophes which are dropped outright so dotted forms stay one token:
// "S.p.A." → "spa", "Co., Ltd." → "co ltd", "O'Neill" → "oneill".
func collapsePunct(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case r == '.' || r == '\'' || r == '’':
			// dropped
		default:
			sb.WriteRune(' ')
		}
	}
	return sb.String()
}

// collapseSpace folds runs of whitespace to single spaces and trims.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasLatinOrDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
		if unicode.In(r, unicode.Latin) {
			return true
		}
	}
	return false
}
