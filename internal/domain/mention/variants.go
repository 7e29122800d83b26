package mention

import (
	"sort"
	"strings"
)

// VariantMethod names the generation method of a variant, recorded for
// explainability: every exported variant can be traced back to the table or
// rule that produced it.
type VariantMethod string

const (
	MethodNormalized      VariantMethod = "normalized"
	MethodSuffixStripped  VariantMethod = "suffix_stripped"
	MethodAcronymExpand   VariantMethod = "acronym_expansion"
	MethodAcronymContract VariantMethod = "acronym_contraction"
	MethodTransliteration VariantMethod = "transliteration"
)

// Variant is one generated alternate form of a raw name.
type Variant struct {
	Value  string        `json:"value"`
	Method VariantMethod `json:"method"`
}

// VariantGenerator produces deterministic alternate name forms used both by
// the alias-bridge index and for explainability. It is strictly finite and
// table-driven: it never fabricates plausible-looking but unverified
// variants. An input absent from every table yields only its own normal
// forms, and an empty input yields nothing.
type VariantGenerator struct {
	normalizer *Normalizer

	// acronyms maps normalized acronym → normalized expansion. Curated
	// configuration, never inferred.
	acronyms map[string]string

	// expansions is the reverse index of acronyms.
	expansions map[string]string

	// transliterations maps a normalized source-script form to its
	// romanized form ("华为" → "huawei").
	transliterations map[string]string
}

// NewVariantGenerator builds a generator over the given lookup tables. The
// tables are normalized through n at construction so lookups are
// insensitive to case and punctuation differences in the configuration.
func NewVariantGenerator(n *Normalizer, acronyms, transliterations map[string]string) *VariantGenerator {
	g := &VariantGenerator{
		normalizer:       n,
		acronyms:         make(map[string]string, len(acronyms)),
		expansions:       make(map[string]string, len(acronyms)),
		transliterations: make(map[string]string, len(transliterations)),
	}
	for k, v := range acronyms {
		nk := string(n.Normalize(k).Key)
		nv := string(n.Normalize(v).Key)
		if nk == "" || nv == "" {
			continue
		}
		g.acronyms[nk] = nv
		g.expansions[nv] = nk
	}
	for k, v := range transliterations {
		nk := strings.TrimSpace(strings.ToLower(k))
		nv := string(n.Normalize(v).Key)
		if nk == "" || nv == "" {
			continue
		}
		g.transliterations[nk] = nv
	}
	return g
}

// Variants returns every table-backed alternate form of raw, each tagged
// with its generation method, sorted by value for deterministic output.
// The raw form itself is not repeated in the result.
func (g *VariantGenerator) Variants(raw string) []Variant {
	if isBlank(raw) {
		return nil
	}

	nz := g.normalizer.Normalize(raw)
	seen := map[string]bool{}
	var out []Variant

	add := func(value string, method VariantMethod) {
		if value == "" || seen[value] {
			return
		}
		seen[value] = true
		out = append(out, Variant{Value: value, Method: method})
	}

	// Normal forms: when the suffix strip changed anything, both the
	// display alias and the stripped key are genuine rule-derived variants
	// of each other.
	if nz.Alias != string(nz.Key) {
		add(nz.Alias, MethodNormalized)
		add(string(nz.Key), MethodSuffixStripped)
	} else {
		seen[string(nz.Key)] = true
	}

	// Acronym bridge, both directions.
	if exp, ok := g.acronyms[string(nz.Key)]; ok {
		add(exp, MethodAcronymExpand)
	}
	if acr, ok := g.expansions[string(nz.Key)]; ok {
		add(acr, MethodAcronymContract)
	}

	// Script bridge. Lookup uses the lightly-normalized raw form because a
	// non-Latin name survives the pipeline unchanged apart from folding.
	translitKey := strings.TrimSpace(strings.ToLower(raw))
	if rom, ok := g.transliterations[translitKey]; ok {
		add(rom, MethodTransliteration)
	}
	if rom, ok := g.transliterations[string(nz.Key)]; ok {
		add(rom, MethodTransliteration)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].Method < out[j].Method
	})
	return out
}
