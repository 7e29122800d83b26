package resolution

import (
	"github.com/DailyForkCast/osint-foresight-sub003/internal/domain/mention"
	"github.com/DailyForkCast/osint-foresight-sub003/pkg/errors"
)

// Weights are the signal weights of the similarity score. They must sum
// to 1.0 so the composite stays in [0,1].
type Weights struct {
	ExactMatch float64
	Jaccard    float64
	CharRatio  float64
	Agreement  float64
}

// Validate rejects weights that do not sum to 1 within float tolerance.
func (w Weights) Validate() error {
	sum := w.ExactMatch + w.Jaccard + w.CharRatio + w.Agreement
	if sum < 0.999 || sum > 1.001 {
		return errors.InvalidParam("similarity weights must sum to 1.0")
	}
	return nil
}

// Attributes carry the non-name signals of one comparison side.
type Attributes struct {
	Country string
	Kind    mention.EntityKind
}

// Scorer computes the weighted composite similarity between two normalized
// names. It is stateless and safe for concurrent use.
type Scorer struct {
	weights         Weights
	degradedPenalty float64
}

// NewScorer validates the weights and returns a scorer. degradedPenalty
// multiplies the composite when either side carries a degraded normal
// form, so shallow-normalized names cannot reach the auto-merge band on
// string similarity alone.
func NewScorer(w Weights, degradedPenalty float64) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if degradedPenalty <= 0 || degradedPenalty > 1 {
		return nil, errors.InvalidParam("degraded penalty must be in (0,1]")
	}
	return &Scorer{weights: w, degradedPenalty: degradedPenalty}, nil
}

// Score returns the composite similarity in [0,1].
func (s *Scorer) Score(a, b mention.Normalized, attrA, attrB Attributes) float64 {
	exact := 0.0
	if a.Key != "" && a.Key == b.Key {
		exact = 1.0
	}

	score := s.weights.ExactMatch*exact +
		s.weights.Jaccard*jaccard(a.Tokens, b.Tokens) +
		s.weights.CharRatio*ratcliffObershelp(string(a.Key), string(b.Key)) +
		s.weights.Agreement*agreement(attrA, attrB)

	if a.Degraded || b.Degraded {
		score *= s.degradedPenalty
	}
	if score > 1 {
		score = 1
	}
	return score
}

// jaccard is token-set overlap: |A∩B| / |A∪B|.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, tok := range a {
		set[tok] = true
	}
	inter := 0
	bset := make(map[string]bool, len(b))
	for _, tok := range b {
		if bset[tok] {
			continue
		}
		bset[tok] = true
		if set[tok] {
			inter++
		}
	}
	union := len(set) + len(bset) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// agreement scores country and type hint consistency. Each axis
// contributes half: 1 when both sides are known and equal, 0 when both
// are known and differ, 0.5 when either side is unknown.
func agreement(a, b Attributes) float64 {
	return 0.5*axisAgreement(a.Country, b.Country) +
		0.5*axisAgreement(kindAxis(a.Kind), kindAxis(b.Kind))
}

func kindAxis(k mention.EntityKind) string {
	if k == "" || k == mention.KindUnknown {
		return ""
	}
	return string(k)
}

func axisAgreement(a, b string) float64 {
	switch {
	case a == "" || b == "":
		return 0.5
	case a == b:
		return 1
	default:
		return 0
	}
}

// ratcliffObershelp is the Ratcliff/Obershelp similarity: twice the total
// length of recursively matched longest common substrings over the summed
// string lengths. An explicit stack replaces the recursion.
func ratcliffObershelp(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)

	type span struct{ aLo, aHi, bLo, bHi int }
	stack := []span{{0, len(ra), 0, len(rb)}}
	matched := 0
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ai, bi, n := longestCommonSubstring(ra, rb, s.aLo, s.aHi, s.bLo, s.bHi)
		if n == 0 {
			continue
		}
		matched += n
		stack = append(stack,
			span{s.aLo, ai, s.bLo, bi},
			span{ai + n, s.aHi, bi + n, s.bHi},
		)
	}
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

func longestCommonSubstring(a, b []rune, aLo, aHi, bLo, bHi int) (bestA, bestB, bestLen int) {
	// lengths[j] holds the match length ending at b[j-1] for the previous
	// row of a; single-row DP keeps this O(min) space.
	lengths := make([]int, bHi-bLo+1)
	for i := aLo; i < aHi; i++ {
		prev := 0
		for j := bLo; j < bHi; j++ {
			cur := lengths[j-bLo+1]
			if a[i] == b[j] {
				lengths[j-bLo+1] = prev + 1
				if lengths[j-bLo+1] > bestLen {
					bestLen = lengths[j-bLo+1]
					bestA = i - bestLen + 1
					bestB = j - bestLen + 1
				}
			} else {
				lengths[j-bLo+1] = 0
			}
			prev = cur
		}
	}
	return bestA, bestB, bestLen
}
