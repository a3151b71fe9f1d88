package consolidate

import (
	"strings"
)

// Detector decides whether a proposed description contradicts an existing one.
// False negatives are safe (descriptions merge); false positives are safe too
// (flagged for review, nothing overwritten), so implementations may stay coarse.
type Detector interface {
	Contradicts(existing, proposed string) bool
}

// KeywordDetector is the default strategy: paired opposite-meaning keyword
// sets. If one side of a pair appears in the existing text and the other side
// in the proposed text, the pair fires.
type KeywordDetector struct {
	pairs [][2][]string
}

func NewKeywordDetector() *KeywordDetector {
	return &KeywordDetector{
		pairs: [][2][]string{
			{{"loves", "love"}, {"hates", "hate"}},
			{{"alive", "living"}, {"dead", "deceased", "died"}},
			{{"loyal", "faithful"}, {"treacherous", "traitor", "disloyal"}},
			{{"friend", "ally"}, {"enemy", "foe", "rival"}},
			{{"kind", "gentle"}, {"cruel", "vicious"}},
			{{"honest", "truthful"}, {"deceitful", "liar", "dishonest"}},
			{{"brave", "courageous"}, {"cowardly", "craven"}},
			{{"trusting", "trustful"}, {"suspicious", "distrustful", "hateful"}},
			{{"rich", "wealthy"}, {"poor", "destitute"}},
		},
	}
}

func (d *KeywordDetector) Contradicts(existing, proposed string) bool {
	a := words(existing)
	b := words(proposed)
	for _, pair := range d.pairs {
		if (hasAny(a, pair[0]) && hasAny(b, pair[1])) ||
			(hasAny(a, pair[1]) && hasAny(b, pair[0])) {
			return true
		}
	}
	return false
}

func words(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		out[w] = true
	}
	return out
}

func hasAny(set map[string]bool, keys []string) bool {
	for _, k := range keys {
		if set[k] {
			return true
		}
	}
	return false
}
