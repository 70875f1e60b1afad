package reading

import (
	"github.com/daideguchi/yomihosei/internal/kana"
	"github.com/daideguchi/yomihosei/internal/lexicon"
)

// RiskClassifier assigns a risk tier to disagreement tokens. It is a
// closed, total function over its rule set: every surface receives
// exactly one tier. Safe for concurrent use — the lexicon is read-only.
type RiskClassifier struct {
	lex *lexicon.Lexicon
}

// NewRiskClassifier returns a classifier over the given lexicon.
func NewRiskClassifier(lex *lexicon.Lexicon) *RiskClassifier {
	return &RiskClassifier{lex: lex}
}

// Classify returns the tier for surface. Rules in fixed priority order,
// first match wins:
//
//  1. Forbidden-term list → TierC. The caller must drop the token from
//     all further processing.
//  2. Latin letters, digits, or non-Japanese symbols → TierA.
//  3. Hazard-lexicon match → TierA.
//  4. Otherwise → TierB.
// A nil lexicon disables rules 1 and 3.
func (c *RiskClassifier) Classify(surface string) Tier {
	if c.lex != nil && c.lex.Forbidden(surface) {
		return TierC
	}
	if kana.ContainsNonJapanese(surface) {
		return TierA
	}
	if c.lex != nil {
		if _, ok := c.lex.Hazard(surface); ok {
			return TierA
		}
	}
	return TierB
}

// HazardTags returns the hazard-lexicon tags for surface, nil when it is
// not a hazard entry.
func (c *RiskClassifier) HazardTags(surface string) []string {
	if c.lex == nil {
		return nil
	}
	if e, ok := c.lex.Hazard(surface); ok {
		return e.Tags
	}
	return nil
}
