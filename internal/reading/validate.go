package reading

import (
	"github.com/antzucaro/matchr"

	"github.com/daideguchi/yomihosei/internal/kana"
	"github.com/daideguchi/yomihosei/internal/lexicon"
	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
)

// RejectReason identifies why a correction was refused. Reasons feed
// the audit trail and metrics labels, so values are stable strings.
type RejectReason string

const (
	RejectNone           RejectReason = ""
	RejectEmptyReading   RejectReason = "empty_reading"
	RejectNotKana        RejectReason = "not_kana"
	RejectForbidden      RejectReason = "forbidden_reading"
	RejectInconsistent   RejectReason = "inconsistent_reading"
	RejectMoraDrift      RejectReason = "mora_drift"
	RejectLowConfidence  RejectReason = "low_confidence"
	RejectUnknownSurface RejectReason = "unknown_surface"
)

// ReadingMatcher decides whether a proposed reading is consistent with
// one of the readings the pipeline already believes in.
type ReadingMatcher interface {
	Matches(proposed, known string) bool
}

// ExactMatcher accepts only normalized-equal readings.
type ExactMatcher struct{}

func (ExactMatcher) Matches(proposed, known string) bool {
	return proposed == known
}

// FuzzyMatcher accepts readings within a Jaro-Winkler similarity
// threshold, so corrections that fix one mora of a long reading still
// count as consistent with the baseline they correct.
type FuzzyMatcher struct {
	// Threshold in [0,1]; zero means DefaultFuzzyThreshold.
	Threshold float64
}

// DefaultFuzzyThreshold is permissive enough for single-mora fixes in
// readings of four morae and up, while rejecting unrelated readings.
const DefaultFuzzyThreshold = 0.85

func (m FuzzyMatcher) Matches(proposed, known string) bool {
	t := m.Threshold
	if t <= 0 {
		t = DefaultFuzzyThreshold
	}
	if proposed == known {
		return true
	}
	return matchr.JaroWinkler(proposed, known, true) >= t
}

var (
	_ ReadingMatcher = ExactMatcher{}
	_ ReadingMatcher = FuzzyMatcher{}
)

// Validator screens each reasoner decision before any patch is built.
// It trusts nothing: the reasoning service is treated as a noisy
// adversary whose output must independently re-earn acceptance.
type Validator struct {
	lex           *lexicon.Lexicon
	matcher       ReadingMatcher
	minConfidence reasoner.Confidence
	moraTolerance int
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithMatcher replaces the consistency matcher. Default is
// FuzzyMatcher at DefaultFuzzyThreshold.
func WithMatcher(m ReadingMatcher) ValidatorOption {
	return func(v *Validator) { v.matcher = m }
}

// WithMinConfidence sets the confidence floor applied when the
// reasoner reports one. Default is medium.
func WithMinConfidence(c reasoner.Confidence) ValidatorOption {
	return func(v *Validator) { v.minConfidence = c }
}

// WithMoraTolerance sets the allowed mora-count drift between a
// correction and the engine reading it replaces. Negative disables the
// check entirely. Default is 2.
func WithMoraTolerance(n int) ValidatorOption {
	return func(v *Validator) { v.moraTolerance = n }
}

func NewValidator(lex *lexicon.Lexicon, opts ...ValidatorOption) *Validator {
	v := &Validator{
		lex:           lex,
		matcher:       FuzzyMatcher{},
		minConfidence: reasoner.ConfidenceMedium,
		moraTolerance: 2,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check validates one decision against the surface record it targets.
// A nil record means the reasoner named a surface that was never sent;
// that is always rejected. Verdict "ok" is a no-op acceptance: nothing
// to patch, nothing to reject.
func (v *Validator) Check(d reasoner.Decision, rec *SurfaceRecord) RejectReason {
	if rec == nil {
		return RejectUnknownSurface
	}
	if d.Verdict != reasoner.VerdictNG {
		return RejectNone
	}

	reading := kana.NormalizeReading(d.CorrectedReading)
	if reading == "" {
		return RejectEmptyReading
	}
	if !kana.IsKatakanaReading(reading) {
		return RejectNotKana
	}
	if v.lex != nil && v.lex.ForbiddenReading(reading) {
		return RejectForbidden
	}
	if !v.consistent(reading, rec) {
		return RejectInconsistent
	}
	if !v.withinMoraTolerance(reading, rec) {
		return RejectMoraDrift
	}
	if d.Confidence != reasoner.ConfidenceUnspecified && d.Confidence < v.minConfidence {
		return RejectLowConfidence
	}
	return RejectNone
}

// consistent checks the correction against every reading the pipeline
// already associates with the surface: tokenizer baselines, and the
// hazard lexicon's canonical readings. The correction must match at
// least one of them; a reading related to nothing we know is more
// likely a hallucination than a fix.
func (v *Validator) consistent(reading string, rec *SurfaceRecord) bool {
	for _, b := range rec.BaselineReadings {
		if v.matcher.Matches(reading, b) {
			return true
		}
	}
	if v.lex != nil {
		if h, ok := v.lex.Hazard(rec.Surface); ok {
			if v.matcher.Matches(reading, kana.NormalizeReading(h.Reading)) {
				return true
			}
		}
	}
	return false
}

// withinMoraTolerance bounds how far the correction's length may drift
// from the engine reading it replaces. The first engine sample is the
// representative span length; with no sample the check passes. A
// negative tolerance disables the check.
func (v *Validator) withinMoraTolerance(reading string, rec *SurfaceRecord) bool {
	if v.moraTolerance < 0 {
		return true
	}
	if len(rec.EngineReadings) == 0 {
		return true
	}
	got := kana.CountMorae(reading)
	want := kana.CountMorae(rec.EngineReadings[0])
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return diff <= v.moraTolerance
}
