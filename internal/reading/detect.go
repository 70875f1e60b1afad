package reading

import (
	"errors"

	"github.com/daideguchi/yomihosei/internal/kana"
)

// ErrEmptyReading is returned by DetectVerdict when either reading is
// empty after normalization. Callers treat the token as a trivial match
// (it cannot be corrected without data) and log the condition; the run
// continues.
var ErrEmptyReading = errors.New("reading: empty reading")

// DetectVerdict compares a token's baseline reading against the speech
// engine's reading and classifies the difference. Both inputs may be raw
// (hiragana, half-width, punctuated); normalization happens here.
//
// The absorption rules, in order:
//
//  1. Equal after normalization.
//  2. Equal after collapsing long vowels in both (コウコウ vs コーコー).
//  3. Same mora count with exactly one differing mora whose phonemes
//     overlap — a single-mora slip such as キョウ vs キョオ. A mora pair
//     differing in both consonant and vowel (ツ vs カ) is a real
//     disagreement, not a slip.
//
// Everything else is a disagreement. The function is pure.
func DetectVerdict(baseline, engine string) (Verdict, error) {
	b := kana.NormalizeReading(baseline)
	e := kana.NormalizeReading(engine)
	if b == "" || e == "" {
		return VerdictTrivialMatch, ErrEmptyReading
	}

	if b == e {
		return VerdictTrivialMatch, nil
	}

	bm := kana.SplitMorae(b)
	em := kana.SplitMorae(e)

	if equalMorae(kana.CollapseLongVowels(bm), kana.CollapseLongVowels(em)) {
		return VerdictTrivialMatch, nil
	}

	if isSingleMoraSlip(bm, em) {
		return VerdictTrivialMatch, nil
	}

	return VerdictDisagreement, nil
}

func equalMorae(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// isSingleMoraSlip reports whether the two mora sequences have equal
// length and differ in exactly one position, and that position's morae
// share a consonant or a vowel. Sharing one phoneme component keeps the
// slip acoustically minor (オ/ウ, キ/ギ); when both components differ
// the token genuinely sounds different.
func isSingleMoraSlip(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	diffAt := -1
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if diffAt >= 0 {
			return false
		}
		diffAt = i
	}
	if diffAt < 0 {
		return false
	}
	pa := kana.Decompose(a[diffAt])
	pb := kana.Decompose(b[diffAt])
	return pa.Consonant == pb.Consonant || pa.Vowel == pb.Vowel
}
