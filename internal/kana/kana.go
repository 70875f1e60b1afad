// Package kana provides the phonetic string primitives used by the
// reading-correction engine: reading normalization, hiragana/katakana
// conversion, long-vowel handling, mora segmentation, and script
// classification.
//
// All readings are handled internally in katakana. Normalization folds
// half-width katakana to full width, converts hiragana to katakana, and
// strips Japanese punctuation and whitespace, so that two readings from
// different sources (morphological tokenizer vs. speech engine) can be
// compared character by character.
//
// A mora is the smallest phonetic timing unit in Japanese. It is usually a
// single kana character; the small glides ャュョ and small vowels ァィゥェォ
// attach to the preceding character to form one mora (e.g. キョ is one mora).
// The sokuon ッ, the moraic nasal ン, and the long-vowel mark ー each count
// as one mora on their own.
//
// All functions are pure and safe for concurrent use.
package kana

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// strippable characters removed by NormalizeReading: Japanese punctuation,
// ASCII punctuation occasionally leaking into readings, and whitespace.
const strippable = "、。・「」『』（）！？…　 ,.!?'\"()"

// HiraToKata converts every hiragana rune in s to its katakana counterpart.
// Non-hiragana runes are passed through unchanged.
func HiraToKata(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ぁ' && r <= 'ゖ' {
			return r + ('ァ' - 'ぁ')
		}
		return r
	}, s)
}

// KataToHira converts every katakana rune in s to its hiragana counterpart.
// Katakana without a hiragana counterpart (ヴ and beyond) is passed through.
func KataToHira(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ァ' && r <= 'ヶ' {
			return r - ('ァ' - 'ぁ')
		}
		return r
	}, s)
}

// NormalizeReading canonicalizes a phonetic reading for comparison:
//
//  1. Half-width katakana is folded to full width (ｷｮｳ → キョウ).
//  2. Hiragana is converted to katakana (きょう → キョウ).
//  3. Punctuation and whitespace are stripped.
//
// The result contains only katakana, the long-vowel mark ー, and any runes
// that are neither kana nor strippable (left untouched so that malformed
// input stays visible to the caller).
func NormalizeReading(s string) string {
	s = width.Widen.String(s)
	s = HiraToKata(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(strippable, r) || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsKatakanaReading reports whether s consists entirely of katakana runes
// and the long-vowel mark. It is the phonetic-script check applied to
// corrected readings returned by the reasoning service: anything else
// (kanji, Latin, digits, punctuation) is not a pronounceable kana reading.
func IsKatakanaReading(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == 'ー' {
			continue
		}
		if r < 'ァ' || r > 'ヶ' {
			return false
		}
	}
	return true
}

// ContainsNonJapanese reports whether surface contains a Latin letter, a
// digit (half- or full-width), or a symbol outside standard Japanese
// punctuation. Surfaces matching this are the highest mispronunciation
// risk for a statistical speech engine: it must guess how to voice "AI",
// "2024", "Go1.22" and similar.
func ContainsNonJapanese(surface string) bool {
	for _, r := range width.Narrow.String(surface) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return true
		case r >= '0' && r <= '9':
			return true
		case r == '%', r == '&', r == '+', r == '#', r == '@', r == '$':
			return true
		}
	}
	return false
}

// smallToBase maps the small combining kana to their base vowel/glide.
var smallToBase = map[rune]rune{
	'ァ': 'ア', 'ィ': 'イ', 'ゥ': 'ウ', 'ェ': 'エ', 'ォ': 'オ',
	'ャ': 'ヤ', 'ュ': 'ユ', 'ョ': 'ヨ', 'ヮ': 'ワ',
}

// isSmallKana reports whether r is a small combining kana that attaches to
// the preceding character to form a single mora.
func isSmallKana(r rune) bool {
	_, ok := smallToBase[r]
	return ok
}

// SplitMorae segments a normalized katakana reading into morae. Small
// combining kana are merged with their preceding character; ッ, ン and ー
// become standalone morae. A small kana with nothing before it (malformed
// input) is emitted as its own mora rather than dropped.
func SplitMorae(reading string) []string {
	runes := []rune(reading)
	morae := make([]string, 0, len(runes))
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if isSmallKana(r) && len(morae) > 0 {
			morae[len(morae)-1] += string(r)
			continue
		}
		morae = append(morae, string(r))
	}
	return morae
}

// CountMorae returns the number of morae in a normalized katakana reading.
func CountMorae(reading string) int {
	return len(SplitMorae(reading))
}

// Phoneme is the consonant/vowel decomposition of a single mora.
// Special morae use conventional markers: the sokuon ッ is {Consonant:
// "q"}, the moraic nasal ン is {Consonant: "N"}, and the long-vowel mark
// ー carries {Vowel: "-"} (resolved against the preceding mora by callers
// that need the concrete vowel).
type Phoneme struct {
	Consonant string
	Vowel     string
}

// vowelOf maps plain vowel kana to their vowel letter.
var vowelOf = map[rune]string{'ア': "a", 'イ': "i", 'ウ': "u", 'エ': "e", 'オ': "o"}

// kanaRow maps each katakana rune to its consonant and vowel. Built from
// the gojūon table; voiced and semi-voiced rows are distinct consonants.
var kanaRow = buildKanaRows()

func buildKanaRows() map[rune]Phoneme {
	rows := map[string]string{
		"アイウエオ": "", "カキクケコ": "k", "ガギグゲゴ": "g",
		"サシスセソ": "s", "ザジズゼゾ": "z", "タチツテト": "t",
		"ダヂヅデド": "d", "ナニヌネノ": "n", "ハヒフヘホ": "h",
		"バビブベボ": "b", "パピプペポ": "p", "マミムメモ": "m",
		"ラリルレロ": "r",
	}
	vowels := []string{"a", "i", "u", "e", "o"}
	m := make(map[rune]Phoneme, 90)
	for row, cons := range rows {
		for i, r := range []rune(row) {
			m[r] = Phoneme{Consonant: cons, Vowel: vowels[i]}
		}
	}
	// Irregular romanizations keep their row consonant here on purpose:
	// シ(s,i), チ(t,i), ツ(t,u), フ(h,u). The detector only needs row/vowel
	// identity, not IPA accuracy.
	m['ヤ'] = Phoneme{Consonant: "y", Vowel: "a"}
	m['ユ'] = Phoneme{Consonant: "y", Vowel: "u"}
	m['ヨ'] = Phoneme{Consonant: "y", Vowel: "o"}
	m['ワ'] = Phoneme{Consonant: "w", Vowel: "a"}
	m['ヲ'] = Phoneme{Consonant: "w", Vowel: "o"}
	m['ヴ'] = Phoneme{Consonant: "v", Vowel: "u"}
	m['ン'] = Phoneme{Consonant: "N"}
	m['ッ'] = Phoneme{Consonant: "q"}
	return m
}

// Decompose returns the consonant/vowel decomposition of a single mora.
// For combined morae (キョ, シャ, ティ …) the consonant comes from the
// leading character plus a glide marker, and the vowel from the small kana.
// Unknown runes yield a zero Phoneme.
func Decompose(mora string) Phoneme {
	runes := []rune(mora)
	if len(runes) == 0 {
		return Phoneme{}
	}
	if runes[0] == 'ー' {
		return Phoneme{Vowel: "-"}
	}
	base := kanaRow[runes[0]]
	if len(runes) == 1 {
		return base
	}
	small, ok := smallToBase[runes[len(runes)-1]]
	if !ok {
		return base
	}
	sp := kanaRow[small]
	cons := base.Consonant
	if sp.Consonant == "y" {
		cons += "y"
	}
	return Phoneme{Consonant: cons, Vowel: sp.Vowel}
}

// CollapseLongVowels removes long-vowel content from a mora sequence so
// that vowel-length disagreements compare equal: the ー mark is dropped,
// and a pure-vowel mora that prolongs the preceding mora's vowel is
// dropped. Prolonging pairs are same-vowel repetition (オオ), ウ after an
// o-vowel (コウ → コ), and イ after an e-vowel (ケイ → ケ).
func CollapseLongVowels(morae []string) []string {
	out := make([]string, 0, len(morae))
	for _, m := range morae {
		if m == "ー" {
			continue
		}
		if rs := []rune(m); len(rs) == 1 && len(out) > 0 {
			if v, isVowel := vowelOf[rs[0]]; isVowel {
				prev := Decompose(out[len(out)-1]).Vowel
				if v == prev || (v == "u" && prev == "o") || (v == "i" && prev == "e") {
					continue
				}
			}
		}
		out = append(out, m)
	}
	return out
}
