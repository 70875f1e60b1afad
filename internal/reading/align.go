package reading

import (
	"strings"

	"github.com/daideguchi/yomihosei/internal/kana"
	"github.com/daideguchi/yomihosei/pkg/provider/speech"
	"github.com/daideguchi/yomihosei/pkg/provider/tokenizer"
)

const (
	// alignWindow is how far (in morae) the aligner searches around the
	// expected boundary when anchoring a token against the engine's mora
	// stream. Reading disagreements shift boundaries by a few morae at
	// most; a wide window would invite false anchors on repeated kana.
	alignWindow = 4

	// anchorMorae is how many leading morae of the next token's reading
	// form the anchor needle.
	anchorMorae = 2

	// contextRunes is the size of the context window captured on each
	// side of a token.
	contextRunes = 12
)

// AlignBlock walks one block's morphemes against the speech engine's
// accent representation and produces a Token per reading-carrying
// morpheme, each with its engine reading and mora span attached.
//
// The engine does not expose token boundaries, so the aligner
// reconstructs a best-effort character-to-mora boundary map: each
// token's span is anchored by locating the next token's baseline reading
// in the mora stream near the expected position. When the anchor is
// found the span is treated as verified (Aligned = true) even if the
// span's reading differs from the baseline — a differing reading inside
// a verified span is exactly the disagreement the pipeline exists to
// catch. When no anchor is found the aligner falls back to the
// baseline's mora count and marks the occurrence unaligned; patching
// such occurrences later uses the length-clip fallback.
func AlignBlock(block int, blockText string, morphemes []tokenizer.Morpheme, query *speech.AudioQuery) []Token {
	if query == nil || len(morphemes) == 0 {
		return nil
	}

	morae := make([]string, 0, query.MoraCount())
	for _, t := range query.MoraTexts() {
		morae = append(morae, kana.NormalizeReading(t))
	}

	textRunes := []rune(blockText)
	tokens := make([]Token, 0, len(morphemes))
	cursor := 0

	for i, m := range morphemes {
		baseline := baselineReading(m)
		if baseline == "" {
			// Punctuation and symbols carry no reading and no morae.
			continue
		}
		if cursor >= len(morae) {
			break
		}

		expected := len(kana.SplitMorae(baseline))
		end, aligned := findBoundary(morae, cursor, expected, nextNeedle(morphemes[i+1:]))

		engine := strings.Join(morae[cursor:end], "")
		tokens = append(tokens, Token{
			Surface:         m.Surface,
			BaselineReading: baseline,
			EngineReading:   engine,
			Occ: Occurrence{
				Block:     block,
				MoraStart: cursor,
				MoraLen:   end - cursor,
				CharStart: m.Start,
				Aligned:   aligned,
			},
			Context: contextWindow(textRunes, m.Start, len([]rune(m.Surface))),
		})
		cursor = end
	}
	return tokens
}

// baselineReading returns the morpheme's normalized katakana reading,
// falling back to the surface itself when the surface is already kana
// (the tokenizer omits readings for some kana-only tokens and unknowns).
func baselineReading(m tokenizer.Morpheme) string {
	if r := kana.NormalizeReading(m.Reading); r != "" {
		return r
	}
	if s := kana.NormalizeReading(m.Surface); kana.IsKatakanaReading(s) {
		return s
	}
	return ""
}

// nextNeedle returns the anchor needle for the first following morpheme
// that carries a reading: its leading morae, up to anchorMorae.
func nextNeedle(rest []tokenizer.Morpheme) []string {
	for _, m := range rest {
		r := baselineReading(m)
		if r == "" {
			continue
		}
		needle := kana.SplitMorae(r)
		if len(needle) > anchorMorae {
			needle = needle[:anchorMorae]
		}
		return needle
	}
	return nil
}

// findBoundary locates where the current token's mora span ends.
//
// With no following token the span runs to the end of the stream and is
// considered verified. Otherwise the next token's needle is searched in
// a window around cursor+expected; the earliest hit wins. No hit means
// the boundary map has broken down at this token: fall back to the
// expected length, clipped, unverified.
func findBoundary(morae []string, cursor, expected int, needle []string) (end int, aligned bool) {
	if len(needle) == 0 {
		return len(morae), true
	}

	lo := cursor + expected - alignWindow
	if lo < cursor {
		lo = cursor
	}
	hi := cursor + expected + alignWindow
	if hi > len(morae) {
		hi = len(morae)
	}

	for p := lo; p < hi; p++ {
		if moraeHasPrefix(morae, p, needle) {
			return p, true
		}
	}

	end = cursor + expected
	if end > len(morae) {
		end = len(morae)
	}
	return end, false
}

func moraeHasPrefix(morae []string, at int, needle []string) bool {
	if at+len(needle) > len(morae) {
		return false
	}
	for i, n := range needle {
		if morae[at+i] != n {
			return false
		}
	}
	return true
}

// contextWindow extracts up to contextRunes runes on each side of the
// token, marking the token itself with ⟨⟩ so the reasoning service sees
// which occurrence is meant.
func contextWindow(text []rune, start, length int) string {
	if start < 0 || start > len(text) {
		return ""
	}
	end := start + length
	if end > len(text) {
		end = len(text)
	}
	lo := start - contextRunes
	if lo < 0 {
		lo = 0
	}
	hi := end + contextRunes
	if hi > len(text) {
		hi = len(text)
	}
	return string(text[lo:start]) + "⟨" + string(text[start:end]) + "⟩" + string(text[end:hi])
}
