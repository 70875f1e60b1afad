// Package tokenizer defines the Tokenizer interface for Japanese
// morphological analysis backends.
//
// A tokenizer splits narration text into morphemes and supplies the
// baseline phonetic reading for each one. The reading-correction engine
// consumes this as an external capability: it compares the tokenizer's
// reading against the speech engine's own reading to find tokens at risk
// of mispronunciation. No further contract is placed on the analyzer's
// internal behaviour or dictionary.
//
// Implementations must be safe for concurrent use.
package tokenizer

// Morpheme is one morphological unit of the input text.
type Morpheme struct {
	// Surface is the literal text of the morpheme as it appears in the
	// narration. Never modified by any downstream stage.
	Surface string

	// Reading is the tokenizer's katakana reading guess for Surface.
	// Empty when the dictionary has no reading (unknown words, symbols).
	Reading string

	// BaseForm is the dictionary form of the morpheme, when known.
	BaseForm string

	// POS holds the part-of-speech feature hierarchy, most general first
	// (e.g. ["名詞", "固有名詞", "地域", "一般"]). May be empty.
	POS []string

	// Start is the rune offset of Surface within the analyzed text.
	Start int
}

// Tokenizer is the abstraction over a morphological analyzer.
type Tokenizer interface {
	// Tokenize analyzes text and returns its morphemes in order.
	// The concatenation of all Surface fields equals text with no gaps
	// for analyzers that segment exhaustively; callers must not rely on
	// that for analyzers that drop whitespace.
	Tokenize(text string) ([]Morpheme, error)
}
