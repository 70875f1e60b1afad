// Package kagome implements tokenizer.Tokenizer using the pure-Go kagome
// morphological analyzer with the IPA dictionary.
//
// The IPA dictionary ships readings in katakana in feature slot 7, which
// is exactly the baseline reading the correction engine needs. Unknown
// words (OOV) carry no reading and are surfaced with Reading == "".
package kagome

import (
	"fmt"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	kgm "github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/daideguchi/yomihosei/pkg/provider/tokenizer"
)

// Tokenizer wraps a kagome tokenizer instance. Construction loads the IPA
// dictionary (tens of MB, lazily mmapped by kagome); create one Tokenizer
// per process and share it — it is safe for concurrent use.
type Tokenizer struct {
	t *kgm.Tokenizer
}

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

// New creates a Tokenizer backed by kagome with the IPA dictionary.
func New() (*Tokenizer, error) {
	t, err := kgm.New(ipa.Dict(), kgm.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("kagome tokenizer: init: %w", err)
	}
	return &Tokenizer{t: t}, nil
}

// Tokenize analyzes text in normal segmentation mode.
func (k *Tokenizer) Tokenize(text string) ([]tokenizer.Morpheme, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	tokens := k.t.Tokenize(text)
	morphemes := make([]tokenizer.Morpheme, 0, len(tokens))
	runeOffset := 0
	for _, tok := range tokens {
		m := tokenizer.Morpheme{
			Surface: tok.Surface,
			Start:   runeOffset,
		}
		runeOffset += len([]rune(tok.Surface))

		if reading, ok := tok.Reading(); ok && reading != "*" {
			m.Reading = reading
		}
		if base, ok := tok.BaseForm(); ok && base != "*" {
			m.BaseForm = base
		}
		m.POS = tok.POS()

		morphemes = append(morphemes, m)
	}
	return morphemes, nil
}
