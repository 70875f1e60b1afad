// Package mock provides a test double for the tokenizer.Tokenizer
// interface.
//
// Use Tokenizer in unit tests to feed controlled morpheme streams without
// loading a real dictionary. All fields are safe to set before calling any
// method; mutating them during a concurrent call is the caller's
// responsibility.
package mock

import (
	"sync"

	"github.com/daideguchi/yomihosei/pkg/provider/tokenizer"
)

// Tokenizer is a mock implementation of tokenizer.Tokenizer.
// Zero values cause Tokenize to return (nil, nil). Set Err to inject errors.
type Tokenizer struct {
	mu sync.Mutex

	// Morphemes is returned from every Tokenize call when ByText has no
	// entry for the input.
	Morphemes []tokenizer.Morpheme

	// ByText maps exact input text to the morphemes to return, taking
	// precedence over Morphemes.
	ByText map[string][]tokenizer.Morpheme

	// Err, if non-nil, is returned from Tokenize.
	Err error

	// Calls records every input text passed to Tokenize, in order.
	Calls []string
}

var _ tokenizer.Tokenizer = (*Tokenizer)(nil)

// Tokenize records the call and returns the configured morphemes.
func (m *Tokenizer) Tokenize(text string) ([]tokenizer.Morpheme, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if ms, ok := m.ByText[text]; ok {
		return ms, nil
	}
	return m.Morphemes, nil
}
