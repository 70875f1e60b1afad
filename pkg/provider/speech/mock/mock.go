// Package mock provides a test double for the speech.Engine interface,
// plus helpers for building accent representations from kana literals so
// tests do not need to hand-write mora structs.
package mock

import (
	"context"
	"sync"

	"github.com/daideguchi/yomihosei/internal/kana"
	"github.com/daideguchi/yomihosei/pkg/provider/speech"
)

// QueryCall records a single invocation of AudioQuery.
type QueryCall struct {
	Ctx     context.Context
	Text    string
	Speaker int
}

// Engine is a mock implementation of speech.Engine.
// Zero values cause AudioQuery to return (nil, nil). Set Err to inject
// errors.
type Engine struct {
	mu sync.Mutex

	// Query is returned (cloned) from every AudioQuery call when ByText
	// has no entry for the input text.
	Query *speech.AudioQuery

	// ByText maps exact input text to the query to return, taking
	// precedence over Query. Returned values are cloned per call.
	ByText map[string]*speech.AudioQuery

	// Err, if non-nil, is returned from AudioQuery.
	Err error

	// Calls records every invocation of AudioQuery, in order.
	Calls []QueryCall
}

var _ speech.Engine = (*Engine)(nil)

// AudioQuery records the call and returns a clone of the configured query.
func (e *Engine) AudioQuery(ctx context.Context, text string, speaker int) (*speech.AudioQuery, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, QueryCall{Ctx: ctx, Text: text, Speaker: speaker})
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	if q, ok := e.ByText[text]; ok {
		return q.Clone(), nil
	}
	if e.Query == nil {
		return nil, nil
	}
	return e.Query.Clone(), nil
}

// QueryFromKana builds an AudioQuery whose accent phrases contain exactly
// the morae of the given kana readings, one accent phrase per reading.
// Timing and pitch fields get fixed nonzero values so that patched and
// unpatched morae are distinguishable in assertions.
func QueryFromKana(readings ...string) *speech.AudioQuery {
	q := &speech.AudioQuery{
		SpeedScale:         1.0,
		PitchScale:         0,
		IntonationScale:    1.0,
		VolumeScale:        1.0,
		OutputSamplingRate: 24000,
	}
	for _, r := range readings {
		var ap speech.AccentPhrase
		ap.Accent = 1
		for _, m := range kana.SplitMorae(kana.NormalizeReading(r)) {
			ph := kana.Decompose(m)
			mora := speech.Mora{
				Text:        m,
				Vowel:       ph.Vowel,
				VowelLength: 0.1,
				Pitch:       5.0,
			}
			if ph.Consonant != "" {
				c := ph.Consonant
				cl := 0.05
				mora.Consonant = &c
				mora.ConsonantLength = &cl
			}
			ap.Moras = append(ap.Moras, mora)
		}
		q.AccentPhrases = append(q.AccentPhrases, ap)
	}
	return q
}
