// Package speech defines the Engine interface for statistical
// text-to-speech backends and the mora-structured accent representation
// they produce.
//
// The reading-correction engine consumes a speech engine bidirectionally:
// it asks for the engine's synthesis plan ([AudioQuery]) for a block of
// narration text, reads the engine's own phonetic reading out of the plan
// (mora texts), and — after corrections are validated — rewrites
// contiguous mora spans in place. The displayed narration text is never
// touched; only the phonetic plan changes.
//
// Implementations must be safe for concurrent use.
package speech

import "context"

// Engine is the abstraction over a TTS engine's query API. Waveform
// synthesis itself is out of scope here: the correction engine only needs
// the accent representation, and the surrounding orchestration feeds the
// patched query back to the engine for synthesis.
type Engine interface {
	// AudioQuery returns the engine's synthesis plan for text using the
	// given speaker style. The returned query is owned by the caller and
	// may be mutated freely.
	AudioQuery(ctx context.Context, text string, speaker int) (*AudioQuery, error)
}
