package resilience

import (
	"context"

	"github.com/daideguchi/yomihosei/pkg/provider/speech"
)

// SpeechFallback implements [speech.Engine] with automatic failover across
// multiple speech-engine endpoints. Accent queries are read-only on the
// engine side, so retrying the same text against a secondary endpoint is
// always safe. Each endpoint has its own circuit breaker.
type SpeechFallback struct {
	group *FallbackGroup[speech.Engine]
}

// Compile-time interface assertion.
var _ speech.Engine = (*SpeechFallback)(nil)

// NewSpeechFallback creates a [SpeechFallback] with primary as the preferred
// endpoint.
func NewSpeechFallback(primary speech.Engine, primaryName string, cfg FallbackConfig) *SpeechFallback {
	return &SpeechFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional speech engine as a fallback.
func (f *SpeechFallback) AddFallback(name string, engine speech.Engine) {
	f.group.AddFallback(name, engine)
}

// AudioQuery returns the synthesis plan from the first healthy endpoint.
func (f *SpeechFallback) AudioQuery(ctx context.Context, text string, speaker int) (*speech.AudioQuery, error) {
	return ExecuteWithResult(f.group, func(e speech.Engine) (*speech.AudioQuery, error) {
		return e.AudioQuery(ctx, text, speaker)
	})
}
