package reading

import (
	"slices"

	"github.com/daideguchi/yomihosei/internal/kana"
)

const (
	// defaultContextSamples bounds how many distinct context windows a
	// SurfaceRecord keeps, regardless of how often the surface repeats.
	defaultContextSamples = 3

	// defaultEngineSamples bounds how many distinct engine readings a
	// SurfaceRecord keeps.
	defaultEngineSamples = 3
)

// Aggregator collapses per-occurrence disagreement tokens into one
// SurfaceRecord per unique surface across an entire narration. Bounded
// sample fields keep memory independent of repetition count; the
// occurrence list is deliberately unbounded — patch application requires
// every position.
//
// Not safe for concurrent use; each pipeline run owns its own Aggregator.
type Aggregator struct {
	maxContexts      int
	maxEngineSamples int

	records map[string]*SurfaceRecord
	order   []string
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithContextSamples overrides the per-surface context sample cap.
func WithContextSamples(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxContexts = n
		}
	}
}

// WithEngineSamples overrides the per-surface engine-reading sample cap.
func WithEngineSamples(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.maxEngineSamples = n
		}
	}
}

// NewAggregator returns an empty Aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		maxContexts:      defaultContextSamples,
		maxEngineSamples: defaultEngineSamples,
		records:          make(map[string]*SurfaceRecord),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Add folds one disagreement token into its surface's record. tier must
// not be TierC — Tier C tokens are dropped before aggregation and must
// never be stored.
func (a *Aggregator) Add(tok Token, tier Tier, hazardTags []string) {
	rec, ok := a.records[tok.Surface]
	if !ok {
		rec = &SurfaceRecord{
			Surface:     tok.Surface,
			Tier:        tier,
			NonJapanese: kana.ContainsNonJapanese(tok.Surface),
			HazardTags:  hazardTags,
		}
		a.records[tok.Surface] = rec
		a.order = append(a.order, tok.Surface)
	}

	// The maximum tier across occurrences wins.
	if tier > rec.Tier {
		rec.Tier = tier
	}

	if tok.BaselineReading != "" && !slices.Contains(rec.BaselineReadings, tok.BaselineReading) {
		rec.BaselineReadings = append(rec.BaselineReadings, tok.BaselineReading)
	}
	if tok.EngineReading != "" && len(rec.EngineReadings) < a.maxEngineSamples &&
		!slices.Contains(rec.EngineReadings, tok.EngineReading) {
		rec.EngineReadings = append(rec.EngineReadings, tok.EngineReading)
	}
	if tok.Context != "" && len(rec.Contexts) < a.maxContexts &&
		!slices.Contains(rec.Contexts, tok.Context) {
		rec.Contexts = append(rec.Contexts, tok.Context)
	}

	// Positions are appended unconditionally: the occurrence list must
	// be complete for patching.
	rec.Occurrences = append(rec.Occurrences, tok.Occ)
}

// Records returns the aggregated records in first-seen surface order.
func (a *Aggregator) Records() []*SurfaceRecord {
	out := make([]*SurfaceRecord, 0, len(a.order))
	for _, s := range a.order {
		out = append(out, a.records[s])
	}
	return out
}

// Len returns the number of distinct surfaces aggregated so far.
func (a *Aggregator) Len() int { return len(a.records) }
