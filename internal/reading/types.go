// Package reading implements the reading-correction engine: the pipeline
// that decides which tokens of a narration are at risk of being
// mispronounced by a statistical speech engine, obtains correct readings
// for exactly those tokens from a rate-limited reasoning service, and
// rewrites the engine's mora-level accent representation in place without
// touching the displayed text.
//
// The pipeline stages, in dependency order:
//
//  1. Disagreement detection — compares the tokenizer's baseline reading
//     against the speech engine's in-context reading per token and
//     absorbs acoustically insignificant differences.
//  2. Risk classification — assigns each real disagreement a tier using
//     the forbidden list, script analysis, and the hazard lexicon.
//  3. Surface aggregation — collapses per-occurrence tokens into one
//     record per unique surface, bounding memory regardless of input
//     size while keeping every occurrence position.
//  4. Batch selection — picks which surfaces are sent, under a hard
//     call/size budget that holds for any input.
//  5. Correction validation — adversarially checks the reasoning
//     service's answers before trusting them.
//  6. Patch building and application — rewrites the matching mora spans
//     at every occurrence, via boundary alignment or a logged
//     length-clip fallback.
//
// One Engine processes one narration at a time; independent narrations
// run concurrently with separate Engine runs sharing only the read-only
// lexicon.
package reading

// Verdict classifies the difference between a token's two readings.
type Verdict string

const (
	// VerdictTrivialMatch means the readings are identical after
	// normalization or differ only by acoustically insignificant noise
	// (vowel length, a single-mora slip).
	VerdictTrivialMatch Verdict = "trivial_match"

	// VerdictDisagreement means the readings differ in a way that may be
	// audible as a mispronunciation.
	VerdictDisagreement Verdict = "disagreement"
)

// Tier is the mispronunciation risk tier of a disagreement token.
// Ordered: TierA dominates TierB when aggregating across occurrences.
type Tier int

const (
	// TierC marks forbidden tokens. They are dropped from all further
	// processing: never aggregated, never sent, never patched.
	TierC Tier = iota

	// TierB marks disagreements with no hazard signal. Sent to the
	// reasoning service only if budget remains after Tier A.
	TierB

	// TierA marks mandatory-review tokens: non-Japanese script content
	// or hazard-lexicon matches.
	TierA
)

// String returns the conventional single-letter tier name.
func (t Tier) String() string {
	switch t {
	case TierA:
		return "A"
	case TierB:
		return "B"
	default:
		return "C"
	}
}

// Occurrence is one position of a surface within the narration's accent
// representation.
type Occurrence struct {
	// Block is the index of the narration block (one speech-engine query
	// per block).
	Block int

	// MoraStart is the flat mora index of the occurrence within its
	// block's accent representation.
	MoraStart int

	// MoraLen is the number of morae the engine currently spends on this
	// occurrence.
	MoraLen int

	// CharStart is the rune offset of the surface within the block text.
	CharStart int

	// Aligned reports whether MoraStart/MoraLen come from a verified
	// boundary alignment. When false, patching this occurrence uses the
	// length-clip fallback and is logged as degraded.
	Aligned bool
}

// Token is one morphological unit at one position of the narration, with
// both phonetic readings attached. Read-only after construction.
type Token struct {
	// Surface is the displayed text. Never modified anywhere.
	Surface string

	// BaselineReading is the tokenizer's normalized katakana reading.
	BaselineReading string

	// EngineReading is the speech engine's normalized katakana reading
	// for this token in context, extracted from the aligned mora span.
	EngineReading string

	// Occ is the token's position in the accent representation.
	Occ Occurrence

	// Context is a short text window around the token, for
	// disambiguation by the reasoning service.
	Context string
}

// SurfaceRecord aggregates every risky occurrence of one unique surface
// within a single narration run.
type SurfaceRecord struct {
	// Surface is the unique display text this record covers.
	Surface string

	// Tier is the maximum risk tier seen across occurrences.
	Tier Tier

	// BaselineReadings is the set of distinct baseline readings seen, in
	// first-seen order.
	BaselineReadings []string

	// EngineReadings is a bounded sample of distinct engine readings.
	EngineReadings []string

	// Contexts is a bounded first-seen sample of context windows.
	Contexts []string

	// Occurrences lists every position, unconditionally and in order.
	// Patch application depends on this list being complete.
	Occurrences []Occurrence

	// NonJapanese reports whether the surface contains digits or Latin
	// script. Used as the tier-internal batch priority.
	NonJapanese bool

	// HazardTags are the hazard-lexicon labels, when the surface matched.
	HazardTags []string
}

// KanaPatch is a positional instruction to replace one occurrence's mora
// span with a new reading. Created only from an accepted correction,
// applied exactly once, then discarded.
type KanaPatch struct {
	Surface string
	Reading string
	Occ     Occurrence
}

// State is the per-run pipeline state.
type State string

const (
	StateCollecting         State = "collecting"
	StateBatching           State = "batching"
	StateAwaitingCorrection State = "awaiting_correction"
	StateValidating         State = "validating"
	StatePatching           State = "patching"
	StateDone               State = "done"
	StateAborted            State = "aborted"
)
