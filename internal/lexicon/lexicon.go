// Package lexicon holds the two curated word lists consumed by the
// reading-correction engine:
//
//   - the hazard lexicon: surfaces known to be ambiguous or commonly
//     mispronounced (proper nouns, heteronyms), each with an optional
//     canonical reading and tags;
//   - the forbidden-term list: function words, single-character tokens and
//     date/time words that must never be sent to the reasoning service,
//     stored, or patched.
//
// Both lists are loaded once at startup (from YAML files or the embedded
// defaults) and are immutable afterwards, so a single *Lexicon can be
// shared by any number of concurrently running pipeline instances without
// locking. Each pipeline receives the reference explicitly at
// construction; there are no package-level lookups.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/daideguchi/yomihosei/internal/kana"
	"gopkg.in/yaml.v3"
)

//go:embed data/hazards.yaml
var defaultHazards []byte

//go:embed data/forbidden.yaml
var defaultForbidden []byte

// HazardEntry is one hazard-lexicon record.
type HazardEntry struct {
	// Surface is the display text the entry matches, exactly.
	Surface string `yaml:"surface"`

	// Reading is the canonical katakana reading, when the curators know
	// it. Empty means "known-ambiguous, correct reading depends on
	// context" — such entries still force Tier A but contribute no
	// candidate to validation.
	Reading string `yaml:"reading"`

	// Tags are free-form hazard labels ("heteronym", "proper-noun",
	// "counter-word" …) forwarded to the reasoning service as hints.
	Tags []string `yaml:"tags"`
}

// hazardFile is the YAML document shape for the hazard lexicon.
type hazardFile struct {
	Hazards []HazardEntry `yaml:"hazards"`
}

// forbiddenFile is the YAML document shape for the forbidden list.
type forbiddenFile struct {
	Forbidden []string `yaml:"forbidden"`
}

// Lexicon is the read-only pair of curated lists. Safe for concurrent use
// after construction.
type Lexicon struct {
	hazards   map[string]HazardEntry
	forbidden map[string]struct{}
}

// Load reads the hazard lexicon and forbidden list from the given YAML
// files. An empty path selects the embedded default for that list.
func Load(hazardPath, forbiddenPath string) (*Lexicon, error) {
	hazardData := defaultHazards
	if hazardPath != "" {
		b, err := os.ReadFile(hazardPath)
		if err != nil {
			return nil, fmt.Errorf("lexicon: read hazards %q: %w", hazardPath, err)
		}
		hazardData = b
	}

	forbiddenData := defaultForbidden
	if forbiddenPath != "" {
		b, err := os.ReadFile(forbiddenPath)
		if err != nil {
			return nil, fmt.Errorf("lexicon: read forbidden %q: %w", forbiddenPath, err)
		}
		forbiddenData = b
	}

	return Parse(hazardData, forbiddenData)
}

// Parse builds a Lexicon from raw YAML documents. Useful in tests where
// lists are constructed from string literals.
func Parse(hazardYAML, forbiddenYAML []byte) (*Lexicon, error) {
	var hf hazardFile
	if err := yaml.Unmarshal(hazardYAML, &hf); err != nil {
		return nil, fmt.Errorf("lexicon: decode hazards: %w", err)
	}
	var ff forbiddenFile
	if err := yaml.Unmarshal(forbiddenYAML, &ff); err != nil {
		return nil, fmt.Errorf("lexicon: decode forbidden: %w", err)
	}

	lex := &Lexicon{
		hazards:   make(map[string]HazardEntry, len(hf.Hazards)),
		forbidden: make(map[string]struct{}, len(ff.Forbidden)),
	}
	for _, h := range hf.Hazards {
		if h.Surface == "" {
			return nil, fmt.Errorf("lexicon: hazard entry with empty surface")
		}
		if h.Reading != "" {
			h.Reading = kana.NormalizeReading(h.Reading)
			if !kana.IsKatakanaReading(h.Reading) {
				return nil, fmt.Errorf("lexicon: hazard %q: reading %q is not kana", h.Surface, h.Reading)
			}
		}
		lex.hazards[h.Surface] = h
	}
	for _, s := range ff.Forbidden {
		if s == "" {
			continue
		}
		lex.forbidden[s] = struct{}{}
	}
	return lex, nil
}

// Hazard looks up surface in the hazard lexicon.
func (l *Lexicon) Hazard(surface string) (HazardEntry, bool) {
	e, ok := l.hazards[surface]
	return e, ok
}

// Forbidden reports whether surface is on the forbidden-term list. A
// single-rune surface is forbidden unconditionally: one-character tokens
// carry too little context to correct and are overwhelmingly particles,
// counters, or okurigana fragments.
func (l *Lexicon) Forbidden(surface string) bool {
	if len([]rune(surface)) <= 1 {
		return true
	}
	_, ok := l.forbidden[surface]
	return ok
}

// ForbiddenReading reports whether a katakana reading collides with the
// reading-normalized form of any forbidden term. Used by the validator to
// reject corrections that would voice a forbidden word.
func (l *Lexicon) ForbiddenReading(reading string) bool {
	norm := kana.NormalizeReading(reading)
	for s := range l.forbidden {
		if kana.NormalizeReading(s) == norm {
			return true
		}
	}
	return false
}

// HazardCount returns the number of hazard entries. Logged at startup.
func (l *Lexicon) HazardCount() int { return len(l.hazards) }

// ForbiddenCount returns the number of forbidden terms. Logged at startup.
func (l *Lexicon) ForbiddenCount() int { return len(l.forbidden) }
