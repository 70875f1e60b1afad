package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"tokenizer": {"kagome"},
	"speech":    {"voicevox"},
	"reasoner":  {"anyllm", "openai"},
}

// validReasonerBackends lists the backends understood by the anyllm
// reasoner.
var validReasonerBackends = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.Speaker < 0 {
		errs = append(errs, fmt.Errorf("speaker %d is invalid; speaker IDs are non-negative", cfg.Speaker))
	}

	validateProviderName("tokenizer", cfg.Tokenizer.Name)
	validateProviderName("speech", cfg.Speech.Name)
	validateProviderName("reasoner", cfg.Reasoner.Name)

	if cfg.Reasoner.Name == "" {
		slog.Warn("no reasoner configured; runs will detect disagreements but correct nothing")
	}
	if cfg.Reasoner.Name == "anyllm" {
		if cfg.Reasoner.Provider == "" {
			errs = append(errs, errors.New("reasoner.provider is required for the anyllm reasoner"))
		} else if !slices.Contains(validReasonerBackends, cfg.Reasoner.Provider) {
			slog.Warn("unknown reasoner backend — may be a typo",
				"provider", cfg.Reasoner.Provider,
				"known", validReasonerBackends,
			)
		}
	}

	if cfg.Budget.MaxCalls < 0 {
		errs = append(errs, fmt.Errorf("budget.max_calls %d is negative", cfg.Budget.MaxCalls))
	}
	if cfg.Budget.MaxSurfacesPerCall < 0 {
		errs = append(errs, fmt.Errorf("budget.max_surfaces_per_call %d is negative", cfg.Budget.MaxSurfacesPerCall))
	}
	if cfg.Budget.MaxTotalSurfaces < 0 {
		errs = append(errs, fmt.Errorf("budget.max_total_surfaces %d is negative", cfg.Budget.MaxTotalSurfaces))
	}

	if cfg.Validation.Matcher != "" && !cfg.Validation.Matcher.IsValid() {
		errs = append(errs, fmt.Errorf("validation.matcher %q is invalid; valid values: fuzzy, exact", cfg.Validation.Matcher))
	}
	if t := cfg.Validation.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("validation.fuzzy_threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Validation.MinConfidence != "" && !cfg.Validation.MinConfidence.IsValid() {
		errs = append(errs, fmt.Errorf("validation.min_confidence %q is invalid; valid values: low, medium, high", cfg.Validation.MinConfidence))
	}

	if cfg.Audit.FilePath == "" && cfg.Audit.PostgresDSN == "" {
		slog.Warn("no audit sink configured; correction decisions will only appear in logs")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found
// in the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
