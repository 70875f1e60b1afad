// Package anyllm provides a reasoner.Reasoner backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface
// supporting OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq
// and more.
//
// Usage:
//
//	r, err := anyllm.New("gemini", "gemini-2.0-flash")
//	r, err := anyllm.New("anthropic", "claude-sonnet-4-5", anyllmlib.WithAPIKey("sk-ant-..."))
//
// Without an API-key option, the backend falls back to the relevant
// environment variable (GEMINI_API_KEY, ANTHROPIC_API_KEY, …).
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
)

// defaultTemperature keeps reading decisions as deterministic as the
// backend allows.
const defaultTemperature = 0.1

// Compile-time interface assertion.
var _ reasoner.Reasoner = (*Reasoner)(nil)

// Option is a functional option for configuring a Reasoner.
type Option func(*Reasoner)

// WithTemperature overrides the sampling temperature. Default: 0.1.
func WithTemperature(t float64) Option {
	return func(r *Reasoner) {
		r.temperature = t
	}
}

// Reasoner implements reasoner.Reasoner by wrapping any-llm-go.
type Reasoner struct {
	backend     anyllmlib.Provider
	model       string
	temperature float64
}

// New creates a Reasoner backed by the given provider name and model.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq". backendOpts are any-llm-go options
// (anyllmlib.WithAPIKey, anyllmlib.WithBaseURL, …).
func New(providerName, model string, backendOpts []anyllmlib.Option, opts ...Option) (*Reasoner, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm reasoner: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm reasoner: model must not be empty")
	}

	backend, err := createBackend(providerName, backendOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm reasoner: create %q backend: %w", providerName, err)
	}

	r := &Reasoner{
		backend:     backend,
		model:       model,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq", providerName)
	}
}

// CorrectReadings implements reasoner.Reasoner. Exactly one completion
// request is issued per call; any transport or parse failure is returned
// to the caller unretried.
func (r *Reasoner) CorrectReadings(ctx context.Context, req reasoner.BatchRequest) (*reasoner.BatchResponse, error) {
	system, user, err := reasoner.BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	temp := r.temperature
	resp, err := r.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model:       r.model,
		Temperature: &temp,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: system},
			{Role: anyllmlib.RoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anyllm reasoner: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm reasoner: empty choices in response")
	}

	return reasoner.ParseResponse(resp.Choices[0].Message.ContentString())
}
