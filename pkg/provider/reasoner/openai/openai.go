// Package openai provides a reasoner.Reasoner backed directly by the
// OpenAI API. Prefer the anyllm backend unless you need OpenAI-specific
// request options; this implementation exists for deployments that pin
// the official SDK.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
)

// Compile-time interface assertion.
var _ reasoner.Reasoner = (*Reasoner)(nil)

// config holds optional configuration for the Reasoner.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for the Reasoner.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Reasoner implements reasoner.Reasoner using the OpenAI chat API.
type Reasoner struct {
	client oai.Client
	model  string
}

// New constructs an OpenAI-backed Reasoner.
func New(apiKey, model string, opts ...Option) (*Reasoner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai reasoner: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai reasoner: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Reasoner{client: oai.NewClient(reqOpts...), model: model}, nil
}

// CorrectReadings implements reasoner.Reasoner.
func (r *Reasoner) CorrectReadings(ctx context.Context, req reasoner.BatchRequest) (*reasoner.BatchResponse, error) {
	system, user, err := reasoner.BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		Temperature: oai.Float(0.1),
	})
	if err != nil {
		return nil, fmt.Errorf("openai reasoner: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai reasoner: empty choices in response")
	}

	return reasoner.ParseResponse(resp.Choices[0].Message.Content)
}
