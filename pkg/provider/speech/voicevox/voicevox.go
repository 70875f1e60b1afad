// Package voicevox implements speech.Engine against a local VOICEVOX
// engine via its REST API.
//
// Only the /audio_query endpoint is used: it returns the engine's full
// synthesis plan (accent phrases, morae, timing, pitch) for a block of
// text without producing audio, which is exactly what the correction
// engine needs. The /synthesis call is left to the surrounding
// orchestration.
//
// Typical usage:
//
//	e := voicevox.New("http://localhost:50021",
//	    voicevox.WithTimeout(30*time.Second),
//	)
//	q, err := e.AudioQuery(ctx, "こんにちは", 3)
package voicevox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/daideguchi/yomihosei/pkg/provider/speech"
)

// Compile-time interface assertion.
var _ speech.Engine = (*Engine)(nil)

const (
	defaultTimeout     = 30 * time.Second
	audioQueryEndpoint = "/audio_query"
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithTimeout sets the per-request HTTP timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.client.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely. Overrides
// WithTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

// Engine is a VOICEVOX-backed speech.Engine. Safe for concurrent use.
type Engine struct {
	baseURL string
	client  *http.Client
}

// New creates an Engine targeting the VOICEVOX server at baseURL
// (e.g. "http://localhost:50021").
func New(baseURL string, opts ...Option) *Engine {
	e := &Engine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AudioQuery calls POST /audio_query and decodes the synthesis plan.
func (e *Engine) AudioQuery(ctx context.Context, text string, speaker int) (*speech.AudioQuery, error) {
	u, err := url.Parse(e.baseURL + audioQueryEndpoint)
	if err != nil {
		return nil, fmt.Errorf("voicevox: parse url: %w", err)
	}
	q := u.Query()
	q.Set("text", text)
	q.Set("speaker", strconv.Itoa(speaker))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("voicevox: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voicevox: audio_query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("voicevox: audio_query: status %d: %s", resp.StatusCode, body)
	}

	var query speech.AudioQuery
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return nil, fmt.Errorf("voicevox: decode audio_query: %w", err)
	}
	return &query, nil
}
