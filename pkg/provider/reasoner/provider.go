// Package reasoner defines the Reasoner interface for the external
// reasoning service that decides correct readings for ambiguous surfaces,
// together with the batch request/response types and the shared prompt
// and response-parsing helpers used by the concrete backends.
//
// The reasoning service is severely rate limited: the correction engine
// sends at most a handful of batched calls per narration, each carrying a
// bounded list of surfaces with their reading candidates, hazard tags and
// context samples. There is no streaming and no partial-batch retry — one
// request, one response, per batch.
//
// Unlike a transcript-polish pass, a reading decision that cannot be
// parsed is NOT silently ignored: a malformed response poisons the whole
// batch and the caller aborts the narration. Parse helpers therefore
// return errors instead of degrading.
//
// Implementations must be safe for concurrent use.
package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Verdict is the reasoning service's judgement for one surface.
type Verdict string

const (
	// VerdictOK means the speech engine's own reading is acceptable.
	VerdictOK Verdict = "ok"

	// VerdictNG means the engine's reading is wrong and CorrectedReading
	// holds the replacement.
	VerdictNG Verdict = "ng"
)

// Confidence is the service's self-reported certainty for an NG verdict.
// The zero value means the service reported none.
type Confidence int

const (
	ConfidenceUnspecified Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

// String returns the wire spelling of c.
func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return "unspecified"
	}
}

// ParseConfidence maps a wire string to a Confidence. Unknown spellings
// map to ConfidenceUnspecified: the validator treats an unusable
// confidence the same as a missing one.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow
	case "medium", "mid":
		return ConfidenceMedium
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceUnspecified
	}
}

// QueryItem is one surface submitted for a reading decision.
type QueryItem struct {
	// Surface is the display text whose reading is in question.
	Surface string

	// BaselineReadings are the morphological tokenizer's katakana
	// reading candidates for this surface.
	BaselineReadings []string

	// EngineReadings are up to a few of the speech engine's own
	// in-context readings for this surface.
	EngineReadings []string

	// HazardTags are the hazard-lexicon labels for Surface, empty when
	// the surface is risky for other reasons (digits, Latin script).
	HazardTags []string

	// Contexts are short text windows around sampled occurrences, for
	// disambiguation.
	Contexts []string
}

// BatchRequest is one reasoning-service call.
type BatchRequest struct {
	Items []QueryItem
}

// Decision is the service's answer for one surface.
//
// Only the combination Verdict == VerdictNG with a non-empty
// CorrectedReading requests a change; every other combination means "no
// change". Confidence accompanies NG verdicts and may be
// ConfidenceUnspecified.
type Decision struct {
	Surface          string
	Verdict          Verdict
	CorrectedReading string
	Confidence       Confidence
}

// BatchResponse carries one Decision per answered surface. Surfaces the
// service skipped are simply absent; the validator treats absence as
// VerdictOK.
type BatchResponse struct {
	Decisions []Decision
}

// Reasoner is the abstraction over the reasoning service.
type Reasoner interface {
	// CorrectReadings submits one batch and returns the service's
	// decisions. Any transport, timeout, or response-format failure is
	// returned as a non-nil error and is fatal for the caller's
	// narration — there is no retry at this layer.
	CorrectReadings(ctx context.Context, req BatchRequest) (*BatchResponse, error)
}

// systemPrompt instructs the model to act as a pronunciation checker for
// Japanese TTS narration and to answer in strict JSON.
const systemPrompt = `あなたは日本語テキスト読み上げ（TTS）の読み方チェッカーです。

各項目について、音声エンジンの読み（engine_readings）が文脈上正しいかを判定してください。

ルール:
- 読みが正しい場合は verdict を "ok" にしてください。
- 読みが間違っている場合は verdict を "ng" にし、corrected_reading に正しい読みをカタカナで入れてください。
- corrected_reading は必ず全てカタカナで書いてください。漢字・ひらがな・英数字は使わないでください。
- 確信が持てない場合は "ok" にしてください。誤った修正は無修正より悪い結果になります。
- confidence は "high" / "medium" / "low" のいずれかです。

以下の JSON のみで答えてください（マークダウンや説明文は不要です）:
{
  "decisions": [
    {"surface": "<表層形>", "verdict": "ok|ng", "corrected_reading": "<カタカナ>", "confidence": "high|medium|low"}
  ]
}`

// promptItem is the JSON shape of one request item in the user message.
type promptItem struct {
	Surface        string   `json:"surface"`
	TokenReadings  []string `json:"token_readings"`
	EngineReadings []string `json:"engine_readings"`
	HazardTags     []string `json:"hazard_tags,omitempty"`
	Contexts       []string `json:"contexts,omitempty"`
}

// BuildPrompt renders req into the system and user messages sent to the
// model. Readings are split so the model sees which came from the
// dictionary and which from the engine.
func BuildPrompt(req BatchRequest) (system, user string, err error) {
	items := make([]promptItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Surface == "" {
			return "", "", fmt.Errorf("reasoner: batch item with empty surface")
		}
		items = append(items, promptItem{
			Surface:        it.Surface,
			TokenReadings:  it.BaselineReadings,
			EngineReadings: it.EngineReadings,
			HazardTags:     it.HazardTags,
			Contexts:       it.Contexts,
		})
	}
	body, err := json.MarshalIndent(map[string]any{"items": items}, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("reasoner: marshal batch: %w", err)
	}
	return systemPrompt, string(body), nil
}

// wireResponse is the JSON structure expected back from the model.
type wireResponse struct {
	Decisions []struct {
		Surface          string `json:"surface"`
		Verdict          string `json:"verdict"`
		CorrectedReading string `json:"corrected_reading"`
		Confidence       string `json:"confidence"`
	} `json:"decisions"`
}

// ParseResponse decodes the model's reply. Markdown code fences are
// stripped first (several models wrap JSON despite instructions); any
// other deviation from the expected structure is an error. A verdict
// other than "ok"/"ng" is a protocol violation, not a soft default.
func ParseResponse(content string) (*BatchResponse, error) {
	cleaned := stripMarkdown(content)

	var wire wireResponse
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil, fmt.Errorf("reasoner: parse response: %w", err)
	}

	resp := &BatchResponse{Decisions: make([]Decision, 0, len(wire.Decisions))}
	for i, d := range wire.Decisions {
		if d.Surface == "" {
			return nil, fmt.Errorf("reasoner: decision %d: empty surface", i)
		}
		var verdict Verdict
		switch strings.ToLower(d.Verdict) {
		case "ok":
			verdict = VerdictOK
		case "ng":
			verdict = VerdictNG
		default:
			return nil, fmt.Errorf("reasoner: decision %d (%s): unknown verdict %q", i, d.Surface, d.Verdict)
		}
		resp.Decisions = append(resp.Decisions, Decision{
			Surface:          d.Surface,
			Verdict:          verdict,
			CorrectedReading: d.CorrectedReading,
			Confidence:       ParseConfidence(d.Confidence),
		})
	}
	return resp, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```)
// around the model output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
