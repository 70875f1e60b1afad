package reasoner_test

import (
	"strings"
	"testing"

	"github.com/daideguchi/yomihosei/pkg/provider/reasoner"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	req := reasoner.BatchRequest{Items: []reasoner.QueryItem{
		{
			Surface:          "一行",
			BaselineReadings: []string{"イチギョウ"},
			EngineReadings:   []string{"ヒトクダリ"},
			HazardTags:       []string{"heteronym"},
			Contexts:         []string{"この一行のコードが"},
		},
	}}

	system, user, err := reasoner.BuildPrompt(req)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	if !strings.Contains(system, "カタカナ") {
		t.Error("system prompt must demand katakana output")
	}
	for _, want := range []string{"一行", "イチギョウ", "ヒトクダリ", "heteronym", "この一行のコードが"} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q\nmessage:\n%s", want, user)
		}
	}
}

func TestBuildPromptEmptySurface(t *testing.T) {
	t.Parallel()

	_, _, err := reasoner.BuildPrompt(reasoner.BatchRequest{
		Items: []reasoner.QueryItem{{Surface: ""}},
	})
	if err == nil {
		t.Fatal("expected error for empty surface")
	}
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	content := "```json\n" + `{
  "decisions": [
    {"surface": "一行", "verdict": "ng", "corrected_reading": "イチギョウ", "confidence": "high"},
    {"surface": "市場", "verdict": "ok"}
  ]
}` + "\n```"

	resp, err := reasoner.ParseResponse(content)
	if err != nil {
		t.Fatalf("ParseResponse: %v", err)
	}
	if len(resp.Decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(resp.Decisions))
	}
	d := resp.Decisions[0]
	if d.Verdict != reasoner.VerdictNG || d.CorrectedReading != "イチギョウ" || d.Confidence != reasoner.ConfidenceHigh {
		t.Errorf("decision 0 = %+v", d)
	}
	if resp.Decisions[1].Confidence != reasoner.ConfidenceUnspecified {
		t.Errorf("absent confidence should parse as unspecified, got %v", resp.Decisions[1].Confidence)
	}
}

func TestParseResponseRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"prose", "読みは正しいと思います。"},
		{"unknown verdict", `{"decisions": [{"surface": "一行", "verdict": "maybe"}]}`},
		{"empty surface", `{"decisions": [{"surface": "", "verdict": "ok"}]}`},
		{"truncated json", `{"decisions": [{"surface": "一行"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := reasoner.ParseResponse(tt.content); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseConfidenceOrdering(t *testing.T) {
	t.Parallel()

	if !(reasoner.ConfidenceUnspecified < reasoner.ConfidenceLow &&
		reasoner.ConfidenceLow < reasoner.ConfidenceMedium &&
		reasoner.ConfidenceMedium < reasoner.ConfidenceHigh) {
		t.Error("confidence values must be ordered unspecified < low < medium < high")
	}
	if got := reasoner.ParseConfidence("HIGH"); got != reasoner.ConfidenceHigh {
		t.Errorf("ParseConfidence(HIGH) = %v", got)
	}
	if got := reasoner.ParseConfidence("certain"); got != reasoner.ConfidenceUnspecified {
		t.Errorf("ParseConfidence(certain) = %v, want unspecified", got)
	}
}
