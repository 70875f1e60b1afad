package reading

import (
	"errors"
	"testing"
)

func TestDetectVerdict(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		baseline string
		engine   string
		want     Verdict
	}{
		{"identical", "トウキョウ", "トウキョウ", VerdictTrivialMatch},
		{"hiragana baseline", "とうきょう", "トウキョウ", VerdictTrivialMatch},
		{"long vowel mark vs vowel", "コウコウ", "コーコー", VerdictTrivialMatch},
		{"trailing long vowel", "キョウ", "キョー", VerdictTrivialMatch},
		{"single mora slip same consonant", "キョウ", "キョオ", VerdictTrivialMatch},
		{"single mora slip voicing", "カキ", "カギ", VerdictTrivialMatch},
		{"one mora both phonemes differ", "ツライ", "カライ", VerdictDisagreement},
		{"different reading same length", "イチギョウ", "ヒトクダリ", VerdictDisagreement},
		{"different length", "ニホン", "ニッポン", VerdictDisagreement},
		{"two mora slips", "カキク", "ガギク", VerdictDisagreement},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := DetectVerdict(tc.baseline, tc.engine)
			if err != nil {
				t.Fatalf("DetectVerdict(%q, %q) error: %v", tc.baseline, tc.engine, err)
			}
			if got != tc.want {
				t.Errorf("DetectVerdict(%q, %q) = %v, want %v", tc.baseline, tc.engine, got, tc.want)
			}
		})
	}
}

func TestDetectVerdict_EmptyReadings(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ baseline, engine string }{
		{"", "トウキョウ"},
		{"トウキョウ", ""},
		{"", ""},
		{"。、", "トウキョウ"}, // punctuation-only normalizes to empty
	} {
		got, err := DetectVerdict(tc.baseline, tc.engine)
		if !errors.Is(err, ErrEmptyReading) {
			t.Errorf("DetectVerdict(%q, %q) error = %v, want ErrEmptyReading", tc.baseline, tc.engine, err)
		}
		if got != VerdictTrivialMatch {
			t.Errorf("DetectVerdict(%q, %q) = %v, want trivial match on empty input", tc.baseline, tc.engine, got)
		}
	}
}
