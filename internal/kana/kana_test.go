package kana_test

import (
	"reflect"
	"testing"

	"github.com/daideguchi/yomihosei/internal/kana"
)

func TestNormalizeReading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"hiragana to katakana", "きょう", "キョウ"},
		{"half-width folded", "ｷｮｳ", "キョウ"},
		{"punctuation stripped", "キョウ、ハ　ハレ。", "キョウハハレ"},
		{"already normalized", "イチギョウ", "イチギョウ"},
		{"long vowel mark kept", "コーコー", "コーコー"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := kana.NormalizeReading(tt.in); got != tt.want {
				t.Errorf("NormalizeReading(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitMorae(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"キョウ", []string{"キョ", "ウ"}},
		{"イチギョウ", []string{"イ", "チ", "ギョ", "ウ"}},
		{"コーコー", []string{"コ", "ー", "コ", "ー"}},
		{"ガッコウ", []string{"ガ", "ッ", "コ", "ウ"}},
		{"シンブン", []string{"シ", "ン", "ブ", "ン"}},
		{"ティー", []string{"ティ", "ー"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := kana.SplitMorae(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitMorae(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCollapseLongVowels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		// コウコウ and コーコー collapse to the same sequence.
		{"コウコウ", []string{"コ", "コ"}},
		{"コーコー", []string{"コ", "コ"}},
		{"ケイザイ", []string{"ケ", "ザ", "イ"}}, // エ段+イ collapses, ア段+イ does not
		{"オオサカ", []string{"オ", "サ", "カ"}},
		{"キョウ", []string{"キョ"}},
		{"ツライ", []string{"ツ", "ラ", "イ"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got := kana.CollapseLongVowels(kana.SplitMorae(tt.in))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("CollapseLongVowels(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecompose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mora string
		want kana.Phoneme
	}{
		{"カ", kana.Phoneme{Consonant: "k", Vowel: "a"}},
		{"キョ", kana.Phoneme{Consonant: "ky", Vowel: "o"}},
		{"シャ", kana.Phoneme{Consonant: "sy", Vowel: "a"}},
		{"ウ", kana.Phoneme{Vowel: "u"}},
		{"ン", kana.Phoneme{Consonant: "N"}},
		{"ッ", kana.Phoneme{Consonant: "q"}},
		{"ー", kana.Phoneme{Vowel: "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.mora, func(t *testing.T) {
			t.Parallel()
			if got := kana.Decompose(tt.mora); got != tt.want {
				t.Errorf("Decompose(%q) = %+v, want %+v", tt.mora, got, tt.want)
			}
		})
	}
}

func TestContainsNonJapanese(t *testing.T) {
	t.Parallel()

	tests := []struct {
		surface string
		want    bool
	}{
		{"一行", false},
		{"東京", false},
		{"AI", true},
		{"ＡＩ", true},
		{"2024年", true},
		{"１０月", true},
		{"100%", true},
		{"こんにちは、", false},
	}
	for _, tt := range tests {
		t.Run(tt.surface, func(t *testing.T) {
			t.Parallel()
			if got := kana.ContainsNonJapanese(tt.surface); got != tt.want {
				t.Errorf("ContainsNonJapanese(%q) = %v, want %v", tt.surface, got, tt.want)
			}
		})
	}
}

func TestIsKatakanaReading(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reading string
		want    bool
	}{
		{"イチギョウ", true},
		{"コーコー", true},
		{"いちぎょう", false},
		{"一行", false},
		{"イチgyou", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.reading, func(t *testing.T) {
			t.Parallel()
			if got := kana.IsKatakanaReading(tt.reading); got != tt.want {
				t.Errorf("IsKatakanaReading(%q) = %v, want %v", tt.reading, got, tt.want)
			}
		})
	}
}
