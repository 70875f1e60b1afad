package speech

import "strings"

// Mora is one phonetic timing unit in the speech engine's accent
// representation. Field names and JSON tags follow the VOICEVOX
// audio_query wire format; other engines are adapted to this shape by
// their provider implementation.
type Mora struct {
	// Text is the katakana spelling of the mora (e.g. "キョ").
	Text string `json:"text"`

	// Consonant is the consonant phoneme, nil for pure-vowel morae.
	Consonant *string `json:"consonant"`

	// ConsonantLength is the consonant duration in seconds, nil when
	// Consonant is nil.
	ConsonantLength *float64 `json:"consonant_length"`

	// Vowel is the vowel phoneme ("a","i","u","e","o","N","cl","pau").
	Vowel string `json:"vowel"`

	// VowelLength is the vowel duration in seconds.
	VowelLength float64 `json:"vowel_length"`

	// Pitch is the fundamental frequency target for this mora.
	Pitch float64 `json:"pitch"`
}

// AccentPhrase is one accent phrase of the engine's representation: a run
// of morae with a single pitch-accent position.
type AccentPhrase struct {
	Moras           []Mora `json:"moras"`
	Accent          int    `json:"accent"`
	PauseMora       *Mora  `json:"pause_mora"`
	IsInterrogative bool   `json:"is_interrogative"`
}

// AudioQuery is the engine's full synthesis plan for one block of text.
// The reading-correction engine reads it (mora enumeration, reading
// extraction) and rewrites contiguous mora spans in place; it never
// changes anything else.
type AudioQuery struct {
	AccentPhrases      []AccentPhrase `json:"accent_phrases"`
	SpeedScale         float64        `json:"speedScale"`
	PitchScale         float64        `json:"pitchScale"`
	IntonationScale    float64        `json:"intonationScale"`
	VolumeScale        float64        `json:"volumeScale"`
	PrePhonemeLength   float64        `json:"prePhonemeLength"`
	PostPhonemeLength  float64        `json:"postPhonemeLength"`
	OutputSamplingRate int            `json:"outputSamplingRate"`
	OutputStereo       bool           `json:"outputStereo"`
	Kana               string         `json:"kana"`
}

// MoraCount returns the total number of morae across all accent phrases.
// Pause morae are not counted: they carry no text and are never indexed
// by the correction engine.
func (q *AudioQuery) MoraCount() int {
	n := 0
	for i := range q.AccentPhrases {
		n += len(q.AccentPhrases[i].Moras)
	}
	return n
}

// MoraTexts returns the katakana text of every mora in order. The
// concatenation is the engine's phonetic reading for the whole block.
func (q *AudioQuery) MoraTexts() []string {
	texts := make([]string, 0, q.MoraCount())
	for i := range q.AccentPhrases {
		for j := range q.AccentPhrases[i].Moras {
			texts = append(texts, q.AccentPhrases[i].Moras[j].Text)
		}
	}
	return texts
}

// Reading returns the engine's phonetic reading for the whole block: the
// concatenated mora texts.
func (q *AudioQuery) Reading() string {
	return strings.Join(q.MoraTexts(), "")
}

// MoraAt returns a pointer to the mora at flat index i (phrase-order,
// pause morae excluded), or nil when i is out of range.
func (q *AudioQuery) MoraAt(i int) *Mora {
	if i < 0 {
		return nil
	}
	for p := range q.AccentPhrases {
		moras := q.AccentPhrases[p].Moras
		if i < len(moras) {
			return &moras[i]
		}
		i -= len(moras)
	}
	return nil
}

// ReplaceMoraSpan replaces the contiguous flat-index span [start,
// start+length) with replacement, in place. The span may cross accent
// phrase boundaries: the replacement is inserted into the phrase
// containing start and the remainder of the span is removed from the
// following phrases. Mora counts outside the span are untouched.
//
// Returns false without modifying anything when the span is out of range.
func (q *AudioQuery) ReplaceMoraSpan(start, length int, replacement []Mora) bool {
	if start < 0 || length <= 0 || len(replacement) == 0 || start+length > q.MoraCount() {
		return false
	}

	// Locate the phrase containing start. start < MoraCount guarantees
	// termination with a valid phrase index.
	p, offset := 0, start
	for offset >= len(q.AccentPhrases[p].Moras) {
		offset -= len(q.AccentPhrases[p].Moras)
		p++
	}

	remaining := length
	// Remove the tail of the span from this and following phrases.
	for i := p; i < len(q.AccentPhrases) && remaining > 0; i++ {
		moras := q.AccentPhrases[i].Moras
		from := 0
		if i == p {
			from = offset
		}
		n := len(moras) - from
		if n > remaining {
			n = remaining
		}
		q.AccentPhrases[i].Moras = append(moras[:from], moras[from+n:]...)
		remaining -= n
	}

	// Insert the replacement into the phrase containing start.
	moras := q.AccentPhrases[p].Moras
	out := make([]Mora, 0, len(moras)+len(replacement))
	out = append(out, moras[:offset]...)
	out = append(out, replacement...)
	out = append(out, moras[offset:]...)
	q.AccentPhrases[p].Moras = out

	// Clamp accent positions that now point past the phrase end.
	for i := p; i < len(q.AccentPhrases); i++ {
		if n := len(q.AccentPhrases[i].Moras); q.AccentPhrases[i].Accent > n && n > 0 {
			q.AccentPhrases[i].Accent = n
		}
	}
	return true
}

// Clone returns a deep copy of the query. The correction engine patches a
// clone so that an aborted run can hand back the original untouched.
func (q *AudioQuery) Clone() *AudioQuery {
	cp := *q
	cp.AccentPhrases = make([]AccentPhrase, len(q.AccentPhrases))
	for i, ap := range q.AccentPhrases {
		nap := ap
		nap.Moras = append([]Mora(nil), ap.Moras...)
		if ap.PauseMora != nil {
			pm := *ap.PauseMora
			nap.PauseMora = &pm
		}
		cp.AccentPhrases[i] = nap
	}
	return &cp
}
