package reading

import (
	"log/slog"
	"sort"

	"github.com/daideguchi/yomihosei/internal/kana"
	"github.com/daideguchi/yomihosei/pkg/provider/speech"
)

// PatchMethod records how a patch was applied, for audit and metrics.
type PatchMethod string

const (
	PatchAligned PatchMethod = "aligned"
	PatchClipped PatchMethod = "length_clip"
	PatchSkipped PatchMethod = "skipped"
)

// BuildPatches expands accepted corrections into one KanaPatch per
// recorded occurrence of the corrected surface. accepted maps surface
// to its validated, normalized katakana reading.
func BuildPatches(records []*SurfaceRecord, accepted map[string]string) []KanaPatch {
	var patches []KanaPatch
	for _, rec := range records {
		reading, ok := accepted[rec.Surface]
		if !ok {
			continue
		}
		for _, occ := range rec.Occurrences {
			patches = append(patches, KanaPatch{
				Surface: rec.Surface,
				Reading: reading,
				Occ:     occ,
			})
		}
	}
	return patches
}

// MoraeFromReading builds engine morae for a katakana reading, with
// phoneme labels in the engine's convention: ン and ッ are vowel-slot
// phonemes ("N", "cl"), and the long-vowel mark inherits the preceding
// mora's vowel.
func MoraeFromReading(reading string) []speech.Mora {
	split := kana.SplitMorae(kana.NormalizeReading(reading))
	morae := make([]speech.Mora, 0, len(split))
	for _, text := range split {
		ph := kana.Decompose(text)
		m := speech.Mora{
			Text:        text,
			VowelLength: 0.1,
			Pitch:       5.0,
		}
		switch {
		case text == "ン":
			m.Vowel = "N"
		case text == "ッ":
			m.Vowel = "cl"
		case text == "ー":
			if n := len(morae); n > 0 {
				m.Vowel = morae[n-1].Vowel
			} else {
				m.Vowel = "a"
			}
		default:
			m.Vowel = ph.Vowel
			if ph.Consonant != "" {
				c := ph.Consonant
				cl := 0.05
				m.Consonant = &c
				m.ConsonantLength = &cl
			}
		}
		morae = append(morae, m)
	}
	return morae
}

// PatchOutcome pairs a patch with the method that was (or was not)
// applied to it.
type PatchOutcome struct {
	Patch  KanaPatch
	Method PatchMethod
}

// ApplyPatches mutates the per-block queries in place. Within a block
// patches are applied in descending mora order so earlier spans keep
// their indices; when two spans overlap the later occurrence wins and
// the earlier one is skipped.
//
// Aligned occurrences replace their full span with the correction's
// morae. Unaligned occurrences fall back to a one-for-one clip: only
// min(span, correction) morae change, so a possibly-wrong boundary
// cannot shift the rest of the stream.
func ApplyPatches(log *slog.Logger, queries []*speech.AudioQuery, patches []KanaPatch) []PatchOutcome {
	outcomes := make([]PatchOutcome, 0, len(patches))

	byBlock := make(map[int][]KanaPatch)
	for _, p := range patches {
		byBlock[p.Occ.Block] = append(byBlock[p.Occ.Block], p)
	}

	for block, ps := range byBlock {
		if block < 0 || block >= len(queries) || queries[block] == nil {
			for _, p := range ps {
				outcomes = append(outcomes, PatchOutcome{Patch: p, Method: PatchSkipped})
			}
			continue
		}
		q := queries[block]

		sort.SliceStable(ps, func(i, j int) bool {
			return ps[i].Occ.MoraStart > ps[j].Occ.MoraStart
		})

		lowestApplied := q.MoraCount() + 1
		for _, p := range ps {
			method := applyOne(q, p, lowestApplied)
			outcomes = append(outcomes, PatchOutcome{Patch: p, Method: method})
			switch method {
			case PatchSkipped:
				log.Warn("patch skipped",
					"surface", p.Surface,
					"reading", p.Reading,
					"block", p.Occ.Block,
					"mora_start", p.Occ.MoraStart)
			default:
				lowestApplied = p.Occ.MoraStart
				log.Debug("patch applied",
					"surface", p.Surface,
					"reading", p.Reading,
					"block", p.Occ.Block,
					"mora_start", p.Occ.MoraStart,
					"method", string(method))
			}
		}
	}
	return outcomes
}

// CountMethods tallies outcomes per method.
func CountMethods(outcomes []PatchOutcome) map[PatchMethod]int {
	counts := make(map[PatchMethod]int)
	for _, o := range outcomes {
		counts[o.Method]++
	}
	return counts
}

func applyOne(q *speech.AudioQuery, p KanaPatch, lowestApplied int) PatchMethod {
	occ := p.Occ
	if occ.MoraStart+occ.MoraLen > lowestApplied {
		return PatchSkipped
	}

	morae := MoraeFromReading(p.Reading)
	if len(morae) == 0 {
		return PatchSkipped
	}

	if occ.Aligned {
		if q.ReplaceMoraSpan(occ.MoraStart, occ.MoraLen, morae) {
			return PatchAligned
		}
		return PatchSkipped
	}

	n := occ.MoraLen
	if len(morae) < n {
		n = len(morae)
	}
	if q.ReplaceMoraSpan(occ.MoraStart, n, morae[:n]) {
		return PatchClipped
	}
	return PatchSkipped
}
