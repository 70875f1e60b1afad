package reading

import "sort"

// Budget is the hard reasoning-call budget for one narration. The
// pipeline never exceeds MaxCalls calls or MaxTotalSurfaces submitted
// surfaces, independent of narration size or repetition.
type Budget struct {
	// MaxCalls caps reasoning-service calls per narration.
	MaxCalls int

	// MaxSurfacesPerCall caps the batch size of a single call.
	MaxSurfacesPerCall int

	// MaxTotalSurfaces caps surfaces across all calls.
	MaxTotalSurfaces int
}

// DefaultBudget returns the production budget: 2 calls, 20 surfaces per
// call, 40 surfaces total.
func DefaultBudget() Budget {
	return Budget{MaxCalls: 2, MaxSurfacesPerCall: 20, MaxTotalSurfaces: 40}
}

// normalized clamps nonsensical values so that a zero or negative budget
// sends nothing rather than everything.
func (b Budget) normalized() Budget {
	if b.MaxCalls < 0 {
		b.MaxCalls = 0
	}
	if b.MaxSurfacesPerCall < 0 {
		b.MaxSurfacesPerCall = 0
	}
	if b.MaxTotalSurfaces < 0 {
		b.MaxTotalSurfaces = 0
	}
	return b
}

// SelectBatches deterministically picks which records are submitted and
// splits them into call batches. Records are ranked by:
//
//  1. Tier (A before B; C never reaches here),
//  2. non-Japanese script content before lexicon-only hazards,
//  3. occurrence count, descending (a repeated surface fixes more audio),
//  4. surface string, ascending (tie-break for determinism).
//
// The top min(MaxTotalSurfaces, MaxCalls×MaxSurfacesPerCall) records are
// kept and chunked into at most MaxCalls batches. Tier B records are
// included only when capacity remains after every Tier A record — this
// falls out of the ranking plus the cap.
func SelectBatches(records []*SurfaceRecord, budget Budget) [][]*SurfaceRecord {
	b := budget.normalized()

	capacity := b.MaxTotalSurfaces
	if perCall := b.MaxCalls * b.MaxSurfacesPerCall; perCall < capacity {
		capacity = perCall
	}
	if capacity <= 0 || len(records) == 0 {
		return nil
	}

	ranked := make([]*SurfaceRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, c := ranked[i], ranked[j]
		if a.Tier != c.Tier {
			return a.Tier > c.Tier
		}
		if a.NonJapanese != c.NonJapanese {
			return a.NonJapanese
		}
		if len(a.Occurrences) != len(c.Occurrences) {
			return len(a.Occurrences) > len(c.Occurrences)
		}
		return a.Surface < c.Surface
	})

	if len(ranked) > capacity {
		ranked = ranked[:capacity]
	}

	var batches [][]*SurfaceRecord
	for len(ranked) > 0 && len(batches) < b.MaxCalls {
		n := b.MaxSurfacesPerCall
		if n > len(ranked) {
			n = len(ranked)
		}
		batches = append(batches, ranked[:n])
		ranked = ranked[n:]
	}
	return batches
}
