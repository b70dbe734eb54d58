package audit

import (
	"sort"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// =============================================================================
// Run Statistics
// =============================================================================

// RunStats summarizes the pacing of one sync run: how long it took and
// how the per-entity operation gaps were distributed. Gaps are derived
// from the recorded entry timestamps, so stats work on historical runs
// without any extra instrumentation.
type RunStats struct {
	SyncID     string
	Operations int
	Duration   time.Duration

	// Inter-operation gap quantiles. Zero when the run has fewer than
	// two entries.
	GapP50 time.Duration
	GapP90 time.Duration
	GapP99 time.Duration
	GapMax time.Duration
}

// ComputeRunStats derives RunStats from one run's entries.
//
// Entries may arrive in any order; they are sorted by timestamp first.
// Quantiles use a DDSketch with 1% relative accuracy.
func ComputeRunStats(entries []Entry) RunStats {
	stats := RunStats{Operations: len(entries)}
	if len(entries) == 0 {
		return stats
	}

	stats.SyncID = entries[0].SyncID

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	stats.Duration = sorted[len(sorted)-1].Timestamp.Sub(sorted[0].Timestamp)
	if len(sorted) < 2 {
		return stats
	}

	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return stats
	}

	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Timestamp.Sub(sorted[i-1].Timestamp)
		if gap < 0 {
			gap = 0
		}
		if gap > stats.GapMax {
			stats.GapMax = gap
		}
		_ = sketch.Add(float64(gap.Microseconds()))
	}

	stats.GapP50 = quantile(sketch, 0.5)
	stats.GapP90 = quantile(sketch, 0.9)
	stats.GapP99 = quantile(sketch, 0.99)

	return stats
}

func quantile(sketch *ddsketch.DDSketch, q float64) time.Duration {
	v, err := sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}
	return time.Duration(v) * time.Microsecond
}
