// Package segment plans where a long recording is cut into chunks.
//
// Cuts prefer the middle of detected silences. When no silence falls within
// the maximum chunk length, a forced cut is placed exactly maxLen past the
// previous cut, so no chunk ever exceeds the limit.
package segment

import (
	"sort"

	"loom/internal/silence"
)

// Plan returns strictly increasing cut points inside (0, total).
func Plan(total float64, silences []silence.Interval, maxLen float64) []float64 {
	if total <= 0 || maxLen <= 0 {
		return nil
	}
	cuts := make([]float64, 0, len(silences)+int(total/maxLen)+1)
	cursor := 0.0
	for _, interval := range silences {
		mid := interval.Midpoint()
		for mid-cursor > maxLen {
			cursor += maxLen
			cuts = append(cuts, cursor)
		}
		cuts = append(cuts, mid)
		cursor = mid
	}
	for total-cursor > maxLen {
		cursor += maxLen
		cuts = append(cuts, cursor)
	}
	return finalize(cuts, total)
}

func finalize(cuts []float64, total float64) []float64 {
	sort.Float64s(cuts)
	out := make([]float64, 0, len(cuts))
	for _, cut := range cuts {
		if cut <= 0 || cut >= total {
			continue
		}
		if n := len(out); n > 0 && out[n-1] == cut {
			continue
		}
		out = append(out, cut)
	}
	return out
}

// Normalize sorts silences by start, drops invalid intervals, and merges
// overlapping or touching ones. The input slice is not modified.
func Normalize(silences []silence.Interval) []silence.Interval {
	valid := make([]silence.Interval, 0, len(silences))
	for _, interval := range silences {
		if interval.Start < 0 || interval.End <= interval.Start {
			continue
		}
		valid = append(valid, interval)
	}
	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start == valid[j].Start {
			return valid[i].End < valid[j].End
		}
		return valid[i].Start < valid[j].Start
	})

	merged := valid[:0]
	for _, interval := range valid {
		if n := len(merged); n > 0 && interval.Start <= merged[n-1].End {
			if interval.End > merged[n-1].End {
				merged[n-1].End = interval.End
			}
			continue
		}
		merged = append(merged, interval)
	}
	return merged
}

// Span is a half-open [Start, End) range of the source timeline.
type Span struct {
	Start float64
	End   float64
}

// Bounds pairs consecutive cut points, with 0 prepended and total appended.
func Bounds(cuts []float64, total float64) []Span {
	spans := make([]Span, 0, len(cuts)+1)
	start := 0.0
	for _, end := range append(append([]float64(nil), cuts...), total) {
		spans = append(spans, Span{Start: start, End: end})
		start = end
	}
	return spans
}
