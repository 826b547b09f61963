package scheduling

import (
	"sort"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

// Segment is a half-open [Start,End) range of minutes.
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Segment) String() string {
	return timeutil.FormatRange(s.Start, s.End)
}

// SubtractIntervals returns the parts of [start,end) not covered by any of taken,
// in ascending order. Zero-length gaps are dropped.
func SubtractIntervals(start, end int, taken []Segment) []Segment {
	sorted := make([]Segment, len(taken))
	copy(sorted, taken)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []Segment
	cursor := start
	for _, t := range sorted {
		if t.End <= cursor {
			continue
		}
		if t.Start >= end {
			break
		}
		if t.Start > cursor {
			out = append(out, Segment{Start: cursor, End: t.Start})
		}
		cursor = max(cursor, t.End)
		if cursor >= end {
			break
		}
	}
	if cursor < end {
		out = append(out, Segment{Start: cursor, End: end})
	}
	return out
}
