package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hackgods/tarot-booking/internal/timeutil"
)

func TestSubtractIntervals(t *testing.T) {
	tests := []struct {
		name  string
		start int
		end   int
		taken []Segment
		want  []Segment
	}{
		{"tail free", 600, 780, []Segment{{540, 720}}, []Segment{{720, 780}}},
		{"head free", 480, 600, []Segment{{540, 720}}, []Segment{{480, 540}}},
		{"fully covered", 600, 660, []Segment{{540, 720}}, nil},
		{"gap in the middle", 540, 780, []Segment{{540, 600}, {660, 780}}, []Segment{{600, 660}}},
		{"unsorted and overlapping taken", 480, 900, []Segment{{700, 760}, {500, 560}, {540, 600}}, []Segment{{480, 500}, {600, 700}, {760, 900}}},
		{"adjacent taken leaves no zero-length gap", 540, 720, []Segment{{540, 600}, {600, 660}}, []Segment{{660, 720}}},
		{"nothing taken", 540, 600, nil, []Segment{{540, 600}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubtractIntervals(tt.start, tt.end, tt.taken))
		})
	}
}

// Every minute of [start,end) is either in exactly one segment or in a taken range.
func TestSubtractIntervalsCoverage(t *testing.T) {
	cases := []struct {
		start, end int
		taken      []Segment
	}{
		{600, 780, []Segment{{540, 720}}},
		{0, 1440, []Segment{{60, 120}, {100, 200}, {500, 501}, {1400, 1440}}},
		{300, 900, []Segment{{0, 310}, {890, 1000}, {450, 460}}},
	}

	for _, c := range cases {
		segments := SubtractIntervals(c.start, c.end, c.taken)
		for i, a := range segments {
			assert.Less(t, a.Start, a.End, "empty segment %v", a)
			for _, b := range segments[i+1:] {
				assert.False(t, timeutil.Overlaps(a.Start, a.End, b.Start, b.End), "segments %v and %v overlap", a, b)
			}
			for _, tk := range c.taken {
				assert.False(t, timeutil.Overlaps(a.Start, a.End, tk.Start, tk.End), "segment %v overlaps taken %v", a, tk)
			}
		}

		for m := c.start; m < c.end; m++ {
			inSegments := 0
			for _, s := range segments {
				if m >= s.Start && m < s.End {
					inSegments++
				}
			}
			inTaken := false
			for _, tk := range c.taken {
				if m >= tk.Start && m < tk.End {
					inTaken = true
				}
			}
			if inTaken {
				assert.Equal(t, 0, inSegments, "minute %d", m)
			} else {
				assert.Equal(t, 1, inSegments, "minute %d", m)
			}
		}
	}
}
