package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:20", 560, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"9:20", 0, true},
		{"09:60", 0, true},
		{"0920", 0, true},
		{"+9:20", 0, true},
		{"09:-1", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndTimeAcceptsMidnight(t *testing.T) {
	got, err := ParseEndTime("24:00")
	require.NoError(t, err)
	assert.Equal(t, MinutesPerDay, got)
	assert.Equal(t, "24:00", FormatTime(got))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "09:00", FormatTime(540))
	assert.Equal(t, "00:05", FormatTime(5))
	assert.Equal(t, "12:00-13:00", FormatRange(720, 780))
}

func TestOverlapsIsSymmetric(t *testing.T) {
	ranges := [][2]int{{0, 60}, {30, 90}, {60, 120}, {10, 20}, {0, 1440}, {120, 180}}
	for _, a := range ranges {
		for _, b := range ranges {
			assert.Equal(t,
				Overlaps(a[0], a[1], b[0], b[1]),
				Overlaps(b[0], b[1], a[0], a[1]),
				"a=%v b=%v", a, b)
		}
	}
}

func TestOverlapsAdjacentDoNotOverlap(t *testing.T) {
	assert.False(t, Overlaps(540, 600, 600, 660))
	assert.False(t, Overlaps(600, 660, 540, 600))
	assert.True(t, Overlaps(540, 601, 600, 660))
	assert.True(t, Overlaps(540, 720, 560, 580))
}

func TestValidRange(t *testing.T) {
	require.NoError(t, ValidRange(0, MinutesPerDay))
	require.ErrorIs(t, ValidRange(600, 600), ErrInvalidFormat)
	require.ErrorIs(t, ValidRange(700, 600), ErrInvalidFormat)
	require.ErrorIs(t, ValidRange(-1, 600), ErrInvalidFormat)
	require.ErrorIs(t, ValidRange(0, MinutesPerDay+1), ErrInvalidFormat)
}

func TestAddDaysRollsOver(t *testing.T) {
	tests := []struct {
		from string
		n    int
		want string
	}{
		{"2025-01-31", 1, "2025-02-01"},
		{"2024-02-28", 1, "2024-02-29"},
		{"2025-02-28", 1, "2025-03-01"},
		{"2025-12-31", 1, "2026-01-01"},
		{"2025-03-01", -1, "2025-02-28"},
	}
	for _, tt := range tests {
		d, err := ParseDate(tt.from)
		require.NoError(t, err)
		assert.Equal(t, tt.want, FormatDate(AddDays(d, tt.n)))
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("2025-13-01")
	require.ErrorIs(t, err, ErrInvalidFormat)
	_, err = ParseDate("01/02/2025")
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	d, err := ParseDate("2025-06-10")
	require.NoError(t, err)

	at := At(d, 20*60, loc)
	assert.Equal(t, 20, at.Hour())
	assert.Equal(t, "2025-06-10T14:30:00Z", at.UTC().Format(time.RFC3339))
}
