package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse_Valid(t *testing.T) {
	w := Parse("01.10.2025", "31.10.2025")

	assert.Equal(t, time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC), w.End)
}

func TestParse_TrimsWhitespace(t *testing.T) {
	w := Parse(" 01.10.2025", "31.10.2025 ")
	assert.Equal(t, 2025, w.Start.Year())
	assert.Equal(t, time.October, w.End.Month())
}

func TestParse_UnpaddedDayAndMonth(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"unpadded day", "1.10.2025", "31.10.2025", day(2025, time.October, 1), day(2025, time.October, 31)},
		{"unpadded end", "01.10.2025", "5.11.2025", day(2025, time.October, 1), day(2025, time.November, 5)},
		{"unpadded day and month", "1.1.2025", "9.1.2025", day(2025, time.January, 1), day(2025, time.January, 9)},
		{"mixed padding", "01.1.2025", "9.01.2025", day(2025, time.January, 1), day(2025, time.January, 9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := parseAt(tt.start, tt.end, time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC))
			assert.Equal(t, tt.wantStart, w.Start)
			assert.Equal(t, tt.wantEnd, w.End)
		})
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_FallsBackToDefault(t *testing.T) {
	now := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		start string
		end   string
	}{
		{"bad start", "2025-10-01", "31.10.2025"},
		{"bad end", "01.10.2025", "not a date"},
		{"both empty", "", ""},
		{"impossible day", "32.10.2025", "31.10.2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := parseAt(tt.start, tt.end, now)
			assert.Equal(t, DefaultStart, w.Start)
			assert.Equal(t, now, w.End)
		})
	}
}

func TestParse_InvertedWindowAdmitsNothing(t *testing.T) {
	w := Parse("31.10.2025", "01.10.2025")
	assert.False(t, w.Admits(time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC)))
}
