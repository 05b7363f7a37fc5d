// Package window builds publication date windows from caller input.
package window

import (
	"strings"
	"time"

	"github.com/jonathan/article-archiver/internal/types"
)

// DateLayout is the canonical day.month.year format of window bounds.
const DateLayout = "02.01.2006"

// inputLayouts are tried in order. The second accepts unpadded day and month.
var inputLayouts = []string{DateLayout, "2.1.2006"}

// DefaultStart is the lower bound used when the caller input is unusable.
var DefaultStart = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Parse builds a DateWindow from two day.month.year strings.
// If either bound fails to parse, the default window [DefaultStart, now]
// is returned instead. No error is reported.
func Parse(startStr, endStr string) types.DateWindow {
	return parseAt(startStr, endStr, time.Now())
}

func parseAt(startStr, endStr string, now time.Time) types.DateWindow {
	start, errStart := parseDate(startStr)
	end, errEnd := parseDate(endStr)
	if errStart != nil || errEnd != nil {
		return Default(now)
	}
	return types.DateWindow{Start: start, End: end}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range inputLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Default returns the fallback window ending at now.
func Default(now time.Time) types.DateWindow {
	return types.DateWindow{Start: DefaultStart, End: now}
}
