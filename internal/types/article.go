// Package types provides type definitions for structured data used throughout the article archiver.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"time"

	"github.com/google/uuid"
)

// Length limits for persisted article fields
const (
	MaxTitleLength = 500
	MaxLinkLength  = 500
)

// StoredArticle is an archived article. Link is unique across the store.
type StoredArticle struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Link          string     `json:"link"`
	DatePublished *time.Time `json:"date_published,omitempty"`
	Content       *string    `json:"content,omitempty"`
	SnapshotFile  *string    `json:"snapshot_file,omitempty"` // Blob name, e.g. pdfs/article_<id>.pdf
	CreatedAt     time.Time  `json:"created_at"`
}

// HasSnapshot reports whether the article was saved with a rendered snapshot.
func (a *StoredArticle) HasSnapshot() bool {
	return a.SnapshotFile != nil && *a.SnapshotFile != ""
}

// CandidateStub is a search-result entry that passed the date window.
// It lives for a single run and is never persisted directly.
type CandidateStub struct {
	Date  time.Time `json:"date"`
	Title string    `json:"title"`
	Link  string    `json:"link"`
}

// DateWindow is an inclusive publication date range.
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Admits returns true if date falls within [Start, End], compared on calendar days.
func (w DateWindow) Admits(date time.Time) bool {
	d := truncateDay(date)
	return !d.Before(truncateDay(w.Start)) && !d.After(truncateDay(w.End))
}

// truncateDay drops the time of day, keeping the date in its own location.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TruncateTitle cuts a title down to MaxTitleLength runes.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleLength {
		return title
	}
	return string(runes[:MaxTitleLength])
}
