// Package crawling walks the site's keyword search and collects candidate articles.
package crawling

import "fmt"

// CrawlError is a failure that prevents the search from running at all.
// Page and entry failures never surface as a CrawlError.
type CrawlError struct {
	Step    string
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error: %s: %s: %v", e.Step, e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error: %s: %s", e.Step, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// EntryError describes why a single result entry was skipped.
type EntryError struct {
	Field   string
	Message string
	Cause   error
}

func (e *EntryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("entry %s: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("entry %s: %s", e.Field, e.Message)
}

func (e *EntryError) Unwrap() error {
	return e.Cause
}
