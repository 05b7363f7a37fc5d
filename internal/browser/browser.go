// Package browser provides the remote browser session used to drive the target site.
package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// ErrNotFound is returned when no element matches a selector.
// Lookups never wait for an element to appear.
var ErrNotFound = errors.New("element not found")

// Session is an exclusively owned handle to one browser tab.
// Every call blocks until the browser has finished the action.
type Session interface {
	// Navigate loads url and waits for the document to load.
	Navigate(ctx context.Context, url string) error
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Type clears the first element matching selector and types text into it.
	Type(ctx context.Context, selector, text string) error
	// Document returns a snapshot of the rendered DOM of the current page.
	Document(ctx context.Context) (*goquery.Document, error)
	// PrintPDF renders the current page to PDF through the DevTools protocol.
	PrintPDF(ctx context.Context, opts PDFOptions) ([]byte, error)
	// Close releases the tab. Calls after the first are no-ops.
	Close() error
}

// Opener establishes a new Session.
type Opener func(ctx context.Context) (Session, error)

// PDFOptions configures PrintPDF. Paper sizes are in inches.
type PDFOptions struct {
	PrintBackground bool
	PaperWidth      float64
	PaperHeight     float64
}

// A4 returns options for an A4 page with backgrounds.
func A4() PDFOptions {
	return PDFOptions{
		PrintBackground: true,
		PaperWidth:      8.27,
		PaperHeight:     11.69,
	}
}

// SessionError describes a failed browser operation.
type SessionError struct {
	Op     string // connect, navigate, click, type, document, pdf, close
	Target string // URL or selector
	Cause  error
}

func (e *SessionError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("browser %s %s: %v", e.Op, e.Target, e.Cause)
	}
	return fmt.Sprintf("browser %s: %v", e.Op, e.Cause)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// ClickFirst clicks the first selector in order that matches an element.
// It returns ErrNotFound when none of them match.
func ClickFirst(ctx context.Context, s Session, selectors []string) error {
	for _, sel := range selectors {
		err := s.Click(ctx, sel)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return err
	}
	return ErrNotFound
}

// TypeFirst types text into the first selector in order that matches an element.
func TypeFirst(ctx context.Context, s Session, selectors []string, text string) error {
	for _, sel := range selectors {
		err := s.Type(ctx, sel, text)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return err
	}
	return ErrNotFound
}

// FindFirst returns the matches of the first selector that finds anything
// below sel, or an empty selection.
func FindFirst(sel *goquery.Selection, selectors []string) *goquery.Selection {
	for _, s := range selectors {
		if found := sel.Find(s); found.Length() > 0 {
			return found
		}
	}
	return sel.Slice(0, 0)
}
