// Package browsertest provides an in-memory browser.Session backed by HTML fixtures.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/article-archiver/internal/browser"
)

// Session serves fixed HTML pages keyed by URL. It is safe for use from
// one goroutine at a time plus concurrent inspection by the test.
type Session struct {
	mu sync.Mutex

	// Pages maps a URL to the HTML returned once it is the current page.
	Pages map[string]string
	// OnClick maps a selector to the URL that becomes current after clicking it.
	OnClick map[string]string
	// ClickDelay keeps the old page current for this long after an OnClick
	// click, like a browser still loading the next document.
	ClickDelay time.Duration
	// NavigateErr fails navigation to the given URLs.
	NavigateErr map[string]error
	// BeforeNavigate, when set, runs before every navigation and may fail or panic.
	BeforeNavigate func(url string) error
	// PDF is returned by PrintPDF. PDFErr takes precedence when set.
	PDF    []byte
	PDFErr error
	// PDFErrFor fails PrintPDF only while the given URL is current.
	PDFErrFor map[string]error

	current     string
	pending     string
	pendingAt   time.Time
	Navigations []string
	Clicks      []string
	Typed       map[string]string
	PDFOptions  []browser.PDFOptions
	CloseCalls  int
}

// New returns a Session serving pages.
func New(pages map[string]string) *Session {
	return &Session{
		Pages:       pages,
		OnClick:     map[string]string{},
		NavigateErr: map[string]error{},
		PDFErrFor:   map[string]error{},
		Typed:       map[string]string{},
		PDF:         []byte("%PDF-1.4 fake"),
	}
}

// Opener returns a browser.Opener that always hands out s.
func (s *Session) Opener() browser.Opener {
	return func(context.Context) (browser.Session, error) {
		return s, nil
	}
}

// FailingOpener returns a browser.Opener that always fails with err.
func FailingOpener(err error) browser.Opener {
	return func(context.Context) (browser.Session, error) {
		return nil, &browser.SessionError{Op: "connect", Target: "fake", Cause: err}
	}
}

// Current returns the URL of the current page.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked()
	return s.current
}

func (s *Session) Navigate(_ context.Context, target string) error {
	if s.BeforeNavigate != nil {
		if err := s.BeforeNavigate(target); err != nil {
			return &browser.SessionError{Op: "navigate", Target: target, Cause: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = ""
	s.Navigations = append(s.Navigations, target)
	if err, ok := s.NavigateErr[target]; ok {
		return &browser.SessionError{Op: "navigate", Target: target, Cause: err}
	}
	if _, ok := s.Pages[target]; !ok {
		return &browser.SessionError{Op: "navigate", Target: target, Cause: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	}
	s.current = target
	return nil
}

func (s *Session) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settleLocked()
	if !s.hasLocked(selector) {
		return &browser.SessionError{Op: "click", Target: selector, Cause: browser.ErrNotFound}
	}
	s.Clicks = append(s.Clicks, selector)
	if next, ok := s.OnClick[selector]; ok {
		if s.ClickDelay > 0 {
			s.pending, s.pendingAt = next, time.Now().Add(s.ClickDelay)
		} else {
			s.current = next
		}
	}
	return nil
}

func (s *Session) Type(_ context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settleLocked()
	if !s.hasLocked(selector) {
		return &browser.SessionError{Op: "type", Target: selector, Cause: browser.ErrNotFound}
	}
	s.Typed[selector] = text
	return nil
}

func (s *Session) Document(context.Context) (*goquery.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked()
	return s.docLocked()
}

func (s *Session) PrintPDF(_ context.Context, opts browser.PDFOptions) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settleLocked()
	s.PDFOptions = append(s.PDFOptions, opts)
	if s.PDFErr != nil {
		return nil, &browser.SessionError{Op: "pdf", Cause: s.PDFErr}
	}
	if err, ok := s.PDFErrFor[s.current]; ok {
		return nil, &browser.SessionError{Op: "pdf", Cause: err}
	}
	return s.PDF, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

// settleLocked switches to a delayed click target once its delay is over.
func (s *Session) settleLocked() {
	if s.pending != "" && !time.Now().Before(s.pendingAt) {
		s.current, s.pending = s.pending, ""
	}
}

func (s *Session) docLocked() (*goquery.Document, error) {
	html, ok := s.Pages[s.current]
	if !ok {
		return nil, &browser.SessionError{Op: "document", Cause: fmt.Errorf("no page loaded")}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &browser.SessionError{Op: "document", Cause: err}
	}
	if u, err := url.Parse(s.current); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (s *Session) hasLocked(selector string) bool {
	doc, err := s.docLocked()
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}
