// Package extraction reads article text and a PDF snapshot from article pages.
package extraction

import (
	"context"
	"fmt"

	"github.com/jonathan/article-archiver/internal/browser"
	"github.com/jonathan/article-archiver/internal/logger"
	"github.com/jonathan/article-archiver/internal/site"
	"github.com/jonathan/article-archiver/internal/types"
)

// Extraction is what could be read from one article page.
// Nil fields mean the value was not available.
type Extraction struct {
	Content     *string
	Snapshot    []byte
	SnapshotErr error // Why Snapshot is nil, if capture was attempted and failed
}

// Options tunes an Extractor.
type Options struct {
	Wait       browser.WaitPolicy
	Logger     logger.Logger
	PDF        browser.PDFOptions
	Strategies []Strategy // Overrides the profile's article content selectors
}

// Extractor fetches article details through a browser session.
type Extractor struct {
	strategies []Strategy
	wait       browser.WaitPolicy
	pdf        browser.PDFOptions
	profile    site.Profile
	log        logger.Logger
}

// New creates an Extractor for profile.
func New(profile site.Profile, opts Options) *Extractor {
	e := &Extractor{
		strategies: opts.Strategies,
		wait:       opts.Wait,
		pdf:        opts.PDF,
		profile:    profile,
		log:        opts.Logger,
	}
	if len(e.strategies) == 0 {
		e.strategies = SelectorStrategies(profile.Selectors.ArticleContent)
	}
	if e.wait == nil {
		e.wait = browser.FixedPause{}
	}
	if e.pdf == (browser.PDFOptions{}) {
		e.pdf = browser.A4()
	}
	if e.log == nil {
		e.log = logger.NewNop()
	}
	return e
}

// Extract opens stub.Link and reads its content and snapshot.
// Only a failure to open the page is returned as an error; content and
// snapshot problems leave the corresponding field nil.
func (e *Extractor) Extract(ctx context.Context, s browser.Session, stub types.CandidateStub) (Extraction, error) {
	log := e.log.With(logger.String("link", stub.Link))

	if err := s.Navigate(ctx, stub.Link); err != nil {
		return Extraction{}, fmt.Errorf("failed to open article: %w", err)
	}
	if err := e.wait.Settle(ctx, s, e.profile.Pauses.AfterArticle, e.profile.Selectors.ArticleContent); err != nil {
		return Extraction{}, fmt.Errorf("failed to open article: %w", err)
	}

	var out Extraction

	doc, err := s.Document(ctx)
	if err != nil {
		log.Warn("article DOM unavailable", logger.Error(err))
	} else {
		out.Content = FirstOf(doc, e.strategies...)
		if out.Content == nil {
			log.Debug("no article content matched")
		}
	}

	pdf, err := s.PrintPDF(ctx, e.pdf)
	if err != nil {
		out.SnapshotErr = err
		log.Warn("snapshot capture failed", logger.Error(err))
	} else {
		out.Snapshot = pdf
	}

	return out, nil
}
