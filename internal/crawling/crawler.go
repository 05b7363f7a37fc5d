package crawling

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/article-archiver/internal/browser"
	"github.com/jonathan/article-archiver/internal/logger"
	"github.com/jonathan/article-archiver/internal/site"
	"github.com/jonathan/article-archiver/internal/types"
)

// PageResult is reported once per result page.
type PageResult struct {
	Page       int
	Entries    int   // Result entries found on the page
	Candidates int   // Entries admitted by the date window
	Skipped    int   // Entries dropped because a field could not be read
	Err        error // Non-nil when the page could not be loaded or read
}

// Options tunes a Crawler.
type Options struct {
	Wait   browser.WaitPolicy
	Logger logger.Logger
	// OnPage, when set, is called after every page with its outcome.
	OnPage func(PageResult)
}

// Crawler drives a keyword search on one site.
type Crawler struct {
	profile site.Profile
	wait    browser.WaitPolicy
	log     logger.Logger
	onPage  func(PageResult)
}

// New creates a Crawler for profile.
func New(profile site.Profile, opts Options) *Crawler {
	c := &Crawler{
		profile: profile,
		wait:    opts.Wait,
		log:     opts.Logger,
		onPage:  opts.OnPage,
	}
	if c.wait == nil {
		c.wait = browser.FixedPause{}
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	return c
}

// Crawl searches for keyword and returns every result entry whose listed
// date falls inside w, in page order. Pages and entries that fail are
// skipped. An error is returned only when the search itself cannot run.
func (c *Crawler) Crawl(ctx context.Context, s browser.Session, keyword string, w types.DateWindow) ([]types.CandidateStub, error) {
	log := c.log.With(logger.String("keyword", keyword))

	if err := c.search(ctx, s, keyword); err != nil {
		return nil, err
	}

	stubs := make([]types.CandidateStub, 0)

	doc, err := s.Document(ctx)
	pages := c.profile.DefaultPageCount
	if err != nil {
		c.reportPage(log, PageResult{Page: 1, Err: err})
	} else {
		pages = c.pageCount(doc)
		stubs = append(stubs, c.collect(log, 1, doc, w)...)
	}
	log.Info("search results loaded", logger.Int("pages", pages))

	for p := 2; p <= pages; p++ {
		doc, err := c.loadPage(ctx, s, keyword, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &CrawlError{Step: "paginate", Message: "interrupted", Cause: ctx.Err()}
			}
			c.reportPage(log, PageResult{Page: p, Err: err})
			continue
		}
		stubs = append(stubs, c.collect(log, p, doc, w)...)
	}

	log.Info("crawl finished", logger.Int("pages", pages), logger.Int("candidates", len(stubs)))
	return stubs, nil
}

// search opens the site and submits the keyword.
func (c *Crawler) search(ctx context.Context, s browser.Session, keyword string) error {
	sel := c.profile.Selectors
	pauses := c.profile.Pauses

	if err := s.Navigate(ctx, c.profile.BaseURL); err != nil {
		return &CrawlError{Step: "open", Message: "failed to load site root", Cause: err}
	}

	// The interstitial is optional; any failure to dismiss it is ignored.
	if err := browser.ClickFirst(ctx, s, sel.Interstitial); err != nil {
		c.log.Debug("no interstitial dismissed", logger.Error(err))
	}
	if err := c.settle(ctx, s, pauses.AfterInterstitial, sel.SearchToggle, sel.SearchInput); err != nil {
		return &CrawlError{Step: "open", Message: "interrupted", Cause: err}
	}

	if err := browser.ClickFirst(ctx, s, sel.SearchToggle); err != nil && !errors.Is(err, browser.ErrNotFound) {
		return &CrawlError{Step: "search", Message: "failed to open search", Cause: err}
	}
	if err := c.settle(ctx, s, pauses.AfterSearchToggle, sel.SearchInput); err != nil {
		return &CrawlError{Step: "search", Message: "interrupted", Cause: err}
	}

	if err := browser.TypeFirst(ctx, s, sel.SearchInput, keyword); err != nil {
		return &CrawlError{Step: "search", Message: "search input unavailable", Cause: err}
	}
	if err := browser.ClickFirst(ctx, s, sel.SearchSubmit); err != nil {
		return &CrawlError{Step: "search", Message: "failed to submit search", Cause: err}
	}
	if err := c.settle(ctx, s, pauses.AfterSubmit, sel.ResultEntry, sel.LastPage); err != nil {
		return &CrawlError{Step: "search", Message: "interrupted", Cause: err}
	}
	return nil
}

func (c *Crawler) loadPage(ctx context.Context, s browser.Session, keyword string, p int) (*goquery.Document, error) {
	if err := s.Navigate(ctx, c.profile.ResultPageURL(keyword, p)); err != nil {
		return nil, err
	}
	if err := c.settle(ctx, s, c.profile.Pauses.AfterPage, c.profile.Selectors.ResultEntry, c.profile.Selectors.LastPage); err != nil {
		return nil, err
	}
	return s.Document(ctx)
}

// settle waits for the step's pause or until any selector in ready is present.
func (c *Crawler) settle(ctx context.Context, s browser.Session, pause time.Duration, ready ...[]string) error {
	var all []string
	for _, r := range ready {
		all = append(all, r...)
	}
	return c.wait.Settle(ctx, s, pause, all)
}

// pageCount reads the last page number from the pagination control.
func (c *Crawler) pageCount(doc *goquery.Document) int {
	text := strings.TrimSpace(browser.FindFirst(doc.Selection, c.profile.Selectors.LastPage).First().Text())
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 {
		return c.profile.DefaultPageCount
	}
	return n
}

// collect extracts admitted candidates from one result page.
func (c *Crawler) collect(log logger.Logger, page int, doc *goquery.Document, w types.DateWindow) []types.CandidateStub {
	res := PageResult{Page: page}
	var stubs []types.CandidateStub

	entries := browser.FindFirst(doc.Selection, c.profile.Selectors.ResultEntry)
	res.Entries = entries.Length()

	entries.Each(func(i int, entry *goquery.Selection) {
		stub, admitted, err := c.parseEntry(entry, doc.Url, w)
		if err != nil {
			res.Skipped++
			log.Debug("result entry skipped",
				logger.Int("page", page),
				logger.Int("entry", i),
				logger.Error(err),
			)
			return
		}
		if admitted {
			stubs = append(stubs, stub)
		}
	})

	res.Candidates = len(stubs)
	c.reportPage(log, res)
	return stubs
}

// parseEntry reads one result entry. The date is read first; entries
// outside the window are dropped before the remaining fields are touched.
func (c *Crawler) parseEntry(entry *goquery.Selection, base *url.URL, w types.DateWindow) (types.CandidateStub, bool, error) {
	sel := c.profile.Selectors

	dateText := strings.TrimSpace(browser.FindFirst(entry, sel.EntryDate).First().Text())
	if dateText == "" {
		return types.CandidateStub{}, false, &EntryError{Field: "date", Message: "missing"}
	}
	date, err := c.profile.ParseDate(dateText)
	if err != nil {
		return types.CandidateStub{}, false, &EntryError{Field: "date", Message: "unparseable", Cause: err}
	}
	if !w.Admits(date) {
		return types.CandidateStub{}, false, nil
	}

	linkSel := browser.FindFirst(entry, sel.EntryLink).First()
	href, ok := linkSel.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return types.CandidateStub{}, false, &EntryError{Field: "link", Message: "missing href"}
	}
	if base == nil {
		base, _ = url.Parse(c.profile.BaseURL)
	}
	link, err := site.Resolve(base, href)
	if err != nil {
		return types.CandidateStub{}, false, &EntryError{Field: "link", Message: "unresolvable", Cause: err}
	}
	if len([]rune(link)) > types.MaxLinkLength {
		return types.CandidateStub{}, false, &EntryError{Field: "link", Message: "too long"}
	}

	titleSel := browser.FindFirst(entry, sel.EntryTitle)
	if titleSel.Length() == 0 {
		return types.CandidateStub{}, false, &EntryError{Field: "title", Message: "missing"}
	}
	title := types.TruncateTitle(strings.Join(strings.Fields(titleSel.First().Text()), " "))

	return types.CandidateStub{Date: date, Title: title, Link: link}, true, nil
}

func (c *Crawler) reportPage(log logger.Logger, res PageResult) {
	if res.Err != nil {
		log.Warn("result page skipped", logger.Int("page", res.Page), logger.Error(res.Err))
	} else {
		log.Debug("result page read",
			logger.Int("page", res.Page),
			logger.Int("entries", res.Entries),
			logger.Int("candidates", res.Candidates),
			logger.Int("skipped", res.Skipped),
		)
	}
	if c.onPage != nil {
		c.onPage(res)
	}
}
