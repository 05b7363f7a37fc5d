// Package pipeline runs one crawl: search, dedup, extract, and save.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/jonathan/article-archiver/internal/browser"
	"github.com/jonathan/article-archiver/internal/crawling"
	"github.com/jonathan/article-archiver/internal/extraction"
	"github.com/jonathan/article-archiver/internal/logger"
	"github.com/jonathan/article-archiver/internal/site"
	"github.com/jonathan/article-archiver/internal/store"
	"github.com/jonathan/article-archiver/internal/types"
	"github.com/jonathan/article-archiver/internal/window"
)

// Request defaults
const (
	DefaultKeyword   = "chopin"
	DefaultStartDate = "01.10.2025"
	DefaultEndDate   = "31.10.2025"
)

// Request is the caller input for a run.
type Request struct {
	Keyword   string
	StartDate string // day.month.year
	EndDate   string // day.month.year
}

// WithDefaults fills empty fields with the request defaults.
func (r Request) WithDefaults() Request {
	if r.Keyword == "" {
		r.Keyword = DefaultKeyword
	}
	if r.StartDate == "" {
		r.StartDate = DefaultStartDate
	}
	if r.EndDate == "" {
		r.EndDate = DefaultEndDate
	}
	return r
}

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Step    string `json:"step"` // session, crawl, article, done
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
}

// ProgressCallback is called when run progress occurs
type ProgressCallback func(event ProgressEvent)

// Recorder receives run metrics. observability.Metrics implements it.
type Recorder interface {
	RunFinished(status string, d time.Duration)
	ArticleOutcome(kind string)
	CrawlPage(res crawling.PageResult)
}

// Options holds the collaborators of a Runner.
type Options struct {
	Opener     browser.Opener
	Store      store.Store
	Profile    site.Profile
	Wait       browser.WaitPolicy
	Logger     logger.Logger
	Recorder   Recorder
	OnProgress ProgressCallback
}

// Runner executes runs. A Runner may be reused, but runs are not meant
// to overlap on the same store.
type Runner struct {
	open       browser.Opener
	store      store.Store
	crawler    *crawling.Crawler
	extractor  *extraction.Extractor
	log        logger.Logger
	recorder   Recorder
	onProgress ProgressCallback
}

// NewRunner creates a Runner from opts.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		open:       opts.Opener,
		store:      opts.Store,
		log:        opts.Logger,
		recorder:   opts.Recorder,
		onProgress: opts.OnProgress,
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}

	crawlOpts := crawling.Options{Wait: opts.Wait, Logger: r.log}
	if r.recorder != nil {
		crawlOpts.OnPage = r.recorder.CrawlPage
	}
	r.crawler = crawling.New(opts.Profile, crawlOpts)
	r.extractor = extraction.New(opts.Profile, extraction.Options{Wait: opts.Wait, Logger: r.log})
	return r
}

// Run performs one crawl. It always returns a Result; failures are
// reported through Result.Status and Result.Message.
func (r *Runner) Run(ctx context.Context, req Request) (res Result) {
	req = req.WithDefaults()
	start := time.Now()
	log := r.log.With(logger.String("keyword", req.Keyword))

	defer func() {
		res.Duration = time.Since(start)
		if r.recorder != nil {
			r.recorder.RunFinished(string(res.Status), res.Duration)
		}
		log.Info("run finished",
			logger.String("status", string(res.Status)),
			logger.Int("saved", res.SavedCount),
			logger.Int("skipped", res.Skipped),
			logger.Int("failed", res.Failed),
			logger.Duration("duration", res.Duration),
		)
	}()

	session, err := r.open(ctx)
	if err != nil {
		log.Error("failed to open browser session", logger.Error(err))
		return Result{Status: StatusError, Message: fmt.Sprintf("failed to open browser session: %v", err)}
	}
	r.progress(ProgressEvent{Step: "session", Message: "browser session opened"})

	return r.runWithSession(ctx, session, req, log)
}

// runWithSession owns session and closes it exactly once on every path.
func (r *Runner) runWithSession(ctx context.Context, session browser.Session, req Request, log logger.Logger) (res Result) {
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close browser session", logger.Error(err))
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			log.Error("run aborted by panic",
				logger.Any("panic", p),
				logger.String("stack", string(debug.Stack())),
			)
			res = Result{
				Status:     StatusError,
				Message:    fmt.Sprintf("run aborted: %v", p),
				SavedCount: res.SavedCount,
				Skipped:    res.Skipped,
				Failed:     res.Failed,
				Outcomes:   res.Outcomes,
			}
		}
	}()

	w := window.Parse(req.StartDate, req.EndDate)
	log.Info("run started",
		logger.String("window_start", w.Start.Format(window.DateLayout)),
		logger.String("window_end", w.End.Format(window.DateLayout)),
	)

	stubs, err := r.crawler.Crawl(ctx, session, req.Keyword, w)
	if err != nil {
		log.Error("crawl failed", logger.Error(err))
		return Result{Status: StatusError, Message: err.Error()}
	}
	r.progress(ProgressEvent{Step: "crawl", Message: fmt.Sprintf("%d candidates found", len(stubs))})

	res = Result{Status: StatusSuccess, Candidates: len(stubs)}
	for _, stub := range stubs {
		o := r.processItem(ctx, session, stub, log)
		res.record(o)
		if r.recorder != nil {
			r.recorder.ArticleOutcome(string(o.Kind))
		}
		r.progress(ProgressEvent{Step: "article", Message: describe(o), Link: o.Link})
	}

	r.progress(ProgressEvent{Step: "done", Message: fmt.Sprintf("%d saved", res.SavedCount)})
	return res
}

// processItem handles one candidate. Panics and errors become a failed outcome.
func (r *Runner) processItem(ctx context.Context, session browser.Session, stub types.CandidateStub, log logger.Logger) (o Outcome) {
	o = Outcome{Link: stub.Link, Title: stub.Title}
	log = log.With(logger.String("link", stub.Link))

	defer func() {
		if p := recover(); p != nil {
			log.Warn("article panicked", logger.Any("panic", p))
			o.Kind = OutcomeFailed
			o.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	exists, err := r.store.Exists(ctx, stub.Link)
	if err != nil {
		log.Warn("existence check failed", logger.Error(err))
		o.Kind, o.Err = OutcomeFailed, err
		return o
	}
	if exists {
		log.Debug("article already stored")
		o.Kind, o.Reason = OutcomeSkipped, ReasonAlreadyStored
		return o
	}

	ex, err := r.extractor.Extract(ctx, session, stub)
	if err != nil {
		log.Warn("article extraction failed", logger.Error(err))
		o.Kind, o.Err = OutcomeFailed, err
		return o
	}

	saved, err := r.store.Save(ctx, stub, ex.Content, ex.Snapshot)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateLink) {
			log.Info("article stored by another run")
			o.Kind, o.Reason = OutcomeSkipped, ReasonDuplicate
			return o
		}
		log.Warn("failed to save article", logger.Error(err))
		o.Kind, o.Err = OutcomeFailed, err
		return o
	}

	o.Kind = OutcomeSaved
	o.Snapshot = saved.HasSnapshot()
	log.Info("article saved", logger.Bool("snapshot", o.Snapshot))
	return o
}

func (r *Runner) progress(e ProgressEvent) {
	if r.onProgress != nil {
		r.onProgress(e)
	}
}

func describe(o Outcome) string {
	switch o.Kind {
	case OutcomeSaved:
		if o.Snapshot {
			return "saved with snapshot"
		}
		return "saved without snapshot"
	case OutcomeSkipped:
		return "skipped: " + o.Reason
	default:
		return fmt.Sprintf("failed: %v", o.Err)
	}
}
