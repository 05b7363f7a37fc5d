package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// RemoteConfig configures sessions opened against a DevTools endpoint.
type RemoteConfig struct {
	URL             string        // DevTools endpoint, http://host:9222 or ws://...
	Local           bool          // Launch a local headless Chrome instead of connecting to URL
	PageLoadTimeout time.Duration // Upper bound for every single browser call
	ViewportWidth   int64
	ViewportHeight  int64
}

// DefaultRemoteConfig returns the settings used by the archiver.
func DefaultRemoteConfig(endpoint string) RemoteConfig {
	return RemoteConfig{
		URL:             endpoint,
		PageLoadTimeout: 30 * time.Second,
		ViewportWidth:   1200,
		ViewportHeight:  800,
	}
}

// RemoteOpener returns an Opener that creates a new tab on the configured browser.
func RemoteOpener(cfg RemoteConfig) Opener {
	return func(ctx context.Context) (Session, error) {
		s, err := openRemote(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

type remoteSession struct {
	ctx         context.Context // tab context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	timeout     time.Duration

	closeOnce sync.Once
	closeErr  error
}

func openRemote(ctx context.Context, cfg RemoteConfig) (*remoteSession, error) {
	// The session outlives the caller's cancellation; only Close ends it.
	base := context.WithoutCancel(ctx)

	var allocCtx context.Context
	var cancelAlloc context.CancelFunc
	if cfg.Local {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(base,
			append(chromedp.DefaultExecAllocatorOptions[:],
				chromedp.Flag("headless", true),
				chromedp.Flag("disable-gpu", true),
				chromedp.Flag("no-sandbox", true),
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.WindowSize(int(cfg.ViewportWidth), int(cfg.ViewportHeight)),
			)...,
		)
	} else {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(base, cfg.URL)
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &remoteSession{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		timeout:     cfg.PageLoadTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}

	// The first Run attaches to the browser and must use the tab context itself,
	// otherwise the tab is torn down when the derived context ends.
	errc := make(chan error, 1)
	go func() {
		errc <- chromedp.Run(tabCtx, chromedp.EmulateViewport(cfg.ViewportWidth, cfg.ViewportHeight))
	}()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(s.timeout):
		err = fmt.Errorf("no response within %s", s.timeout)
	}
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, &SessionError{Op: "connect", Target: endpointLabel(cfg), Cause: err}
	}
	return s, nil
}

func endpointLabel(cfg RemoteConfig) string {
	if cfg.Local {
		return "local"
	}
	return cfg.URL
}

// run executes actions bounded by the page-load timeout and the caller's ctx.
func (s *remoteSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *remoteSession) Navigate(ctx context.Context, target string) error {
	err := s.run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return &SessionError{Op: "navigate", Target: target, Cause: err}
	}
	return nil
}

// first returns the first node matching selector without waiting for it.
func (s *remoteSession) first(ctx context.Context, selector string) (*cdp.Node, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return nodes[0], nil
}

func (s *remoteSession) Click(ctx context.Context, selector string) error {
	node, err := s.first(ctx, selector)
	if err != nil {
		return &SessionError{Op: "click", Target: selector, Cause: err}
	}
	if err := s.run(ctx, chromedp.MouseClickNode(node)); err != nil {
		return &SessionError{Op: "click", Target: selector, Cause: err}
	}
	return nil
}

func (s *remoteSession) Type(ctx context.Context, selector, text string) error {
	node, err := s.first(ctx, selector)
	if err != nil {
		return &SessionError{Op: "type", Target: selector, Cause: err}
	}
	ids := []cdp.NodeID{node.NodeID}
	err = s.run(ctx,
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, text, chromedp.ByNodeID),
	)
	if err != nil {
		return &SessionError{Op: "type", Target: selector, Cause: err}
	}
	return nil
}

func (s *remoteSession) Document(ctx context.Context) (*goquery.Document, error) {
	var html, location string
	err := s.run(ctx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, &SessionError{Op: "document", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &SessionError{Op: "document", Target: location, Cause: err}
	}
	if u, err := url.Parse(location); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (s *remoteSession) PrintPDF(ctx context.Context, opts PDFOptions) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(opts.PrintBackground).
			WithPaperWidth(opts.PaperWidth).
			WithPaperHeight(opts.PaperHeight).
			Do(ctx)
		buf = data
		return err
	}))
	if err != nil {
		return nil, &SessionError{Op: "pdf", Cause: err}
	}
	if len(buf) == 0 {
		return nil, &SessionError{Op: "pdf", Cause: fmt.Errorf("empty document")}
	}
	return buf, nil
}

func (s *remoteSession) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.closeErr = &SessionError{Op: "close", Cause: err}
		}
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}
