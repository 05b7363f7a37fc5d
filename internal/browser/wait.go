package browser

import (
	"context"
	"time"
)

// WaitPolicy decides how long to let a page settle after an action.
type WaitPolicy interface {
	// Settle blocks until the page is considered ready. pause is the
	// fixed delay configured for the step that just ran. ready lists
	// selectors any one of which marks the page the step leads to.
	Settle(ctx context.Context, s Session, pause time.Duration, ready []string) error
}

// FixedPause waits exactly the configured pause and ignores ready.
type FixedPause struct{}

func (FixedPause) Settle(ctx context.Context, _ Session, pause time.Duration, _ []string) error {
	return sleep(ctx, pause)
}

// PollReady polls the DOM until one of the step's ready selectors is
// present or Timeout elapses. Selector is used when a step names none.
// Reaching the timeout is not an error; the caller proceeds best-effort.
type PollReady struct {
	Selector string
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultPollReady polls every 200ms for up to timeout, falling back to body.
func DefaultPollReady(timeout time.Duration) PollReady {
	return PollReady{Selector: "body", Interval: 200 * time.Millisecond, Timeout: timeout}
}

func (p PollReady) Settle(ctx context.Context, s Session, _ time.Duration, ready []string) error {
	if len(ready) == 0 {
		ready = []string{p.Selector}
	}
	deadline := time.Now().Add(p.Timeout)
	for {
		doc, err := s.Document(ctx)
		if err == nil && FindFirst(doc.Selection, ready).Length() > 0 {
			return nil
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
