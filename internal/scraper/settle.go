package scraper

import (
	"context"
	"time"
)

// DefaultSettleDelay is how long to wait after each navigation for the
// portals' client-side rendering to finish
const DefaultSettleDelay = 3 * time.Second

// Settler waits after a navigation step until the page can be read
type Settler interface {
	Settle(ctx context.Context, b Browser, q Query, ready string) error
}

// FixedDelay waits a fixed time regardless of the page
type FixedDelay struct {
	Delay time.Duration
	Sleep func(time.Duration) // Defaults to time.Sleep
}

func (f FixedDelay) Settle(ctx context.Context, b Browser, q Query, ready string) error {
	sleep := f.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(f.Delay)
	return nil
}

// WaitReady polls the page until the step's ready selector matches, giving
// up after Timeout. Steps without a ready selector wait Fallback instead.
type WaitReady struct {
	Poll     time.Duration
	Timeout  time.Duration
	Fallback time.Duration
	Sleep    func(time.Duration)
}

func (w WaitReady) Settle(ctx context.Context, b Browser, q Query, ready string) error {
	sleep := w.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	if ready == "" {
		sleep(w.Fallback)
		return nil
	}

	poll := w.Poll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}

	var waited time.Duration
	for {
		snapshot, err := b.Snapshot(ctx)
		if err != nil {
			return err
		}
		if len(q.SelectAll(snapshot, ready)) > 0 {
			return nil
		}
		if waited >= w.Timeout {
			// Carry on as the fixed delay would; extraction reports what is missing
			return nil
		}
		sleep(poll)
		waited += poll
	}
}
