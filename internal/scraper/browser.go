package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const defaultCommandTimeout = 10 * time.Second

// Browser drives a rendered page. Implementations hold one tab; every call
// acts on whatever page that tab currently shows.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, fieldID, text string) error
	Click(ctx context.Context, controlID string) error
	RunScript(ctx context.Context, expression string) error
	Snapshot(ctx context.Context) (string, error)
	Close() error
}

// BrowserOptions configures a ChromeBrowser
type BrowserOptions struct {
	Visible        bool
	CommandTimeout time.Duration
	UserAgent      string
}

// ChromeBrowser is a Browser backed by a headless Chrome via chromedp
type ChromeBrowser struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	timeout     time.Duration
}

// NewChromeBrowser launches Chrome and opens a tab
func NewChromeBrowser(opts BrowserOptions) (*ChromeBrowser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Visible),
		chromedp.Flag("no-sandbox", true),            // Required for running as root on Linux
		chromedp.Flag("disable-gpu", true),           // Recommended for headless Linux
		chromedp.Flag("disable-dev-shm-usage", true), // Avoid /dev/shm issues on Linux
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// Start the browser now so launch failures surface here
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, &TransportError{Op: "launching browser", Err: err}
	}

	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	return &ChromeBrowser{
		ctx:         tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		timeout:     timeout,
	}, nil
}

// run executes actions on the tab with the per-command timeout. ctx only
// contributes cancellation; the tab itself lives in b.ctx.
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	if err := b.run(ctx, chromedp.Navigate(url)); err != nil {
		return &TransportError{Op: "navigating to " + url, Err: err}
	}
	return nil
}

func (b *ChromeBrowser) Fill(ctx context.Context, fieldID, text string) error {
	if err := b.run(ctx, chromedp.SendKeys("#"+fieldID, text, chromedp.ByID)); err != nil {
		return &TransportError{Op: "filling " + fieldID, Err: err}
	}
	return nil
}

func (b *ChromeBrowser) Click(ctx context.Context, controlID string) error {
	if err := b.run(ctx, chromedp.Click("#"+controlID, chromedp.ByID)); err != nil {
		return &TransportError{Op: "clicking " + controlID, Err: err}
	}
	return nil
}

func (b *ChromeBrowser) RunScript(ctx context.Context, expression string) error {
	err := b.run(ctx, chromedp.Evaluate(expression, nil))
	if err == nil {
		return nil
	}

	var exc *runtime.ExceptionDetails
	if errors.As(err, &exc) {
		err = fmt.Errorf("script threw: %s", exc.Error())
	}
	return &TransportError{Op: "running script", Err: err}
}

func (b *ChromeBrowser) Snapshot(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", &TransportError{Op: "reading page", Err: err}
	}
	return html, nil
}

// Close shuts down the tab and the browser process
func (b *ChromeBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancelTab()
	b.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}
