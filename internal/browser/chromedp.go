package browser

import (
	"context"
	"fmt"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/selector"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type ChromedpLauncher struct {
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
}

// NewChromedpLauncher connects to the browser behind devtoolsWebsocketUrl,
// or starts a local headless one per session when the url is empty.
func NewChromedpLauncher(ctx context.Context, devtoolsWebsocketUrl string) *ChromedpLauncher {
	// sessions outlive a single run, only Close stops the allocator
	ctx = context.WithoutCancel(ctx)

	if devtoolsWebsocketUrl != "" {
		allocatorCtx, allocatorCancel := chromedp.NewRemoteAllocator(ctx, devtoolsWebsocketUrl, chromedp.NoModifyURL)
		return &ChromedpLauncher{allocatorCtx: allocatorCtx, allocatorCancel: allocatorCancel}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.WindowSize(1920, 1080),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.DisableGPU,
		chromedp.UserAgent(userAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	return &ChromedpLauncher{allocatorCtx: allocatorCtx, allocatorCancel: allocatorCancel}
}

func (l *ChromedpLauncher) Launch(ctx context.Context) (Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(l.allocatorCtx)

	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	// an empty run starts the browser and opens the tab
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	return &chromedpSession{ctx: tabCtx, cancel: tabCancel}, nil
}

func (l *ChromedpLauncher) Close() error {
	l.allocatorCancel()
	return nil
}

type chromedpSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// run executes actions on the tab, aborting them once ctx is done.
func (s *chromedpSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return err
}

func queryOption(sel selector.Selector, all bool) chromedp.QueryOption {
	if sel.IsXPath() {
		return chromedp.BySearch
	}
	if all {
		return chromedp.ByQueryAll
	}

	return chromedp.ByQuery
}

func (s *chromedpSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromedpSession) Count(ctx context.Context, sel selector.Selector) (count int, err error) {
	err = s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var nodes []*cdp.Node
		if err := chromedp.Nodes(sel.String(), &nodes, chromedp.AtLeast(0), queryOption(sel, true)).Do(ctx); err != nil {
			return err
		}

		count = len(nodes)
		return nil
	}))

	return count, err
}

func (s *chromedpSession) Click(ctx context.Context, sel selector.Selector) error {
	count, err := s.Count(ctx, sel)
	if err != nil {
		return err
	}

	if count == 0 {
		return internal.NewElementNotFoundError(sel)
	}

	return s.run(ctx, chromedp.Click(sel.String(), queryOption(sel, false)))
}

func (s *chromedpSession) PressEscape(ctx context.Context) error {
	return s.run(ctx, input.DispatchKeyEvent(input.KeyDown).WithKey("Escape"))
}

func (s *chromedpSession) WaitVisible(ctx context.Context, sel selector.Selector) error {
	return s.run(ctx, chromedp.WaitVisible(sel.String(), queryOption(sel, false)))
}

func (s *chromedpSession) HTML(ctx context.Context) (html string, err error) {
	err = s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *chromedpSession) Close() error {
	s.cancel()
	return nil
}
