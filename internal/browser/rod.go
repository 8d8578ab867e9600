package browser

import (
	"context"
	"fmt"
	"github.com/csr-ugra/flight-price-parser/internal"
	"github.com/csr-ugra/flight-price-parser/internal/selector"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodLauncher keeps one browser connection and gives every session its own incognito context.
type RodLauncher struct {
	browser *rod.Browser
	kill    func()
}

// NewRodLauncher connects to a managed launcher at devtoolsWebsocketUrl, or
// launches a local headless browser when the url is empty.
func NewRodLauncher(devtoolsWebsocketUrl string) (*RodLauncher, error) {
	if devtoolsWebsocketUrl != "" {
		var browser *rod.Browser
		err := rod.Try(func() {
			l := launcher.MustNewManaged(devtoolsWebsocketUrl)
			browser = rod.New().Client(l.MustClient()).MustConnect()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to browser at %s: %w", devtoolsWebsocketUrl, err)
		}

		return &RodLauncher{browser: browser}, nil
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("window-size", "1920,1080")

	controlUrl, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch local browser: %w", err)
	}

	browser := rod.New().ControlURL(controlUrl)
	if err = browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to local browser: %w", err)
	}

	return &RodLauncher{browser: browser, kill: l.Kill}, nil
}

func (l *RodLauncher) Launch(ctx context.Context) (Session, error) {
	incognito, err := l.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}

	if err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1920, Height: 1080}); err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	return &rodSession{browser: incognito, page: page}, nil
}

func (l *RodLauncher) Close() error {
	err := l.browser.Close()
	if l.kill != nil {
		l.kill()
	}

	return err
}

type rodSession struct {
	browser *rod.Browser
	page    *rod.Page
}

func (s *rodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return err
	}

	return page.WaitLoad()
}

func (s *rodSession) elements(ctx context.Context, sel selector.Selector) (rod.Elements, error) {
	page := s.page.Context(ctx)
	if sel.IsXPath() {
		return page.ElementsX(sel.String())
	}

	return page.Elements(sel.String())
}

func (s *rodSession) Count(ctx context.Context, sel selector.Selector) (int, error) {
	elements, err := s.elements(ctx, sel)
	if err != nil {
		return 0, err
	}

	return len(elements), nil
}

func (s *rodSession) Click(ctx context.Context, sel selector.Selector) error {
	elements, err := s.elements(ctx, sel)
	if err != nil {
		return err
	}

	if len(elements) == 0 {
		return internal.NewElementNotFoundError(sel)
	}

	return elements.First().Click(proto.InputMouseButtonLeft, 1)
}

func (s *rodSession) PressEscape(ctx context.Context) error {
	return s.page.Context(ctx).KeyActions().Press(input.Escape).Do()
}

func (s *rodSession) WaitVisible(ctx context.Context, sel selector.Selector) error {
	page := s.page.Context(ctx)

	var el *rod.Element
	var err error
	if sel.IsXPath() {
		el, err = page.ElementX(sel.String())
	} else {
		el, err = page.Element(sel.String())
	}
	if err != nil {
		return err
	}

	return el.WaitVisible()
}

func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close disposes the incognito context even when the launch context is already done.
func (s *rodSession) Close() error {
	ctx := context.Background()

	_ = s.page.Context(ctx).Close()
	return s.browser.Context(ctx).Close()
}
