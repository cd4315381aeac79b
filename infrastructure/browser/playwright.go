package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shop_replay/domain/interfaces"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

var launchArgs = []string{
	"--disable-popup-blocking",
	"--disable-blink-features=AutomationControlled",
	"--disable-dev-shm-usage",
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-infobars",
	"--disable-notifications",
}

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// PlaywrightBrowser drives Chromium through playwright-go
type PlaywrightBrowser struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	context   playwright.BrowserContext
	page      *PlaywrightPage
	stateFile string
	logger    *logrus.Logger
}

// NewPlaywrightBrowser - launches Chromium and opens one page
func NewPlaywrightBrowser(opts Options, logger *logrus.Logger) (*PlaywrightBrowser, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 720,
		},
		JavaScriptEnabled: playwright.Bool(true),
		IgnoreHttpsErrors: playwright.Bool(true),
		UserAgent:         playwright.String(userAgent),
	}
	if state := loadStorageState(opts.StateFile, logger); state != nil {
		contextOptions.StorageState = state
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
		Args:     launchArgs,
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(contextOptions)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.OnDialog(func(dialog playwright.Dialog) {
		logger.Debugf("Accepting %s dialog: %s", dialog.Type(), dialog.Message())
		dialog.Accept()
	})

	logger.Infof("Chromium launched (headless=%v, slow_mo=%s)", opts.Headless, opts.SlowMo)

	return &PlaywrightBrowser{
		pw:        pw,
		browser:   browser,
		context:   bctx,
		page:      &PlaywrightPage{page: page},
		stateFile: opts.StateFile,
		logger:    logger,
	}, nil
}

func loadStorageState(path string, logger *logrus.Logger) *playwright.OptionalStorageState {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var state playwright.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		logger.WithError(err).Warnf("Ignoring unreadable browser state %s", path)
		return nil
	}
	return state.ToOptionalStorageState()
}

// Page returns the single page of this browser
func (b *PlaywrightBrowser) Page() interfaces.Page { return b.page }

// Close - saves state and tears the browser down
func (b *PlaywrightBrowser) Close() error {
	var closeErr error

	if b.context != nil && b.stateFile != "" {
		if err := os.MkdirAll(filepath.Dir(b.stateFile), 0755); err == nil {
			if _, err := b.context.StorageState(b.stateFile); err != nil && !isClosedErr(err) {
				closeErr = fmt.Errorf("failed to save browser state: %w", err)
			}
		}
	}
	if b.context != nil {
		closeErr = joinCloseErr(closeErr, "context", b.context.Close())
		b.context = nil
	}
	if b.browser != nil {
		closeErr = joinCloseErr(closeErr, "browser", b.browser.Close())
		b.browser = nil
	}
	if b.pw != nil {
		closeErr = joinCloseErr(closeErr, "playwright", b.pw.Stop())
		b.pw = nil
	}
	return closeErr
}

// PlaywrightPage adapts playwright.Page to interfaces.Page
type PlaywrightPage struct {
	page playwright.Page
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *PlaywrightPage) wrap(h playwright.ElementHandle) interfaces.Element {
	if h == nil {
		return nil
	}
	return &PlaywrightElement{handle: h, page: p}
}

func (p *PlaywrightPage) wrapAll(handles []playwright.ElementHandle) []interfaces.Element {
	out := make([]interfaces.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, p.wrap(h))
	}
	return out
}

func (p *PlaywrightPage) URL(ctx context.Context) (string, error) {
	return p.page.URL(), nil
}

func (p *PlaywrightPage) Title(ctx context.Context) (string, error) {
	return p.page.Title()
}

func (p *PlaywrightPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.Content()
}

// Navigate - navigates to url and waits for the network to go idle
func (p *PlaywrightPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   ms(timeout),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *PlaywrightPage) Query(ctx context.Context, selector string) (interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := p.page.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	return p.wrap(h), nil
}

func (p *PlaywrightPage) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return p.wrapAll(handles), nil
}

func (p *PlaywrightPage) FindByText(ctx context.Context, text string) ([]interfaces.Element, error) {
	return p.QueryAll(ctx, "xpath="+ownTextXPath(text))
}

func (p *PlaywrightPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("element %s not visible: %w", selector, err)
	}
	return p.wrap(h), nil
}

func (p *PlaywrightPage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(timeout),
	})
}

// PlaywrightElement adapts playwright.ElementHandle to interfaces.Element
type PlaywrightElement struct {
	handle playwright.ElementHandle
	page   *PlaywrightPage
}

func (e *PlaywrightElement) TagName(ctx context.Context) (string, error) {
	v, err := e.handle.Evaluate("el => el.tagName.toLowerCase()")
	if err != nil {
		return "", err
	}
	tag, _ := v.(string)
	return tag, nil
}

func (e *PlaywrightElement) Text(ctx context.Context) (string, error) {
	return e.handle.TextContent()
}

func (e *PlaywrightElement) Attribute(ctx context.Context, name string) (string, error) {
	return e.handle.GetAttribute(name)
}

func (e *PlaywrightElement) IsVisible(ctx context.Context) (bool, error) {
	return e.handle.IsVisible()
}

func (e *PlaywrightElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Click(playwright.ElementHandleClickOptions{
		Timeout: playwright.Float(5000),
	})
}

func (e *PlaywrightElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Fill(value)
}

func (e *PlaywrightElement) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return e.handle.Press(key)
}

func (e *PlaywrightElement) ScrollIntoView(ctx context.Context) error {
	return e.handle.ScrollIntoViewIfNeeded()
}

func (e *PlaywrightElement) Query(ctx context.Context, selector string) (interfaces.Element, error) {
	h, err := e.handle.QuerySelector(selector)
	if err != nil {
		return nil, err
	}
	return e.page.wrap(h), nil
}

func (e *PlaywrightElement) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := e.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, err
	}
	return e.page.wrapAll(handles), nil
}

// relative evaluates a DOM traversal expression and wraps the element it yields
func (e *PlaywrightElement) relative(expression string) (interfaces.Element, error) {
	js, err := e.handle.EvaluateHandle(expression)
	if err != nil {
		return nil, err
	}
	if js == nil {
		return nil, nil
	}
	return e.page.wrap(js.AsElement()), nil
}

func (e *PlaywrightElement) Parent(ctx context.Context) (interfaces.Element, error) {
	return e.relative("el => el.parentElement")
}

func (e *PlaywrightElement) PreviousSibling(ctx context.Context) (interfaces.Element, error) {
	return e.relative("el => el.previousElementSibling")
}

func (e *PlaywrightElement) NextSibling(ctx context.Context) (interfaces.Element, error) {
	return e.relative("el => el.nextElementSibling")
}

var (
	_ Browser            = (*PlaywrightBrowser)(nil)
	_ interfaces.Page    = (*PlaywrightPage)(nil)
	_ interfaces.Element = (*PlaywrightElement)(nil)
)
