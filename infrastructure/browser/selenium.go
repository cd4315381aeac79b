package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"shop_replay/domain/interfaces"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

const chromeDriverPort = 9515

// seleniumKeys maps playwright key names onto WebDriver key codes
var seleniumKeys = map[string]string{
	"Enter":     selenium.EnterKey,
	"Tab":       selenium.TabKey,
	"Escape":    selenium.EscapeKey,
	"Backspace": selenium.BackspaceKey,
	"ArrowDown": selenium.DownArrowKey,
	"ArrowUp":   selenium.UpArrowKey,
}

// SeleniumBrowser drives Chrome through chromedriver
type SeleniumBrowser struct {
	wd      selenium.WebDriver
	service *selenium.Service
	page    *SeleniumPage
	logger  *logrus.Logger
}

// findChromeDriver - finds ChromeDriver executable path
func findChromeDriver(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
	}

	commonPaths := []string{
		"/usr/local/bin/chromedriver",
		"/usr/bin/chromedriver",
		"/opt/homebrew/bin/chromedriver",
		filepath.Join(os.Getenv("HOME"), "bin", "chromedriver"),
	}
	for _, path := range commonPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	if path, err := exec.LookPath("chromedriver"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("chromedriver not found, install it or set BROWSER_DRIVER_PATH")
}

// findChromeBinary - finds Chrome/Chromium browser executable path
func findChromeBinary(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}

	chromePaths := []string{
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	}
	for _, path := range chromePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// NewSeleniumBrowser - starts chromedriver and opens a Chrome session
func NewSeleniumBrowser(opts Options, logger *logrus.Logger) (*SeleniumBrowser, error) {
	driverPath, err := findChromeDriver(opts.DriverPath)
	if err != nil {
		return nil, err
	}
	logger.Infof("Using ChromeDriver at: %s", driverPath)

	service, err := selenium.NewChromeDriverService(driverPath, chromeDriverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to start chromedriver: %w", err)
	}

	chromeCaps := chrome.Capabilities{
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--window-size=1280,720",
			"--user-agent=" + userAgent,
		},
	}
	if opts.Headless {
		chromeCaps.Args = append(chromeCaps.Args, "--headless=new")
	}
	if binary := findChromeBinary(opts.ChromeBinary); binary != "" {
		logger.Infof("Using Chrome binary at: %s", binary)
		chromeCaps.Path = binary
	}

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chromeCaps)

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", chromeDriverPort))
	if err != nil {
		service.Stop()
		if strings.Contains(err.Error(), "cannot find Chrome binary") {
			return nil, fmt.Errorf("failed to create webdriver: Chrome not found, install it or set CHROME_BINARY_PATH: %w", err)
		}
		return nil, fmt.Errorf("failed to create webdriver: %w", err)
	}

	return &SeleniumBrowser{
		wd:      wd,
		service: service,
		page:    &SeleniumPage{wd: wd, slowMo: opts.SlowMo},
		logger:  logger,
	}, nil
}

// Page returns the single page of this browser
func (s *SeleniumBrowser) Page() interfaces.Page { return s.page }

// Close - quits the session and stops chromedriver
func (s *SeleniumBrowser) Close() error {
	var closeErr error
	if s.wd != nil {
		closeErr = joinCloseErr(closeErr, "webdriver", s.wd.Quit())
		s.wd = nil
	}
	if s.service != nil {
		closeErr = joinCloseErr(closeErr, "chromedriver", s.service.Stop())
		s.service = nil
	}
	return closeErr
}

// SeleniumPage adapts a WebDriver session to interfaces.Page
type SeleniumPage struct {
	wd     selenium.WebDriver
	slowMo time.Duration
}

// locate converts a selector into a WebDriver lookup
func locate(selector string, relative bool) (by, value string) {
	if strings.HasPrefix(selector, "xpath=") {
		selector = strings.TrimPrefix(selector, "xpath=")
		if relative && strings.HasPrefix(selector, "/") {
			selector = "." + selector
		}
		return selenium.ByXPATH, selector
	}
	if xp, ok := hasTextXPath(selector); ok {
		if relative {
			xp = "." + xp
		}
		return selenium.ByXPATH, xp
	}
	return selenium.ByCSSSelector, selector
}

func isNoSuchElement(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such element")
}

func (p *SeleniumPage) wrap(el selenium.WebElement) interfaces.Element {
	if el == nil {
		return nil
	}
	return &SeleniumElement{el: el, page: p}
}

func (p *SeleniumPage) URL(ctx context.Context) (string, error) {
	return p.wd.CurrentURL()
}

func (p *SeleniumPage) Title(ctx context.Context) (string, error) {
	return p.wd.Title()
}

func (p *SeleniumPage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.wd.PageSource()
}

// Navigate - navigates to url and waits for the document to load
func (p *SeleniumPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.wd.SetPageLoadTimeout(timeout); err != nil {
		return fmt.Errorf("failed to set page load timeout: %w", err)
	}
	if err := p.wd.Get(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return p.WaitForNetworkIdle(ctx, timeout)
}

func (p *SeleniumPage) Query(ctx context.Context, selector string) (interfaces.Element, error) {
	all, err := p.QueryAll(ctx, selector)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (p *SeleniumPage) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	by, value := locate(selector, false)
	found, err := p.wd.FindElements(by, value)
	if err != nil {
		if isNoSuchElement(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]interfaces.Element, 0, len(found))
	for _, el := range found {
		out = append(out, p.wrap(el))
	}
	return out, nil
}

func (p *SeleniumPage) FindByText(ctx context.Context, text string) ([]interfaces.Element, error) {
	return p.QueryAll(ctx, "xpath="+ownTextXPath(text))
}

// WaitForSelector - polls until selector matches a displayed element
func (p *SeleniumPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) (interfaces.Element, error) {
	var hit interfaces.Element
	cond := func(wd selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		all, err := p.QueryAll(ctx, selector)
		if err != nil {
			return false, nil
		}
		for _, el := range all {
			if ok, _ := el.IsVisible(ctx); ok {
				hit = el
				return true, nil
			}
		}
		return false, nil
	}
	if err := p.wd.WaitWithTimeout(cond, timeout); err != nil {
		return nil, fmt.Errorf("element %s not visible: %w", selector, err)
	}
	return hit, nil
}

// WaitForNetworkIdle waits for document.readyState to reach "complete";
// WebDriver exposes no network activity signal
func (p *SeleniumPage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	cond := func(wd selenium.WebDriver) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		state, err := wd.ExecuteScript("return document.readyState", nil)
		if err != nil {
			return false, nil
		}
		return state == "complete", nil
	}
	return p.wd.WaitWithTimeout(cond, timeout)
}

func (p *SeleniumPage) pause() {
	if p.slowMo > 0 {
		time.Sleep(p.slowMo)
	}
}

// SeleniumElement adapts selenium.WebElement to interfaces.Element
type SeleniumElement struct {
	el   selenium.WebElement
	page *SeleniumPage
}

func (e *SeleniumElement) TagName(ctx context.Context) (string, error) {
	tag, err := e.el.TagName()
	return strings.ToLower(tag), err
}

func (e *SeleniumElement) Text(ctx context.Context) (string, error) {
	return e.el.Text()
}

// Attribute returns "" for attributes the element does not carry
func (e *SeleniumElement) Attribute(ctx context.Context, name string) (string, error) {
	v, err := e.el.GetAttribute(name)
	if err != nil && strings.Contains(err.Error(), "nil return value") {
		return "", nil
	}
	return v, err
}

func (e *SeleniumElement) IsVisible(ctx context.Context) (bool, error) {
	return e.el.IsDisplayed()
}

func (e *SeleniumElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer e.page.pause()
	return e.el.Click()
}

func (e *SeleniumElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer e.page.pause()
	if err := e.el.Clear(); err != nil {
		return fmt.Errorf("failed to clear field: %w", err)
	}
	if value == "" {
		return nil
	}
	return e.el.SendKeys(value)
}

func (e *SeleniumElement) Press(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer e.page.pause()
	if code, ok := seleniumKeys[key]; ok {
		key = code
	}
	return e.el.SendKeys(key)
}

func (e *SeleniumElement) ScrollIntoView(ctx context.Context) error {
	_, err := e.page.wd.ExecuteScript("arguments[0].scrollIntoView({block: 'center'});", []interface{}{e.el})
	return err
}

func (e *SeleniumElement) Query(ctx context.Context, selector string) (interfaces.Element, error) {
	by, value := locate(selector, true)
	found, err := e.el.FindElement(by, value)
	if err != nil {
		if isNoSuchElement(err) {
			return nil, nil
		}
		return nil, err
	}
	return e.page.wrap(found), nil
}

func (e *SeleniumElement) QueryAll(ctx context.Context, selector string) ([]interfaces.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	by, value := locate(selector, true)
	found, err := e.el.FindElements(by, value)
	if err != nil {
		if isNoSuchElement(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]interfaces.Element, 0, len(found))
	for _, el := range found {
		out = append(out, e.page.wrap(el))
	}
	return out, nil
}

func (e *SeleniumElement) relative(xpath string) (interfaces.Element, error) {
	found, err := e.el.FindElement(selenium.ByXPATH, xpath)
	if err != nil {
		if isNoSuchElement(err) {
			return nil, nil
		}
		return nil, err
	}
	return e.page.wrap(found), nil
}

func (e *SeleniumElement) Parent(ctx context.Context) (interfaces.Element, error) {
	return e.relative("parent::*")
}

func (e *SeleniumElement) PreviousSibling(ctx context.Context) (interfaces.Element, error) {
	return e.relative("preceding-sibling::*[1]")
}

func (e *SeleniumElement) NextSibling(ctx context.Context) (interfaces.Element, error) {
	return e.relative("following-sibling::*[1]")
}

var (
	_ Browser            = (*SeleniumBrowser)(nil)
	_ interfaces.Page    = (*SeleniumPage)(nil)
	_ interfaces.Element = (*SeleniumElement)(nil)
)
