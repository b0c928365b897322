package page

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ramkansal/taglift/pkg/plugin"
)

// Browser uses Rod (headless Chrome) to drive profile pages.
type Browser struct {
	browser     *rod.Browser
	timeout     time.Duration
	pageTimeout time.Duration
	userAgent   string
}

// BrowserConfig holds configuration for the browser.
type BrowserConfig struct {
	Timeout     time.Duration
	PageTimeout time.Duration
	UserAgent   string
	Headless    bool
	Bin         string
}

// NewBrowser launches Chrome and connects to it.
func NewBrowser(cfg BrowserConfig) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	pageTimeout := cfg.PageTimeout
	if pageTimeout == 0 {
		pageTimeout = 15 * time.Second
	}

	return &Browser{
		browser:     browser,
		timeout:     timeout,
		pageTimeout: pageTimeout,
		userAgent:   cfg.UserAgent,
	}, nil
}

// Open creates a tab and navigates it to targetURL.
func (b *Browser) Open(ctx context.Context, targetURL string) (*Live, error) {
	rodPage, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if b.userAgent != "" {
		_ = rodPage.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: b.userAgent,
		})
	}

	if err := rodPage.Context(ctx).Timeout(b.timeout).Navigate(targetURL); err != nil {
		_ = rodPage.Close()
		return nil, fmt.Errorf("navigate %s: %w", targetURL, err)
	}

	// The profile is rendered client-side; a load timeout still leaves a
	// usable page.
	_ = rodPage.Context(ctx).Timeout(b.pageTimeout).WaitLoad()

	return &Live{page: rodPage}, nil
}

func (b *Browser) Close() error {
	if b.browser != nil {
		return b.browser.Close()
	}
	return nil
}

// Live is a plugin.Page backed by a real browser tab.
type Live struct {
	page *rod.Page
}

func (l *Live) URL(ctx context.Context) (string, error) {
	info, err := l.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (l *Live) Document(ctx context.Context) (*goquery.Document, error) {
	html, err := l.page.Context(ctx).HTML()
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Click activates the first element matching selector the way a script
// would, without waiting for it to become visible.
func (l *Live) Click(ctx context.Context, selector string) error {
	has, el, err := l.page.Context(ctx).Has(selector)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: %s", plugin.ErrElementNotFound, selector)
	}
	_, err = el.Eval(`() => this.click()`)
	return err
}

func (l *Live) PressEscape(ctx context.Context) error {
	return l.page.Context(ctx).Keyboard.Press(input.Escape)
}

// Eval runs a JavaScript function expression in the page.
func (l *Live) Eval(ctx context.Context, js string, args ...any) error {
	_, err := l.page.Context(ctx).Eval(js, args...)
	return err
}

func (l *Live) Close() error {
	return l.page.Close()
}
