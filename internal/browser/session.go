// Package browser owns the headless automation session shared by the
// browser-driven pipeline stages. The session holds a single document
// context, so all callers must use it strictly sequentially.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// UserAgent presented to the site for both browser and plain fetches.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config controls session creation and default wait bounds.
type Config struct {
	Headless    bool
	NavTimeout  time.Duration
	WaitTimeout time.Duration
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		Headless:    true,
		NavTimeout:  30 * time.Second,
		WaitTimeout: 10 * time.Second,
	}
}

// Session wraps one allocated browser with one tab. It must be released
// with Close on every exit path; Close is safe to call more than once.
type Session struct {
	cfg         Config
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tabCtx      context.Context
	closed      bool
}

// NewSession starts the browser and opens the shared tab. A failure here is
// irrecoverable for the run.
func NewSession(cfg Config) (*Session, error) {
	if cfg.NavTimeout == 0 {
		cfg.NavTimeout = DefaultConfig().NavTimeout
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = DefaultConfig().WaitTimeout
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// Force browser startup now so session failure is reported at
	// acquisition time, not on the first navigation.
	startCtx, cancel := context.WithTimeout(tabCtx, cfg.NavTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("starting browser session: %w", err)
	}

	return &Session{
		cfg:         cfg,
		allocCancel: allocCancel,
		tabCancel:   tabCancel,
		tabCtx:      tabCtx,
	}, nil
}

// Close releases the tab and the browser process.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.tabCancel()
	s.allocCancel()
}

// Navigate loads a document and waits for its body.
func (s *Session) Navigate(url string) error {
	ctx, cancel := context.WithTimeout(s.tabCtx, s.cfg.NavTimeout)
	defer cancel()

	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// HTML returns the current document serialized once.
func (s *Session) HTML() (string, error) {
	ctx, cancel := context.WithTimeout(s.tabCtx, s.cfg.WaitTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	if html == "" {
		return "", fmt.Errorf("empty document")
	}
	return html, nil
}

// WaitVisible waits for a selector within the given bound. A timeout means
// "not present", reported as an error the caller may treat as non-fatal.
func (s *Session) WaitVisible(sel string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %q: %w", sel, err)
	}
	return nil
}

// Click waits for the element and clicks it.
func (s *Session) Click(sel string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("clicking %q: %w", sel, err)
	}
	return nil
}

// ClickIfPresent tries each selector in order with a short wait and clicks
// the first one found. Absence is not an error.
func (s *Session) ClickIfPresent(timeout time.Duration, selectors ...string) bool {
	for _, sel := range selectors {
		if err := s.Click(sel, timeout); err == nil {
			return true
		}
	}
	return false
}

// Text returns the trimmed text content of the first node matching sel.
func (s *Session) Text(sel string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()

	var text string
	if err := chromedp.Run(ctx, chromedp.Text(sel, &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading text of %q: %w", sel, err)
	}
	return text, nil
}

// NodeCount counts nodes matching sel in the current document.
func (s *Session) NodeCount(sel string) (int, error) {
	ctx, cancel := context.WithTimeout(s.tabCtx, s.cfg.WaitTimeout)
	defer cancel()

	var n int
	expr := fmt.Sprintf("document.querySelectorAll(%q).length", sel)
	if err := chromedp.Run(ctx, chromedp.Evaluate(expr, &n)); err != nil {
		return 0, fmt.Errorf("counting %q: %w", sel, err)
	}
	return n, nil
}

// WaitNodeCountAbove polls until more than n nodes match sel, or the bound
// elapses. Returns false on timeout.
func (s *Session) WaitNodeCountAbove(sel string, n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		count, err := s.NodeCount(sel)
		if err == nil && count > n {
			return true
		}
		time.Sleep(250 * time.Millisecond)
	}
	return false
}

// Cookies exports the session cookies for plain HTTP fetches, so the fast
// resolution path shares the browser's authentication state.
func (s *Session) Cookies() ([]*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(s.tabCtx, s.cfg.WaitTimeout)
	defer cancel()

	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("reading session cookies: %w", err)
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return out, nil
}
