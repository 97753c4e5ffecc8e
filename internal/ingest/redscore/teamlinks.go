package redscore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/fortuna/hermes/internal/audit"
	"github.com/fortuna/hermes/internal/browser"
)

// LinkCache remembers detail-page resolutions across runs. Implementations
// must be safe for concurrent use; a nil cache disables caching.
type LinkCache interface {
	GetLinks(ctx context.Context, detailURL string) (home, away string, ok bool)
	SetLinks(ctx context.Context, detailURL, home, away string)
}

// ResolverConfig bounds both resolution tiers.
type ResolverConfig struct {
	BaseURL      string
	Workers      int
	Retries      int
	RetryDelay   time.Duration
	FetchTimeout time.Duration
}

// LinkResolver maps fixture detail pages to the two participant team URLs.
// Tier one is a plain fetch carrying the browser session's cookies, run on
// a bounded worker pool. Fixtures it cannot resolve are queued and retried
// sequentially through the browser, so the fast path stays fast.
type LinkResolver struct {
	sess    *browser.Session
	client  *http.Client
	cache   LinkCache
	audit   audit.Recorder
	logger  zerolog.Logger
	cfg     ResolverConfig
	cookies []*http.Cookie

	// Overridable in tests.
	fetchFast func(ctx context.Context, url string) (string, error)
	fetchSlow func(ctx context.Context, url string) (string, error)
}

// NewLinkResolver wires the resolution stage.
func NewLinkResolver(sess *browser.Session, cache LinkCache, rec audit.Recorder, logger zerolog.Logger, cfg ResolverConfig) *LinkResolver {
	if cfg.Workers <= 0 {
		cfg.Workers = 6
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 15 * time.Second
	}

	r := &LinkResolver{
		sess:   sess,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		cache:  cache,
		audit:  rec,
		logger: logger.With().Str("component", "teamlinks").Logger(),
		cfg:    cfg,
	}
	r.fetchFast = r.httpFetch
	r.fetchSlow = r.browserFetch
	return r
}

// Resolve returns team URL -> league context for every fixture whose two
// team pages could be found. Irrecoverable fixtures are audited, never
// fatal.
func (r *LinkResolver) Resolve(ctx context.Context, fixtures []Fixture) map[string]string {
	visits := make(map[string]string)
	var mu sync.Mutex

	record := func(f Fixture, home, away string) {
		mu.Lock()
		visits[home] = f.League
		visits[away] = f.League
		mu.Unlock()
	}

	if r.sess != nil {
		if cookies, err := r.sess.Cookies(); err == nil {
			r.cookies = cookies
		} else {
			r.logger.Warn().Err(err).Msg("session cookies unavailable for fast path")
		}
	}

	// Tier one: bounded worker pool, order irrelevant.
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.Workers)
	var pending []Fixture
	var pendingMu sync.Mutex

	for _, f := range fixtures {
		if home, away, ok := r.cachedLinks(ctx, f.DetailURL); ok {
			record(f, home, away)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(f Fixture) {
			defer wg.Done()
			defer func() { <-sem }()

			home, away, err := r.resolveOnce(ctx, f.DetailURL, r.fetchFast)
			if err != nil {
				pendingMu.Lock()
				pending = append(pending, f)
				pendingMu.Unlock()
				r.logger.Debug().Err(err).Str("url", f.DetailURL).Msg("fast path missed, queued for fallback")
				return
			}

			record(f, home, away)
			r.storeLinks(ctx, f.DetailURL, home, away)
		}(f)
	}
	wg.Wait()

	// Tier two: browser-driven, strictly sequential, bounded retries.
	for _, f := range pending {
		home, away, err := r.resolveWithRetries(ctx, f.DetailURL)
		if err != nil {
			r.audit.Record(audit.CategoryUnresolvedLinks, err.Error(), f.DetailURL, f.League, f.Home, f.Away)
			continue
		}
		record(f, home, away)
		r.storeLinks(ctx, f.DetailURL, home, away)
	}

	r.logger.Info().
		Int("fixtures", len(fixtures)).
		Int("fallback", len(pending)).
		Int("teams", len(visits)).
		Msg("team link resolution complete")
	return visits
}

func (r *LinkResolver) resolveWithRetries(ctx context.Context, url string) (string, string, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		home, away, err := r.resolveOnce(ctx, url, r.fetchSlow)
		if err == nil {
			return home, away, nil
		}
		lastErr = err
		if attempt < r.cfg.Retries {
			time.Sleep(r.cfg.RetryDelay)
		}
	}
	return "", "", fmt.Errorf("both tiers exhausted after %d retries: %w", r.cfg.Retries, lastErr)
}

func (r *LinkResolver) resolveOnce(ctx context.Context, url string, fetch func(context.Context, string) (string, error)) (string, string, error) {
	html, err := fetch(ctx, url)
	if err != nil {
		return "", "", err
	}

	anchors, err := ExtractTeamAnchors(html, r.cfg.BaseURL)
	if err != nil {
		return "", "", err
	}
	return anchors[0], anchors[1], nil
}

// ExtractTeamAnchors finds the two participant team URLs in a fixture
// detail document, tolerating markup drift via the selector variants.
func ExtractTeamAnchors(html, baseURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing detail page: %w", err)
	}

	for _, sel := range teamAnchorSelectors {
		var links []string
		seen := make(map[string]bool)
		doc.Find(sel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok {
				return true
			}
			u := absoluteURL(baseURL, strings.TrimSpace(href))
			if u == "" || seen[u] {
				return true
			}
			seen[u] = true
			links = append(links, u)
			return len(links) < 2
		})
		if len(links) == 2 {
			return links, nil
		}
	}

	return nil, fmt.Errorf("fewer than two team anchors found")
}

func (r *LinkResolver) httpFetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", browser.UserAgent)
	for _, c := range r.cookies {
		req.AddCookie(c)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return string(body), nil
}

func (r *LinkResolver) browserFetch(_ context.Context, url string) (string, error) {
	if err := r.sess.Navigate(url); err != nil {
		return "", err
	}
	// Wait for any known anchor variant; a timeout just means the next
	// retry or the audit path takes over.
	_ = r.sess.WaitVisible(selectorUnion(teamAnchorSelectors), r.cfg.FetchTimeout)
	return r.sess.HTML()
}

func (r *LinkResolver) cachedLinks(ctx context.Context, detailURL string) (string, string, bool) {
	if r.cache == nil {
		return "", "", false
	}
	return r.cache.GetLinks(ctx, detailURL)
}

func (r *LinkResolver) storeLinks(ctx context.Context, detailURL, home, away string) {
	if r.cache == nil {
		return
	}
	r.cache.SetLinks(ctx, detailURL, home, away)
}
