package redscore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/fortuna/hermes/internal/audit"
	"github.com/fortuna/hermes/internal/browser"
	"github.com/fortuna/hermes/internal/leagues"
)

// historyRowCells is the minimum cell count of a usable history grid row.
// Column layout: date, league badge, home, FT score, away, HT score,
// shots, shots on target, attacks, corners, (form), odd H, odd D, odd A.
const historyRowCells = 14

// HistoryConfig bounds the per-team browser interaction.
type HistoryConfig struct {
	MaxRows         int
	LoadMoreTimeout time.Duration
}

// KnownFunc reports whether a raw row's match key is already persisted.
type KnownFunc func(row RawMatchRow) bool

// HistoryScraper expands a team page's history grid up to the configured
// cap and extracts its raw rows, newest-first as the page orders them.
type HistoryScraper struct {
	sess   *browser.Session
	allow  *leagues.AllowList
	audit  audit.Recorder
	logger zerolog.Logger
	cfg    HistoryConfig

	// fetch produces the fully expanded team document; overridable in tests.
	fetch func(ctx context.Context, teamURL string) (string, error)
}

// NewHistoryScraper wires the history stage.
func NewHistoryScraper(sess *browser.Session, allow *leagues.AllowList, rec audit.Recorder, logger zerolog.Logger, cfg HistoryConfig) *HistoryScraper {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 50
	}
	if cfg.LoadMoreTimeout == 0 {
		cfg.LoadMoreTimeout = 5 * time.Second
	}

	h := &HistoryScraper{
		sess:   sess,
		allow:  allow,
		audit:  rec,
		logger: logger.With().Str("component", "history").Logger(),
		cfg:    cfg,
	}
	h.fetch = h.browserFetch
	return h
}

// TeamHistory returns up to MaxRows raw rows for one team. Rows whose
// league is out of scope and rows whose key is already known are skipped;
// the scan always continues to the cap since page ordering is not
// guaranteed monotonic.
func (h *HistoryScraper) TeamHistory(ctx context.Context, team TeamRef, known KnownFunc) ([]RawMatchRow, error) {
	html, err := h.fetch(ctx, team.URL)
	if err != nil {
		return nil, fmt.Errorf("loading team page %s: %w", team.URL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing team page %s: %w", team.URL, err)
	}

	rows, skippedKnown, filtered := h.parse(doc, team, known)
	h.logger.Debug().
		Str("team", team.URL).
		Int("rows", len(rows)).
		Int("known", skippedKnown).
		Int("filtered", filtered).
		Msg("team history scraped")
	return rows, nil
}

// browserFetch navigates to the team page and triggers "load more" until
// the cap is reached or the grid stops growing. A non-responsive control
// ends the loop; it is not an error.
func (h *HistoryScraper) browserFetch(ctx context.Context, teamURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := h.sess.Navigate(teamURL); err != nil {
		return "", err
	}

	rowSel := historyRowSelector()
	for {
		count, err := h.sess.NodeCount(rowSel)
		if err != nil {
			break
		}
		if count >= h.cfg.MaxRows {
			break
		}
		if !h.sess.ClickIfPresent(h.cfg.LoadMoreTimeout, seeMoreSelectors...) {
			break
		}
		if !h.sess.WaitNodeCountAbove(rowSel, count, h.cfg.LoadMoreTimeout) {
			break
		}
	}

	return h.sess.HTML()
}

func historyRowSelector() string {
	var scoped []string
	for _, grid := range historyGridSelectors {
		for _, row := range historyRowSelectors {
			scoped = append(scoped, grid+" "+row)
		}
	}
	return selectorUnion(scoped)
}

// parse extracts raw rows from the expanded grid. Per-row failures are
// isolated: a malformed row is audited and the scan moves on.
func (h *HistoryScraper) parse(doc *goquery.Document, team TeamRef, known KnownFunc) ([]RawMatchRow, int, int) {
	grid := doc.Find(selectorUnion(historyGridSelectors)).First()
	if grid.Length() == 0 {
		h.audit.Record(audit.CategoryTeamError, "history grid not found", team.URL)
		return nil, 0, 0
	}

	var rows []RawMatchRow
	skippedKnown := 0
	filtered := 0

	grid.Find(selectorUnion(historyRowSelectors)).EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if len(rows) >= h.cfg.MaxRows {
			return false
		}

		cells := tr.Find("td")
		if cells.Length() < historyRowCells {
			h.audit.Record(audit.CategoryRowError,
				fmt.Sprintf("expected at least %d cells, got %d", historyRowCells, cells.Length()), team.URL)
			return true
		}

		cell := func(i int) string { return collapseSpace(cells.Eq(i).Text()) }

		label := rowLeagueLabel(cells, team.League)
		league, ok := h.resolveLeague(label, team.League)
		if !ok {
			filtered++ // out of scope, not an error
			return true
		}

		row := RawMatchRow{
			League:        league,
			Date:          cell(0),
			Home:          cell(2),
			Away:          cell(4),
			ScoreFT:       cell(3),
			ScoreHT:       cell(5),
			Shots:         cell(6),
			ShotsOnTarget: cell(7),
			Attacks:       cell(8),
			Corners:       cell(9),
			OddHome:       cell(11),
			OddDraw:       cell(12),
			OddAway:       cell(13),
		}

		if known != nil && known(row) {
			skippedKnown++
			return true // continue, ordering may not be monotonic
		}

		rows = append(rows, row)
		return true
	})

	return rows, skippedKnown, filtered
}

// rowLeagueLabel rebuilds the full competition label for one row: the grid
// only shows the competition badge, so the country prefix comes from the
// team's league context.
func rowLeagueLabel(cells *goquery.Selection, teamLeague string) string {
	badge := firstAttr(cells.Eq(1), "alt", "img")
	if badge == "" {
		badge = collapseSpace(cells.Eq(1).Text())
	}
	if badge == "" {
		return ""
	}

	country := teamLeague
	if i := strings.Index(teamLeague, " - "); i > 0 {
		country = teamLeague[:i]
	}
	return country + " - " + badge
}

// resolveLeague maps a row label to a canonical league, trying the team's
// primary league first and the global allow-list second.
func (h *HistoryScraper) resolveLeague(label, teamLeague string) (string, bool) {
	if label == "" {
		return "", false
	}
	if leagues.Normalize(label) == leagues.Normalize(teamLeague) {
		return teamLeague, true
	}
	return h.allow.Resolve(label)
}
