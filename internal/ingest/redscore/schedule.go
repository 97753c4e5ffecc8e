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

// ScheduleConfig bounds the browser interaction on the schedule page.
type ScheduleConfig struct {
	URL            string
	BaseURL        string
	ConsentTimeout time.Duration
	SectionTimeout time.Duration
}

// ScheduleScraper discovers tomorrow's fixtures. It drives the shared
// browser session through {load, consent, expand sections} and then parses
// the final document exactly once.
type ScheduleScraper struct {
	sess   *browser.Session
	allow  *leagues.AllowList
	audit  audit.Recorder
	logger zerolog.Logger
	cfg    ScheduleConfig

	// fetch produces the fully expanded schedule document. Overridable in
	// tests; the default runs the browser choreography.
	fetch func(ctx context.Context) (string, error)
}

// NewScheduleScraper wires the discovery stage.
func NewScheduleScraper(sess *browser.Session, allow *leagues.AllowList, rec audit.Recorder, logger zerolog.Logger, cfg ScheduleConfig) *ScheduleScraper {
	if cfg.ConsentTimeout == 0 {
		cfg.ConsentTimeout = 3 * time.Second
	}
	if cfg.SectionTimeout == 0 {
		cfg.SectionTimeout = 8 * time.Second
	}

	s := &ScheduleScraper{
		sess:   sess,
		allow:  allow,
		audit:  rec,
		logger: logger.With().Str("component", "schedule").Logger(),
		cfg:    cfg,
	}
	s.fetch = s.browserFetch
	return s
}

// Fixtures returns the deduplicated fixture list for allowed leagues.
// Failure to produce any schedule document is fatal for the run; everything
// past that point degrades per item.
func (s *ScheduleScraper) Fixtures(ctx context.Context) ([]Fixture, error) {
	html, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading schedule page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing schedule page: %w", err)
	}

	fixtures := s.parse(doc)
	s.logger.Info().Int("fixtures", len(fixtures)).Msg("schedule discovery complete")
	return fixtures, nil
}

// browserFetch performs the page state machine: loaded -> consent handled
// -> sections expanded. Timeouts on individual sections are tolerated.
func (s *ScheduleScraper) browserFetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := s.sess.Navigate(s.cfg.URL); err != nil {
		return "", err
	}

	// Consent banner is optional; absence is not an error.
	if s.sess.ClickIfPresent(s.cfg.ConsentTimeout, consentSelectors...) {
		s.logger.Debug().Msg("consent banner dismissed")
	}

	if err := s.waitForSections(); err != nil {
		return "", err
	}

	s.expandSections()

	return s.sess.HTML()
}

func (s *ScheduleScraper) waitForSections() error {
	for _, sel := range sectionSelectors {
		if err := s.sess.WaitVisible(sel, s.cfg.SectionTimeout); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no competition sections appeared within %s", s.cfg.SectionTimeout)
}

// expandSections clicks open every collapsed section whose league is in the
// allow-list and waits for its rows to materialize, bounded per section.
func (s *ScheduleScraper) expandSections() {
	sectionSel := ""
	total := 0
	for _, sel := range sectionSelectors {
		if n, err := s.sess.NodeCount(sel); err == nil && n > 0 {
			sectionSel, total = sel, n
			break
		}
	}
	if sectionSel == "" {
		return
	}

	for i := 1; i <= total; i++ {
		base := fmt.Sprintf("%s:nth-of-type(%d)", sectionSel, i)

		title := ""
		for _, tsel := range sectionTitleSelectors {
			if t, err := s.sess.Text(base+" "+tsel, s.cfg.SectionTimeout); err == nil && collapseSpace(t) != "" {
				title = collapseSpace(t)
				break
			}
		}
		if title == "" {
			continue
		}
		if _, ok := s.allow.Resolve(title); !ok {
			continue
		}

		scopedRows := scopedUnion(base, fixtureRowSelectors)
		if n, err := s.sess.NodeCount(scopedRows); err == nil && n > 0 {
			continue // already expanded
		}

		clicked := false
		for _, tog := range sectionToggleSelectors {
			if err := s.sess.Click(base+" "+tog, s.cfg.SectionTimeout); err == nil {
				clicked = true
				break
			}
		}
		if !clicked {
			s.logger.Warn().Str("league", title).Msg("could not expand section")
			continue
		}

		if !s.sess.WaitNodeCountAbove(scopedRows, 0, s.cfg.SectionTimeout) {
			s.logger.Warn().Str("league", title).Msg("section rows did not materialize")
		}
	}
}

// parse extracts fixtures from the expanded document and deduplicates them
// by (league, kickoff, home, away), preferring the candidate with odds.
func (s *ScheduleScraper) parse(doc *goquery.Document) []Fixture {
	var ordered []Fixture
	index := make(map[string]int)
	incomplete := 0

	doc.Find(selectorUnion(sectionSelectors)).Each(func(_ int, sec *goquery.Selection) {
		label := firstText(sec, sectionTitleSelectors...)
		league, ok := s.allow.Resolve(label)
		if !ok {
			return
		}

		sec.Find(selectorUnion(fixtureRowSelectors)).Each(func(_ int, row *goquery.Selection) {
			f := Fixture{
				League:    league,
				Kickoff:   firstText(row, fixtureTimeSelectors...),
				Home:      firstText(row, fixtureHomeSelectors...),
				Away:      firstText(row, fixtureAwaySelectors...),
				DetailURL: absoluteURL(s.cfg.BaseURL, firstAttr(row, "href", fixtureLinkSelectors...)),
				OddHome:   firstText(row, fixtureOddSelectors[0]...),
				OddDraw:   firstText(row, fixtureOddSelectors[1]...),
				OddAway:   firstText(row, fixtureOddSelectors[2]...),
			}
			f.ID = rowID(row, f.DetailURL)

			if f.Kickoff == "" || f.Home == "" || f.Away == "" || f.DetailURL == "" {
				incomplete++
				s.audit.Record(audit.CategoryIncompleteFixture, "missing required fields",
					league, f.Kickoff, f.Home, f.Away, f.DetailURL)
				return
			}

			key := f.Key()
			prev, seen := index[key]
			switch {
			case !seen:
				index[key] = len(ordered)
				ordered = append(ordered, f)
			case f.HasOdds() && !ordered[prev].HasOdds():
				s.audit.Record(audit.CategoryDuplicate, "replaced by version with odds", key)
				ordered[prev] = f
			default:
				s.audit.Record(audit.CategoryDuplicate, "duplicate, no priority", key)
			}
		})
	})

	if incomplete > 0 {
		s.logger.Warn().Int("incomplete", incomplete).Msg("rejected incomplete fixture rows")
	}
	return ordered
}

func rowID(row *goquery.Selection, detailURL string) string {
	if id, ok := row.Attr("data-match-id"); ok && id != "" {
		return id
	}
	if id, ok := row.Attr("data-id"); ok && id != "" {
		return id
	}
	if detailURL == "" {
		return ""
	}
	trimmed := strings.TrimRight(detailURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
