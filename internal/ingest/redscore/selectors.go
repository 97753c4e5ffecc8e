package redscore

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selector alternatives per extraction point, first match wins. The site
// reworks its markup a few times a year; keeping the history of known
// variants here makes drift recoverable without touching the extractors.
var (
	consentSelectors = []string{
		"button#onetrust-accept-btn-handler",
		"button.cookie-consent__accept",
		"div.consent-banner button.accept",
	}

	sectionSelectors = []string{
		"div.competition-group",
		"section.league-block",
	}

	sectionTitleSelectors = []string{
		"div.competition-group__title",
		"h2.league-block__name",
		"a.competition-link",
	}

	sectionToggleSelectors = []string{
		"div.competition-group__header",
		"button.league-block__toggle",
	}

	fixtureRowSelectors = []string{
		"tbody tr.match-row",
		"tbody tr[data-match-id]",
		"div.fixture-row",
	}

	fixtureTimeSelectors = []string{
		"td.match-row__time",
		"span.fixture-time",
		"td:nth-child(1)",
	}

	fixtureHomeSelectors = []string{
		"td.match-row__home",
		"span.team--home",
	}

	fixtureAwaySelectors = []string{
		"td.match-row__away",
		"span.team--away",
	}

	fixtureLinkSelectors = []string{
		"a.match-row__link",
		"a[href*='/jogo/']",
		"a[href*='/match/']",
	}

	fixtureOddSelectors = [3][]string{
		{"td.odds--home", "span.odd-1"},
		{"td.odds--draw", "span.odd-x"},
		{"td.odds--away", "span.odd-2"},
	}

	teamAnchorSelectors = []string{
		"div.match-header a.team-name",
		"a.team-link[href*='/equipa/']",
		"div.confronto a[href*='/equipa/']",
		"a[href*='/team/']",
	}

	historyGridSelectors = []string{
		"div.match-grid__bottom",
		"div.team-history table",
	}

	historyRowSelectors = []string{
		"tbody tr",
	}

	seeMoreSelectors = []string{
		"a.link-see-more",
		"button.link-see-more",
	}
)

// selectorUnion joins alternatives into one goquery selector.
func selectorUnion(selectors []string) string {
	return strings.Join(selectors, ", ")
}

// scopedUnion prefixes every alternative with base before joining. Joining
// first and prefixing after would scope only the first alternative; the
// comma resets the scope for the rest.
func scopedUnion(base string, selectors []string) string {
	scoped := make([]string, len(selectors))
	for i, sel := range selectors {
		scoped[i] = base + " " + sel
	}
	return strings.Join(scoped, ", ")
}

// firstText returns the trimmed text of the first alternative that yields a
// non-empty node.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if t := collapseSpace(s.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

// firstAttr returns the named attribute from the first alternative that
// carries it non-empty.
func firstAttr(s *goquery.Selection, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := s.Find(sel).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absoluteURL resolves href against the site base; already-absolute URLs
// pass through unchanged.
func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return u.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(u).String()
}
