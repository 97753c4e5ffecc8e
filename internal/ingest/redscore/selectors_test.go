package redscore

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedUnionScopesEveryAlternative(t *testing.T) {
	got := scopedUnion("div.section:nth-of-type(2)", []string{"tbody tr.match-row", "div.fixture-row"})
	assert.Equal(t, "div.section:nth-of-type(2) tbody tr.match-row, div.section:nth-of-type(2) div.fixture-row", got)
}

func TestScopedUnionCollapsedSectionMatchesNothing(t *testing.T) {
	// Section 1 is expanded, section 2 is collapsed. A row query scoped to
	// section 2 must see zero rows, regardless of how many rows other
	// sections carry; otherwise the collapsed section would be mistaken
	// for an already expanded one and never opened.
	html := `
<div class="competition-group">
  <table><tbody>
    <tr class="match-row" data-match-id="1"><td>row</td></tr>
  </tbody></table>
</div>
<div class="competition-group">
  <div class="competition-group__header">collapsed</div>
</div>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	scoped := scopedUnion("div.competition-group:nth-of-type(2)", fixtureRowSelectors)
	assert.Zero(t, doc.Find(scoped).Length())

	scoped = scopedUnion("div.competition-group:nth-of-type(1)", fixtureRowSelectors)
	assert.Equal(t, 1, doc.Find(scoped).Length())
}
