// Package pipeline orchestrates one acquisition run: schedule discovery,
// team link resolution, bounded history scraping, normalization and the
// final reconciliation against the persisted key set.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna/hermes/internal/audit"
	"github.com/fortuna/hermes/internal/ingest/redscore"
	"github.com/fortuna/hermes/internal/normalize"
	"github.com/fortuna/hermes/internal/store"
)

// ScheduleSource discovers tomorrow's fixtures.
type ScheduleSource interface {
	Fixtures(ctx context.Context) ([]redscore.Fixture, error)
}

// LinkResolver maps fixtures to team URL -> league context.
type LinkResolver interface {
	Resolve(ctx context.Context, fixtures []redscore.Fixture) map[string]string
}

// HistorySource scrapes one team's raw history rows.
type HistorySource interface {
	TeamHistory(ctx context.Context, team redscore.TeamRef, known redscore.KnownFunc) ([]redscore.RawMatchRow, error)
}

// MatchStore is the persistence collaborator. Append must itself reject
// already-present keys; the pipeline guarantees it only ever hands over
// keys that were absent at run start.
type MatchStore interface {
	LoadExistingKeys(ctx context.Context) (map[store.MatchKey]struct{}, error)
	Append(ctx context.Context, matches []*store.Match) (int, error)
}

// Exporter produces flat snapshots after a run. Both methods are
// best-effort from the pipeline's point of view.
type Exporter interface {
	ExportFixtures(fixtures []redscore.Fixture) error
	ExportDataset(ctx context.Context) error
}

// Summary reports per-phase counts for one run. A run with zero new
// records is a successful no-op.
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Fixtures     int `json:"fixtures"`
	Teams        int `json:"teams"`
	RowsScraped  int `json:"rows_scraped"`
	Normalized   int `json:"normalized"`
	Discarded    int `json:"discarded"`
	Duplicates   int `json:"duplicates"`
	AlreadyKnown int `json:"already_known"`
	Appended     int `json:"appended"`
}

// Pipeline wires the stages for one run. The browser-driven sources share
// one session and are only ever called sequentially from Run.
type Pipeline struct {
	schedule ScheduleSource
	links    LinkResolver
	history  HistorySource
	matches  MatchStore
	exporter Exporter
	audit    audit.Recorder
	logger   zerolog.Logger
}

// New assembles a pipeline. Exporter may be nil.
func New(schedule ScheduleSource, links LinkResolver, history HistorySource, matches MatchStore, exporter Exporter, rec audit.Recorder, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		schedule: schedule,
		links:    links,
		history:  history,
		matches:  matches,
		exporter: exporter,
		audit:    rec,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one full acquisition run.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{StartedAt: time.Now()}
	defer func() { sum.FinishedAt = time.Now() }()

	existing, err := p.matches.LoadExistingKeys(ctx)
	if err != nil {
		return sum, fmt.Errorf("loading existing keys: %w", err)
	}
	p.logger.Info().Int("existing", len(existing)).Msg("phase 0: existing key set loaded")

	fixtures, err := p.schedule.Fixtures(ctx)
	if err != nil {
		return sum, fmt.Errorf("schedule discovery: %w", err)
	}
	sum.Fixtures = len(fixtures)
	p.logger.Info().Int("fixtures", len(fixtures)).Msg("phase 1: schedule discovered")

	if len(fixtures) == 0 {
		p.logger.Info().Msg("no fixtures in allowed leagues, run complete")
		return sum, nil
	}

	if p.exporter != nil {
		if err := p.exporter.ExportFixtures(fixtures); err != nil {
			p.logger.Warn().Err(err).Msg("fixture export failed")
		}
	}

	visits := p.links.Resolve(ctx, fixtures)
	sum.Teams = len(visits)
	p.logger.Info().Int("teams", len(visits)).Msg("phase 2: team links resolved")

	if len(visits) == 0 {
		p.logger.Warn().Msg("no team links could be resolved, run complete")
		return sum, nil
	}

	known := knownFunc(existing)
	raw := p.scrapeHistories(ctx, visits, known)
	sum.RowsScraped = len(raw)
	p.logger.Info().Int("rows", len(raw)).Msg("phase 3: team histories scraped")

	batch := p.normalizeRows(raw, sum)
	netNew := p.reconcile(batch, existing, sum)
	p.logger.Info().
		Int("normalized", sum.Normalized).
		Int("discarded", sum.Discarded).
		Int("duplicates", sum.Duplicates).
		Int("already_known", sum.AlreadyKnown).
		Int("net_new", len(netNew)).
		Msg("phase 4: batch reconciled")

	if len(netNew) > 0 {
		appended, err := p.matches.Append(ctx, netNew)
		if err != nil {
			return sum, fmt.Errorf("appending matches: %w", err)
		}
		sum.Appended = appended
		p.logger.Info().Int("appended", appended).Msg("net-new records persisted")
	} else {
		p.logger.Info().Msg("no new records found")
	}

	if p.exporter != nil {
		if err := p.exporter.ExportDataset(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("dataset export failed")
		}
	}

	return sum, nil
}

// scrapeHistories walks the team set sequentially; the shared browser
// session cannot serve concurrent navigations. Per-team failures are
// audited and skipped.
func (p *Pipeline) scrapeHistories(ctx context.Context, visits map[string]string, known redscore.KnownFunc) []redscore.RawMatchRow {
	urls := make([]string, 0, len(visits))
	for u := range visits {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	var all []redscore.RawMatchRow
	for _, u := range urls {
		team := redscore.TeamRef{URL: u, League: visits[u]}
		rows, err := p.history.TeamHistory(ctx, team, known)
		if err != nil {
			p.audit.Record(audit.CategoryTeamError, err.Error(), u, team.League)
			p.logger.Warn().Err(err).Str("team", u).Msg("team history failed, skipping")
			continue
		}
		all = append(all, rows...)
	}
	return all
}

// normalizeRows converts raw rows into typed matches. An unparseable date
// discards the record; stat pairs and odds degrade to defaults.
func (p *Pipeline) normalizeRows(raw []redscore.RawMatchRow, sum *Summary) []*store.Match {
	var out []*store.Match
	for _, row := range raw {
		m, err := buildMatch(row)
		if err != nil {
			sum.Discarded++
			p.audit.Record(audit.CategoryRowError, err.Error(), row.League, row.Date, row.Home, row.Away)
			continue
		}
		out = append(out, m)
	}
	sum.Normalized = len(out)
	return out
}

// reconcile removes intra-batch duplicates (last-seen-wins) and drops keys
// that were already persisted at run start.
func (p *Pipeline) reconcile(batch []*store.Match, existing map[store.MatchKey]struct{}, sum *Summary) []*store.Match {
	index := make(map[store.MatchKey]int)
	var ordered []*store.Match
	for _, m := range batch {
		key := m.Key()
		if i, seen := index[key]; seen {
			sum.Duplicates++
			p.audit.Record(audit.CategoryDuplicate, "intra-batch duplicate superseded", key.Date, key.Home, key.Away)
			ordered[i] = m
			continue
		}
		index[key] = len(ordered)
		ordered = append(ordered, m)
	}

	netNew := ordered[:0:0]
	for _, m := range ordered {
		if _, ok := existing[m.Key()]; ok {
			sum.AlreadyKnown++
			continue
		}
		netNew = append(netNew, m)
	}
	return netNew
}

// knownFunc adapts the existing-key snapshot into the history scraper's
// lookup: a row whose date cannot be parsed is never "known" — it stays in
// the batch and is discarded (and audited) during normalization.
func knownFunc(existing map[store.MatchKey]struct{}) redscore.KnownFunc {
	return func(row redscore.RawMatchRow) bool {
		d, err := normalize.ParseDate(row.Date)
		if err != nil {
			return false
		}
		key := store.MatchKey{
			Date: normalize.FormatISO(d),
			Home: normalize.CleanName(row.Home),
			Away: normalize.CleanName(row.Away),
		}
		_, ok := existing[key]
		return ok
	}
}

// buildMatch normalizes one raw row. Only the date is a hard requirement.
func buildMatch(row redscore.RawMatchRow) (*store.Match, error) {
	date, err := normalize.ParseDate(row.Date)
	if err != nil {
		return nil, fmt.Errorf("unparseable date: %w", err)
	}

	home := normalize.CleanName(row.Home)
	away := normalize.CleanName(row.Away)
	if home == "" || away == "" {
		return nil, fmt.Errorf("missing team name")
	}

	m := &store.Match{
		League: row.League,
		Date:   date,
		Home:   home,
		Away:   away,
	}
	m.HGoalsFT, m.AGoalsFT = normalize.ParseStatPair(row.ScoreFT)
	m.HGoalsHT, m.AGoalsHT = normalize.ParseStatPair(row.ScoreHT)
	m.HShots, m.AShots = normalize.ParseStatPair(row.Shots)
	m.HShotsOnTarget, m.AShotsOnTarget = normalize.ParseStatPair(row.ShotsOnTarget)
	m.HAttacks, m.AAttacks = normalize.ParseStatPair(row.Attacks)
	m.HCorners, m.ACorners = normalize.ParseStatPair(row.Corners)
	m.OddHome = normalize.ParseOdd(row.OddHome)
	m.OddDraw = normalize.ParseOdd(row.OddDraw)
	m.OddAway = normalize.ParseOdd(row.OddAway)

	return m, nil
}
