package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/hermes/internal/audit"
	"github.com/fortuna/hermes/internal/ingest/redscore"
	"github.com/fortuna/hermes/internal/store"
)

type fakeSchedule struct {
	fixtures []redscore.Fixture
	err      error
}

func (f *fakeSchedule) Fixtures(ctx context.Context) ([]redscore.Fixture, error) {
	return f.fixtures, f.err
}

type fakeResolver struct {
	visits map[string]string
}

func (f *fakeResolver) Resolve(ctx context.Context, fixtures []redscore.Fixture) map[string]string {
	return f.visits
}

type fakeHistory struct {
	rows  map[string][]redscore.RawMatchRow
	calls []string
}

func (f *fakeHistory) TeamHistory(ctx context.Context, team redscore.TeamRef, known redscore.KnownFunc) ([]redscore.RawMatchRow, error) {
	f.calls = append(f.calls, team.URL)
	var out []redscore.RawMatchRow
	for _, row := range f.rows[team.URL] {
		if known(row) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

type fakeStore struct {
	existing map[store.MatchKey]struct{}
	appended []*store.Match
}

func (f *fakeStore) LoadExistingKeys(ctx context.Context) (map[store.MatchKey]struct{}, error) {
	out := make(map[store.MatchKey]struct{}, len(f.existing))
	for k := range f.existing {
		out[k] = struct{}{}
	}
	return out, nil
}

func (f *fakeStore) Append(ctx context.Context, matches []*store.Match) (int, error) {
	f.appended = append(f.appended, matches...)
	return len(matches), nil
}

type noopRecorder struct{}

func (noopRecorder) Record(cat audit.Category, reason string, fields ...string) {}

func row(league, date, home, away, ft string) redscore.RawMatchRow {
	return redscore.RawMatchRow{
		League: league, Date: date, Home: home, Away: away,
		ScoreFT: ft, ScoreHT: "0 - 0",
		Shots: "10 - 8", ShotsOnTarget: "4 - 3", Attacks: "50 - 40", Corners: "6 - 5",
		OddHome: "1,80", OddDraw: "3,40", OddAway: "4,20",
	}
}

func TestRunEndToEnd(t *testing.T) {
	fixtures := []redscore.Fixture{
		{ID: "m1", League: "Inglaterra - Premier League", Kickoff: "16:00", Home: "Arsenal", Away: "Chelsea", DetailURL: "https://x/m1"},
		{ID: "m2", League: "Espanha - LaLiga", Kickoff: "18:30", Home: "Girona", Away: "Betis", DetailURL: "https://x/m2"},
	}
	visits := map[string]string{
		"https://x/t/arsenal": "Inglaterra - Premier League",
		"https://x/t/chelsea": "Inglaterra - Premier League",
		"https://x/t/girona":  "Espanha - LaLiga",
		"https://x/t/betis":   "Espanha - LaLiga",
	}

	// Per team: one row already persisted, one genuinely new.
	hist := &fakeHistory{rows: map[string][]redscore.RawMatchRow{
		"https://x/t/arsenal": {
			row("Inglaterra - Premier League", "10-08-25", "Arsenal", "Everton", "2 - 0"),
			row("Inglaterra - Premier League", "17-08-25", "Arsenal", "Fulham", "1 - 1"),
		},
		"https://x/t/chelsea": {
			row("Inglaterra - Premier League", "10-08-25", "Chelsea", "Wolves", "3 - 1"),
			row("Inglaterra - Premier League", "17-08-25", "Brighton", "Chelsea", "0 - 2"),
		},
		"https://x/t/girona": {
			row("Espanha - LaLiga", "11-08-25", "Girona", "Osasuna", "1 - 0"),
			row("Espanha - LaLiga", "18-08-25", "Girona", "Getafe", "2 - 2"),
		},
		"https://x/t/betis": {
			row("Espanha - LaLiga", "11-08-25", "Betis", "Alaves", "1 - 1"),
			row("Espanha - LaLiga", "18-08-25", "Sevilla", "Betis", "0 - 1"),
		},
	}}

	st := &fakeStore{existing: map[store.MatchKey]struct{}{
		{Date: "2025-08-10", Home: "Arsenal", Away: "Everton"}: {},
		{Date: "2025-08-10", Home: "Chelsea", Away: "Wolves"}:  {},
		{Date: "2025-08-11", Home: "Girona", Away: "Osasuna"}:  {},
		{Date: "2025-08-11", Home: "Betis", Away: "Alaves"}:    {},
	}}

	p := New(&fakeSchedule{fixtures: fixtures}, &fakeResolver{visits: visits}, hist, st, nil, noopRecorder{}, zerolog.Nop())
	sum, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Fixtures)
	assert.Equal(t, 4, sum.Teams)
	assert.Equal(t, 4, sum.RowsScraped)
	assert.Equal(t, 4, sum.Appended)
	assert.Zero(t, sum.Discarded)
	assert.Zero(t, sum.Duplicates)
	assert.Zero(t, sum.AlreadyKnown)

	// Teams visited in deterministic order.
	assert.Equal(t, []string{
		"https://x/t/arsenal",
		"https://x/t/betis",
		"https://x/t/chelsea",
		"https://x/t/girona",
	}, hist.calls)

	keys := make(map[store.MatchKey]bool)
	for _, m := range st.appended {
		keys[m.Key()] = true
	}
	assert.True(t, keys[store.MatchKey{Date: "2025-08-17", Home: "Arsenal", Away: "Fulham"}])
	assert.True(t, keys[store.MatchKey{Date: "2025-08-17", Home: "Brighton", Away: "Chelsea"}])
	assert.True(t, keys[store.MatchKey{Date: "2025-08-18", Home: "Girona", Away: "Getafe"}])
	assert.True(t, keys[store.MatchKey{Date: "2025-08-18", Home: "Sevilla", Away: "Betis"}])
	assert.Len(t, keys, 4)
}

func TestRunIdempotent(t *testing.T) {
	fixtures := []redscore.Fixture{
		{ID: "m1", League: "Inglaterra - Premier League", Kickoff: "16:00", Home: "Arsenal", Away: "Chelsea"},
	}
	visits := map[string]string{"https://x/t/arsenal": "Inglaterra - Premier League"}
	rows := map[string][]redscore.RawMatchRow{
		"https://x/t/arsenal": {
			row("Inglaterra - Premier League", "17-08-25", "Arsenal", "Fulham", "1 - 1"),
		},
	}

	st := &fakeStore{existing: map[store.MatchKey]struct{}{}}
	p := New(&fakeSchedule{fixtures: fixtures}, &fakeResolver{visits: visits}, &fakeHistory{rows: rows}, st, nil, noopRecorder{}, zerolog.Nop())

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sum.Appended)

	// Simulate the persisted state and rerun against the same site content.
	for _, m := range st.appended {
		st.existing[m.Key()] = struct{}{}
	}
	st.appended = nil

	sum, err = p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Appended)
	assert.Empty(t, st.appended)
}

func TestRunEmptyScheduleIsSuccess(t *testing.T) {
	st := &fakeStore{}
	p := New(&fakeSchedule{}, &fakeResolver{}, &fakeHistory{}, st, nil, noopRecorder{}, zerolog.Nop())
	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Fixtures)
	assert.Zero(t, sum.Appended)
}

func TestRunLastSeenWins(t *testing.T) {
	fixtures := []redscore.Fixture{
		{ID: "m1", League: "Inglaterra - Premier League", Kickoff: "16:00", Home: "Arsenal", Away: "Chelsea"},
	}
	visits := map[string]string{
		"https://x/t/arsenal": "Inglaterra - Premier League",
		"https://x/t/chelsea": "Inglaterra - Premier League",
	}
	// Same head-to-head match surfaces on both team pages, with richer
	// stats on the second visit.
	first := row("Inglaterra - Premier League", "17-08-25", "Arsenal", "Chelsea", "2 - 1")
	second := first
	second.Shots = "15 - 9"

	rows := map[string][]redscore.RawMatchRow{
		"https://x/t/arsenal": {first},
		"https://x/t/chelsea": {second},
	}

	st := &fakeStore{existing: map[store.MatchKey]struct{}{}}
	p := New(&fakeSchedule{fixtures: fixtures}, &fakeResolver{visits: visits}, &fakeHistory{rows: rows}, st, nil, noopRecorder{}, zerolog.Nop())

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Duplicates)
	require.Len(t, st.appended, 1)
	assert.Equal(t, 15, st.appended[0].HShots)
}

func TestRunDiscardsUnparseableDates(t *testing.T) {
	fixtures := []redscore.Fixture{
		{ID: "m1", League: "Espanha - LaLiga", Kickoff: "18:30", Home: "Girona", Away: "Betis"},
	}
	visits := map[string]string{"https://x/t/girona": "Espanha - LaLiga"}
	rows := map[string][]redscore.RawMatchRow{
		"https://x/t/girona": {
			row("Espanha - LaLiga", "not-a-date", "Girona", "Osasuna", "1 - 0"),
			row("Espanha - LaLiga", "18-08-25", "Girona", "Getafe", "2 - 2"),
		},
	}

	st := &fakeStore{existing: map[store.MatchKey]struct{}{}}
	p := New(&fakeSchedule{fixtures: fixtures}, &fakeResolver{visits: visits}, &fakeHistory{rows: rows}, st, nil, noopRecorder{}, zerolog.Nop())

	sum, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Discarded)
	assert.Equal(t, 1, sum.Appended)
	require.Len(t, st.appended, 1)
	assert.Equal(t, "Getafe", st.appended[0].Away)
}

func TestBuildMatchNormalizes(t *testing.T) {
	m, err := buildMatch(row("Brasil - Serie A", "13-05-24", "  atlético   mineiro ", "flamengo", "2 - 0"))
	require.NoError(t, err)
	assert.Equal(t, "Atlético Mineiro", m.Home)
	assert.Equal(t, "Flamengo", m.Away)
	assert.Equal(t, "2024-05-13", m.Key().Date)
	assert.Equal(t, 2, m.HGoalsFT)
	assert.Equal(t, 0, m.AGoalsFT)
	assert.InDelta(t, 1.8, m.OddHome, 1e-9)
}

func TestKnownFuncHandlesBadDates(t *testing.T) {
	existing := map[store.MatchKey]struct{}{
		{Date: "2025-08-17", Home: "Arsenal", Away: "Fulham"}: {},
	}
	known := knownFunc(existing)

	assert.True(t, known(redscore.RawMatchRow{Date: "17-08-25", Home: " arsenal ", Away: "FULHAM"}))
	assert.False(t, known(redscore.RawMatchRow{Date: "garbage", Home: "Arsenal", Away: "Fulham"}))
	assert.False(t, known(redscore.RawMatchRow{Date: "18-08-25", Home: "Arsenal", Away: "Fulham"}))
}
