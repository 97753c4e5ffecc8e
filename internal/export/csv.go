// Package export writes flat CSV snapshots of fixtures and the
// accumulated match dataset for downstream consumers.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fortuna/hermes/internal/ingest/redscore"
	"github.com/fortuna/hermes/internal/store"
)

// MatchLister is the read side needed for dataset snapshots.
type MatchLister interface {
	List(ctx context.Context) ([]*store.Match, error)
}

// CSVExporter writes snapshot files into a fixed directory. Fixture
// snapshots are dated with the fixtures' match day (tomorrow relative to
// the run); the dataset snapshot is a single rolling file.
type CSVExporter struct {
	dir    string
	repo   MatchLister
	now    func() time.Time
	logger zerolog.Logger
}

// NewCSVExporter creates an exporter rooted at dir. repo may be nil, in
// which case ExportDataset is a no-op.
func NewCSVExporter(dir string, repo MatchLister, logger zerolog.Logger) *CSVExporter {
	return &CSVExporter{
		dir:    dir,
		repo:   repo,
		now:    time.Now,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

var fixtureHeader = []string{"league", "kickoff", "home", "away", "odd_home", "odd_draw", "odd_away"}

var matchHeader = []string{
	"league", "date", "home", "away",
	"h_goals_ft", "a_goals_ft", "h_goals_ht", "a_goals_ht",
	"h_shots", "a_shots", "h_shots_on_target", "a_shots_on_target",
	"h_attacks", "a_attacks", "h_corners", "a_corners",
	"odd_home", "odd_draw", "odd_away",
}

// ExportFixtures writes tomorrow's fixture list to fixtures_<date>.csv.
func (e *CSVExporter) ExportFixtures(fixtures []redscore.Fixture) error {
	day := e.now().AddDate(0, 0, 1).Format("2006-01-02")
	path := filepath.Join(e.dir, fmt.Sprintf("fixtures_%s.csv", day))

	rows := make([][]string, 0, len(fixtures))
	for _, f := range fixtures {
		rows = append(rows, []string{f.League, f.Kickoff, f.Home, f.Away, f.OddHome, f.OddDraw, f.OddAway})
	}
	if err := e.writeFile(path, fixtureHeader, rows); err != nil {
		return err
	}
	e.logger.Info().Str("path", path).Int("rows", len(rows)).Msg("fixture snapshot written")
	return nil
}

// ExportDataset writes the full persisted dataset to matches.csv.
func (e *CSVExporter) ExportDataset(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	matches, err := e.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing matches: %w", err)
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, matchRecord(m))
	}
	path := filepath.Join(e.dir, "matches.csv")
	if err := e.writeFile(path, matchHeader, rows); err != nil {
		return err
	}
	e.logger.Info().Str("path", path).Int("rows", len(rows)).Msg("dataset snapshot written")
	return nil
}

func (e *CSVExporter) writeFile(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	w.Flush()
	return w.Error()
}

func matchRecord(m *store.Match) []string {
	return []string{
		m.League,
		m.Date.Format("2006-01-02"),
		m.Home,
		m.Away,
		strconv.Itoa(m.HGoalsFT), strconv.Itoa(m.AGoalsFT),
		strconv.Itoa(m.HGoalsHT), strconv.Itoa(m.AGoalsHT),
		strconv.Itoa(m.HShots), strconv.Itoa(m.AShots),
		strconv.Itoa(m.HShotsOnTarget), strconv.Itoa(m.AShotsOnTarget),
		strconv.Itoa(m.HAttacks), strconv.Itoa(m.AAttacks),
		strconv.Itoa(m.HCorners), strconv.Itoa(m.ACorners),
		formatOdd(m.OddHome), formatOdd(m.OddDraw), formatOdd(m.OddAway),
	}
}

func formatOdd(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
