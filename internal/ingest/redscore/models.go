// Package redscore scrapes fixture schedules and team match histories from
// the redscores site. Selector paths are site-specific and expected to
// drift; every extraction point carries an ordered list of alternatives.
package redscore

import "strings"

// Fixture is a scheduled future match discovered on the schedule page.
// Batch-scoped; never persisted directly.
type Fixture struct {
	ID        string
	League    string // canonical allow-list spelling
	Kickoff   string // page-local wall clock, HH:MM
	Home      string
	Away      string
	DetailURL string
	OddHome   string
	OddDraw   string
	OddAway   string
}

// Key uniquely identifies a fixture within one schedule batch.
func (f Fixture) Key() string {
	return strings.Join([]string{f.League, f.Kickoff, f.Home, f.Away}, "|")
}

// HasOdds reports whether the fixture carries a full 1X2 odds triple.
func (f Fixture) HasOdds() bool {
	return f.OddHome != "" && f.OddDraw != "" && f.OddAway != ""
}

// TeamRef points at a team history page with the league context it was
// discovered under. Many fixtures may yield the same team; the context of
// the last fixture wins, which is fine since it is advisory only.
type TeamRef struct {
	URL    string
	League string
}

// RawMatchRow is one unparsed history grid row. All fields are raw text
// except League, which the scraper already resolved to its canonical
// spelling while filtering out-of-scope rows.
type RawMatchRow struct {
	League        string
	Date          string
	Home          string
	Away          string
	ScoreFT       string
	ScoreHT       string
	Shots         string
	ShotsOnTarget string
	Attacks       string
	Corners       string
	OddHome       string
	OddDraw       string
	OddAway       string
}
