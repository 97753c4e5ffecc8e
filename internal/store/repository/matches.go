// Package repository provides data access on top of the store database.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortuna/hermes/internal/store"
)

// MatchRepository handles match data access.
type MatchRepository struct {
	db *store.Database
}

// NewMatchRepository creates a new match repository.
func NewMatchRepository(db *store.Database) *MatchRepository {
	return &MatchRepository{db: db}
}

// LoadExistingKeys snapshots every persisted match key. Loaded once per
// run and treated as read-only for the run's duration.
func (r *MatchRepository) LoadExistingKeys(ctx context.Context) (map[store.MatchKey]struct{}, error) {
	query := `SELECT to_char(match_date, 'YYYY-MM-DD'), home, away FROM matches`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying existing keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[store.MatchKey]struct{})
	for rows.Next() {
		var k store.MatchKey
		if err := rows.Scan(&k.Date, &k.Home, &k.Away); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}

// Append inserts net-new matches and returns how many rows were actually
// written. ON CONFLICT DO NOTHING keeps the append idempotent even when a
// concurrent run persisted the same key first.
func (r *MatchRepository) Append(ctx context.Context, matches []*store.Match) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches (match_date, home, away, league,
			h_goals_ft, a_goals_ft, h_goals_ht, a_goals_ht,
			h_shots, a_shots, h_shots_on_target, a_shots_on_target,
			h_attacks, a_attacks, h_corners, a_corners,
			odd_home, odd_draw, odd_away)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (match_date, home, away) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing append: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range matches {
		res, err := stmt.ExecContext(ctx,
			m.Date, m.Home, m.Away, m.League,
			m.HGoalsFT, m.AGoalsFT, m.HGoalsHT, m.AGoalsHT,
			m.HShots, m.AShots, m.HShotsOnTarget, m.AShotsOnTarget,
			m.HAttacks, m.AAttacks, m.HCorners, m.ACorners,
			m.OddHome, m.OddDraw, m.OddAway,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting match %s/%s/%s: %w", m.Key().Date, m.Home, m.Away, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing append: %w", err)
	}
	return inserted, nil
}

// List returns the full persisted set ordered by date, for export.
func (r *MatchRepository) List(ctx context.Context) ([]*store.Match, error) {
	query := `
		SELECT match_date, home, away, league,
			h_goals_ft, a_goals_ft, h_goals_ht, a_goals_ht,
			h_shots, a_shots, h_shots_on_target, a_shots_on_target,
			h_attacks, a_attacks, h_corners, a_corners,
			odd_home, odd_draw, odd_away
		FROM matches
		ORDER BY match_date, home, away
	`

	rows, err := r.db.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// Count reports the persisted match count.
func (r *MatchRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting matches: %w", err)
	}
	return n, nil
}

func scanMatches(rows *sql.Rows) ([]*store.Match, error) {
	var matches []*store.Match
	for rows.Next() {
		m := &store.Match{}
		err := rows.Scan(
			&m.Date, &m.Home, &m.Away, &m.League,
			&m.HGoalsFT, &m.AGoalsFT, &m.HGoalsHT, &m.AGoalsHT,
			&m.HShots, &m.AShots, &m.HShotsOnTarget, &m.AShotsOnTarget,
			&m.HAttacks, &m.AAttacks, &m.HCorners, &m.ACorners,
			&m.OddHome, &m.OddDraw, &m.OddAway,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
