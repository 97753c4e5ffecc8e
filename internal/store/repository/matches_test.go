package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/hermes/internal/store"
)

func testRepo(t *testing.T) (*MatchRepository, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := store.NewDatabase(dsn)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(context.Background()))

	_, err = db.DB().ExecContext(context.Background(), `TRUNCATE matches`)
	require.NoError(t, err)

	return NewMatchRepository(db), func() { db.Close() }
}

func sampleMatch(date time.Time, home, away string) *store.Match {
	return &store.Match{
		League: "Brasil - Serie A",
		Date:   date, Home: home, Away: away,
		HGoalsFT: 2, AGoalsFT: 1, HGoalsHT: 1, AGoalsHT: 0,
		HShots: 14, AShots: 9, HShotsOnTarget: 6, AShotsOnTarget: 3,
		HAttacks: 55, AAttacks: 41, HCorners: 7, ACorners: 4,
		OddHome: 1.95, OddDraw: 3.2, OddAway: 3.8,
	}
}

func TestAppendAndLoadExistingKeys(t *testing.T) {
	repo, cleanup := testRepo(t)
	defer cleanup()
	ctx := context.Background()

	day := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)
	n, err := repo.Append(ctx, []*store.Match{
		sampleMatch(day, "Flamengo", "Palmeiras"),
		sampleMatch(day, "Gremio", "Santos"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err := repo.LoadExistingKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	_, ok := keys[store.MatchKey{Date: "2025-08-10", Home: "Flamengo", Away: "Palmeiras"}]
	assert.True(t, ok)
}

func TestAppendConflictIsNoOp(t *testing.T) {
	repo, cleanup := testRepo(t)
	defer cleanup()
	ctx := context.Background()

	day := time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC)
	m := sampleMatch(day, "Flamengo", "Palmeiras")

	n, err := repo.Append(ctx, []*store.Match{m})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// Same key with different stats: silently ignored, first write wins.
	dup := sampleMatch(day, "Flamengo", "Palmeiras")
	dup.HGoalsFT = 9
	n, err = repo.Append(ctx, []*store.Match{dup})
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListOrdered(t *testing.T) {
	repo, cleanup := testRepo(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.Append(ctx, []*store.Match{
		sampleMatch(time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC), "Gremio", "Santos"),
		sampleMatch(time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC), "Flamengo", "Palmeiras"),
	})
	require.NoError(t, err)

	matches, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Flamengo", matches[0].Home)
	assert.Equal(t, "Gremio", matches[1].Home)
	assert.InDelta(t, 1.95, matches[0].OddHome, 1e-9)
}
