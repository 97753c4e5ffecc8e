package audit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_RecordWritesDatedCategoryFile(t *testing.T) {
	dir := t.TempDir()
	s := NewSink(dir, zerolog.Nop())
	defer s.Close()

	s.Record(CategoryRowError, "unparseable date", "Brasil - Serie A", "hoje", "Flamengo", "Santos")
	s.Record(CategoryRowError, "unparseable date", "Brasil - Serie A", "ontem", "Gremio", "Bahia")
	s.Record(CategoryDuplicate, "duplicate, no priority", "key")

	day := time.Now().Format("2006-01-02")

	f, err := os.Open(filepath.Join(dir, "row_errors_"+day+".csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "unparseable date", rows[0][1])
	assert.Equal(t, "Flamengo", rows[0][4])

	_, err = os.Stat(filepath.Join(dir, "duplicates_"+day+".csv"))
	assert.NoError(t, err)
}

func TestSink_Counts(t *testing.T) {
	s := NewSink(t.TempDir(), zerolog.Nop())
	defer s.Close()

	s.Record(CategoryTeamError, "timeout", "url")
	s.Record(CategoryTeamError, "timeout", "url2")
	s.Record(CategoryIncompleteFixture, "missing kickoff")

	counts := s.Counts()
	assert.Equal(t, 2, counts[CategoryTeamError])
	assert.Equal(t, 1, counts[CategoryIncompleteFixture])
	assert.Equal(t, 0, counts[CategoryDuplicate])
}

func TestSink_UnwritableDirNeverFails(t *testing.T) {
	// A sink pointed at an impossible path must swallow every failure.
	s := NewSink(filepath.Join(string([]byte{0}), "nope"), zerolog.Nop())
	defer s.Close()

	assert.NotPanics(t, func() {
		s.Record(CategoryRowError, "reason")
	})
	assert.Equal(t, 1, s.Counts()[CategoryRowError])
}

func TestSink_RollsOverAtMidnight(t *testing.T) {
	dir := t.TempDir()
	s := NewSink(dir, zerolog.Nop())
	defer s.Close()

	clock := time.Date(2025, 8, 10, 23, 59, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	s.Record(CategoryRowError, "before midnight")
	clock = clock.Add(2 * time.Minute)
	s.Record(CategoryRowError, "after midnight")

	day1 := readRows(t, filepath.Join(dir, "row_errors_2025-08-10.csv"))
	require.Len(t, day1, 1)
	assert.Equal(t, "before midnight", day1[0][1])

	day2 := readRows(t, filepath.Join(dir, "row_errors_2025-08-11.csv"))
	require.Len(t, day2, 1)
	assert.Equal(t, "after midnight", day2[0][1])
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}
