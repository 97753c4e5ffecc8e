// Package audit records rejected, incomplete and duplicate items to
// per-run-dated files for offline inspection. Auditing is a side channel:
// a failed write is logged and swallowed, never surfaced to the caller.
package audit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Category segregates audit entries by failure class; each category gets
// its own daily file.
type Category string

const (
	CategoryIncompleteFixture Category = "incomplete_fixtures"
	CategoryUnresolvedLinks   Category = "unresolved_links"
	CategoryDuplicate         Category = "duplicates"
	CategoryRowError          Category = "row_errors"
	CategoryTeamError         Category = "team_errors"
)

// Recorder is the audit port handed to pipeline components.
type Recorder interface {
	Record(cat Category, reason string, fields ...string)
}

// Sink is the file-backed Recorder. Files are append-only CSVs named
// <category>_<date>.csv under the configured directory. Handles are keyed
// by day as well as category, so a long-lived sink rolls over to a fresh
// file at midnight instead of appending to the first day's file forever.
type Sink struct {
	dir    string
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	files  map[fileKey]*os.File
	counts map[Category]int
}

type fileKey struct {
	cat Category
	day string
}

// NewSink creates the audit directory if needed. Directory creation
// failure is tolerated: Record calls will log and drop entries.
func NewSink(dir string, logger zerolog.Logger) *Sink {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn().Err(err).Str("dir", dir).Msg("audit directory unavailable, entries will be dropped")
	}
	return &Sink{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		files:  make(map[fileKey]*os.File),
		counts: make(map[Category]int),
	}
}

// Record appends one entry. It never returns an error and never panics.
func (s *Sink) Record(cat Category, reason string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[cat]++

	now := s.now()
	f, err := s.file(cat, now.Format("2006-01-02"))
	if err != nil {
		s.logger.Warn().Err(err).Str("category", string(cat)).Msg("audit entry dropped")
		return
	}

	record := append([]string{now.Format(time.RFC3339), reason}, fields...)
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		s.logger.Warn().Err(err).Str("category", string(cat)).Msg("audit entry dropped")
		return
	}
	w.Flush()
	if err := w.Error(); err != nil {
		s.logger.Warn().Err(err).Str("category", string(cat)).Msg("audit flush failed")
	}
}

// Counts returns per-category entry counts for this process lifetime.
func (s *Sink) Counts() map[Category]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Category]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

// Close releases the open audit files.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, f := range s.files {
		if err := f.Close(); err != nil {
			s.logger.Warn().Err(err).Str("category", string(key.cat)).Msg("closing audit file")
		}
		delete(s.files, key)
	}
}

// file returns the open handle for a category on the given day, closing
// the category's previous day first.
func (s *Sink) file(cat Category, day string) (*os.File, error) {
	key := fileKey{cat: cat, day: day}
	if f, ok := s.files[key]; ok {
		return f, nil
	}

	for old, f := range s.files {
		if old.cat == cat {
			if err := f.Close(); err != nil {
				s.logger.Warn().Err(err).Str("category", string(cat)).Msg("closing audit file")
			}
			delete(s.files, old)
		}
	}

	name := string(cat) + "_" + day + ".csv"
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	s.files[key] = f
	return f, nil
}
