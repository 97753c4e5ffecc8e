// Package normalize converts raw scraped text into typed values.
// Every function is pure and total: malformed input yields a zero/unset
// result or an error, never a panic.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// OddUnset is returned for absent or placeholder odds.
const OddUnset = 0.0

// twoDigitYearPivot decides the century of two-digit years: values at or
// above the pivot are 19xx, below it 20xx.
const twoDigitYearPivot = 80

// ParseDate parses the site's numeric date format. The separator is "-" or
// "/". When the first component exceeds 12 the date must be day-first; for
// ambiguous dates (both components <= 12) the month-first convention is
// used. This is a known accuracy limitation of the source format, not
// something that can be fixed here.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	sep := "/"
	if strings.Contains(raw, "-") {
		sep = "-"
	}

	parts := strings.Split(raw, sep)
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("date %q: expected 3 components, got %d", raw, len(parts))
	}

	p1, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	p2, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	yearStr := strings.TrimSpace(parts[2])
	year, err3 := strconv.Atoi(yearStr)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("date %q: non-numeric component", raw)
	}

	if len(yearStr) == 2 {
		if year >= twoDigitYearPivot {
			year += 1900
		} else {
			year += 2000
		}
	}

	var day, month int
	if p1 > 12 {
		day, month = p1, p2
	} else {
		month, day = p1, p2
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date %q: out of range", raw)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, fmt.Errorf("date %q: invalid calendar date", raw)
	}

	return t, nil
}

// FormatISO renders a date in the canonical ISO form used for match keys.
func FormatISO(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseStatPair parses an "A - B" stat pair. Anything that does not split
// into exactly two numeric parts degrades to (0, 0).
func ParseStatPair(raw string) (int, int) {
	parts := strings.Split(raw, "-")
	if len(parts) != 2 {
		return 0, 0
	}

	a, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	b, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0
	}

	return a, b
}

// ParseOdd parses a decimal odd. The site uses both "." and "," as the
// decimal separator and a dash as placeholder for missing odds; absent or
// placeholder values return OddUnset.
func ParseOdd(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "-" || raw == "—" {
		return OddUnset
	}

	raw = strings.ReplaceAll(raw, ",", ".")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return OddUnset
	}

	return v
}

// CleanName collapses internal whitespace and title-cases each word, so the
// same team scraped from different pages yields an identical key component.
func CleanName(raw string) string {
	fields := strings.Fields(raw)
	for i, f := range fields {
		fields[i] = titleWord(f)
	}
	return strings.Join(fields, " ")
}

// titleWord uppercases every letter that follows a non-letter, so names
// like "bodo/glimt" come out "Bodo/Glimt".
func titleWord(w string) string {
	runes := []rune(strings.ToLower(w))
	prevLetter := false
	for i, r := range runes {
		letter := unicode.IsLetter(r)
		if letter && !prevLetter {
			runes[i] = unicode.ToUpper(r)
		}
		prevLetter = letter
	}
	return string(runes)
}
