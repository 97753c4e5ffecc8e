// Package leagues holds the competition allow-list and the reconciliation
// of raw competition labels against it.
package leagues

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds case, strips diacritics and collapses whitespace so the
// same league spelled differently across pages compares equal.
func Normalize(label string) string {
	folded := strings.ToLower(strings.Join(strings.Fields(label), " "))
	stripped, _, err := transform.String(stripAccents, folded)
	if err != nil {
		return folded
	}
	return stripped
}

// AllowList is the set of competitions in scope for collection. Resolution
// is two-tier: exact normalized match first, then "raw is a substring of an
// allowed label". The substring tier only runs in that direction — a row
// labelled "Serie A - Playoffs" must not resolve to "Serie A".
type AllowList struct {
	canonical []string
	byNorm    map[string]string
}

// New builds an allow-list from canonical labels. Duplicate labels (after
// normalization) keep the first spelling.
func New(labels []string) *AllowList {
	a := &AllowList{byNorm: make(map[string]string, len(labels))}
	for _, l := range labels {
		n := Normalize(l)
		if n == "" {
			continue
		}
		if _, seen := a.byNorm[n]; seen {
			continue
		}
		a.byNorm[n] = l
		a.canonical = append(a.canonical, l)
	}
	return a
}

// LoadFile reads one label per line; blank lines and '#' comments are
// ignored.
func LoadFile(path string) (*AllowList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening allow-list: %w", err)
	}
	defer f.Close()

	var labels []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading allow-list: %w", err)
	}
	return New(labels), nil
}

// Labels returns the canonical labels in insertion order.
func (a *AllowList) Labels() []string {
	out := make([]string, len(a.canonical))
	copy(out, a.canonical)
	return out
}

// Len reports the number of allowed competitions.
func (a *AllowList) Len() int {
	return len(a.canonical)
}

// Resolve maps a raw competition label to its canonical allowed spelling.
// Exact normalized match wins; otherwise the raw label may match as a
// substring of an allowed label, which covers secondary competition rows
// whose name only partially matches the allow-list entry.
func (a *AllowList) Resolve(raw string) (string, bool) {
	n := Normalize(raw)
	if n == "" {
		return "", false
	}

	if c, ok := a.byNorm[n]; ok {
		return c, true
	}

	for _, c := range a.canonical {
		if strings.Contains(Normalize(c), n) {
			return c, true
		}
	}

	return "", false
}

// Default returns the stock allow-list of permitted competitions.
func Default() *AllowList {
	return New([]string{
		"Brasil - Serie A",
		"Brasil - Serie B",
		"Brasil - Serie C",
		"Argentina - Superliga",
		"Argentina - Primera B Nacional",
		"Bolívia - Liga De Futbol Prof",
		"Chile - Primera Division",
		"Colômbia - Liga BetPlay",
		"Equador - Liga Pro",
		"Paraguai - Division 1",
		"Peru - Primera Division",
		"Uruguai - Primera Division",
		"Venezuela - Primera Division",
		"EUA - Major League Soccer",
		"Japão - J-League",
		"Japão - J2-League",
		"Coreia-do-sul - K-League 1",
		"Coreia-do-sul - K League 2",
		"China - Super League",
		"Estônia - Meistriliiga",
		"Finlândia - Veikkausliiga",
		"República da Irlanda - Premier Division",
		"Islândia - Pepsideild",
		"Lituânia - A Lyga",
		"Noruega - Eliteserien",
		"Noruega - Obos-Ligaen",
		"Suécia - Allsvenskan",
		"Suécia - Superettan",
		"Irlanda - Premier Division",
	})
}
