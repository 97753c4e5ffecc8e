package store

import "time"

// MatchKey is the natural key of a persisted match. Date is the canonical
// ISO form so keys built from the store and from freshly normalized rows
// compare byte-for-byte.
type MatchKey struct {
	Date string // 2006-01-02
	Home string
	Away string
}

// Match is a fully normalized historical match, immutable once created.
type Match struct {
	League string
	Date   time.Time
	Home   string
	Away   string

	HGoalsFT int
	AGoalsFT int
	HGoalsHT int
	AGoalsHT int

	HShots         int
	AShots         int
	HShotsOnTarget int
	AShotsOnTarget int
	HAttacks       int
	AAttacks       int
	HCorners       int
	ACorners       int

	OddHome float64
	OddDraw float64
	OddAway float64
}

// Key returns the match's natural key.
func (m *Match) Key() MatchKey {
	return MatchKey{
		Date: m.Date.Format("2006-01-02"),
		Home: m.Home,
		Away: m.Away,
	}
}
