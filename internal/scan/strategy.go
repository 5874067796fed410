package scan

import "strings"

// Strategy selects the matching mode for a scan. It is decided once at
// orchestration start; the engine dispatches on the concrete type.
type Strategy interface {
	// Criteria is the normalized human-readable form of the search,
	// used for fingerprints, reports, and output headers.
	Criteria() string
}

// Deterministic matches filenames with a pure predicate compiled from
// keywords and a target date. No external classifier is involved.
type Deterministic struct {
	Predicate  Predicate
	Keywords   []string
	DateStr    string
	TargetDate string // DD-MM-YYYY; empty disables per-message date skipping
}

// Criteria implements Strategy.
func (d Deterministic) Criteria() string {
	return "keywords=" + strings.Join(d.Keywords, ",") + " date=" + d.DateStr
}

// Semantic evaluates candidates with the external classifier against a
// free-text query.
type Semantic struct {
	Query string
}

// Criteria implements Strategy.
func (s Semantic) Criteria() string {
	return s.Query
}
