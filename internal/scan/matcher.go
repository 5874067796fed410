package scan

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is the user-facing date format for deterministic matching.
const DateLayout = "02-01-2006"

// Predicate decides whether a filename satisfies the compiled criteria.
// It is a pure function of its input.
type Predicate func(filename string) bool

// Matcher holds the compiled conditions of a deterministic search.
// A filename matches when every configured condition holds.
type Matcher struct {
	primary   *regexp.Regexp
	secondary *regexp.Regexp
	date      *regexp.Regexp
}

// CompileMatcher builds a Matcher from required keyword tokens, an
// optional secondary (locale) token set, and a target date in
// DD-MM-YYYY. A date that fails to parse degrades to a literal,
// escaped substring requirement.
func CompileMatcher(keywords, secondary []string, dateStr string) (*Matcher, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}

	primary, err := compileTokenSet(keywords)
	if err != nil {
		return nil, fmt.Errorf("compile keywords: %w", err)
	}

	m := &Matcher{primary: primary, date: compileDatePattern(dateStr)}

	if len(secondary) > 0 {
		sec, err := compileTokenSet(secondary)
		if err != nil {
			return nil, fmt.Errorf("compile secondary tokens: %w", err)
		}
		m.secondary = sec
	}
	return m, nil
}

// Match reports whether the filename satisfies all compiled conditions.
func (m *Matcher) Match(filename string) bool {
	if !m.primary.MatchString(filename) {
		return false
	}
	if m.secondary != nil && !m.secondary.MatchString(filename) {
		return false
	}
	return m.date.MatchString(filename)
}

// Predicate returns the matcher as a standalone predicate.
func (m *Matcher) Predicate() Predicate {
	return m.Match
}

func compileTokenSet(tokens []string) (*regexp.Regexp, error) {
	escaped := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(tok))
	}
	if len(escaped) == 0 {
		return nil, fmt.Errorf("token set is empty")
	}
	return regexp.Compile("(?i)(?:" + strings.Join(escaped, "|") + ")")
}

// compileDatePattern accepts DD-MM-YYYY and matches the date rendered
// with -, ., / or space separators, with or without the year, and with
// the day with or without a leading zero.
func compileDatePattern(dateStr string) *regexp.Regexp {
	dt, err := time.Parse(DateLayout, strings.TrimSpace(dateStr))
	if err != nil {
		return regexp.MustCompile("(?i)" + regexp.QuoteMeta(dateStr))
	}

	day, month, year := dt.Day(), int(dt.Month()), dt.Year()
	sep := `[-./ ]`
	patterns := []string{
		fmt.Sprintf(`%02d%s%02d%s%d`, day, sep, month, sep, year),
		fmt.Sprintf(`%02d%s%02d`, day, sep, month),
		fmt.Sprintf(`%d%s%02d%s%d`, day, sep, month, sep, year),
		fmt.Sprintf(`%d%s%02d`, day, sep, month),
	}
	return regexp.MustCompile("(?i)(?:" + strings.Join(patterns, "|") + ")")
}
