package scan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatcherKeywordLocaleAndDate(t *testing.T) {
	t.Parallel()

	m, err := CompileMatcher([]string{"TOI", "TOIH"}, []string{"hyderabad", "hyd"}, "29-11-2025")
	require.NoError(t, err)

	cases := []struct {
		filename string
		want     bool
	}{
		{"TOI_Hyderabad_29-11-2025.pdf", true},
		{"TOI_Mumbai_29-11-2025.pdf", false}, // missing locale token
		{"TOIH_Hyd_29.11.2025.pdf", true},    // alternate separator
		{"ToiHyd2911.pdf", false},            // no recognizable date encoding
		{"toih_hyd_29/11/2025.pdf", true},    // case-insensitive, slash separator
		{"TOI_Hyderabad_29 11 2025.pdf", true},
		{"TOI_Hyderabad_29-11.pdf", true},  // year omitted
		{"TOI_Hyderabad_30-11.pdf", false}, // wrong day
		{"Hindu_Hyderabad_29-11-2025.pdf", false},
	}
	for _, tc := range cases {
		require.Equalf(t, tc.want, m.Match(tc.filename), "filename %q", tc.filename)
	}
}

func TestMatcherDayWithoutLeadingZero(t *testing.T) {
	t.Parallel()

	m, err := CompileMatcher([]string{"TOI"}, nil, "05-03-2026")
	require.NoError(t, err)

	require.True(t, m.Match("TOI_5-03-2026.pdf"))
	require.True(t, m.Match("TOI_05.03.pdf"))
	require.False(t, m.Match("TOI_5-3-2026.pdf")) // month always two digits
}

func TestMatcherWithoutSecondaryTokens(t *testing.T) {
	t.Parallel()

	m, err := CompileMatcher([]string{"Hindu"}, nil, "01-01-2026")
	require.NoError(t, err)

	require.True(t, m.Match("Hindu_Delhi_01-01-2026.pdf"))
}

func TestMatcherUnparsableDateFallsBackToLiteral(t *testing.T) {
	t.Parallel()

	m, err := CompileMatcher([]string{"TOI"}, nil, "Nov-29")
	require.NoError(t, err)

	require.True(t, m.Match("TOI_Nov-29_edition.pdf"))
	require.False(t, m.Match("TOI_29-11-2025.pdf"))
}

func TestCompileMatcherRejectsEmptyKeywords(t *testing.T) {
	t.Parallel()

	_, err := CompileMatcher(nil, nil, "29-11-2025")
	require.Error(t, err)

	_, err = CompileMatcher([]string{" ", ""}, nil, "29-11-2025")
	require.Error(t, err)
}

func TestMatcherPredicateIsPure(t *testing.T) {
	t.Parallel()

	m, err := CompileMatcher([]string{"TOI"}, []string{"hyd"}, "29-11-2025")
	require.NoError(t, err)

	pred := m.Predicate()
	for i := 0; i < 3; i++ {
		require.True(t, pred("TOI_Hyd_29-11-2025.pdf"))
		require.False(t, pred("TOI_Hyd_30-11-2025.pdf"))
	}
}
