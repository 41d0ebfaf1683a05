package pathmatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgseal/pgseal/pkg/pathmatch"
)

func matchOne(t *testing.T, pattern, path string) bool {
	t.Helper()

	m, err := pathmatch.NewMatcher([]string{pattern})
	require.NoError(t, err)

	return m.MatchAny(path)
}

func TestMatcherWildcards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		// unlike filepath.Match, * and ? cross directory levels
		{"star_spans_separators", "*.txt", "dir/sub/note.txt", true},
		{"star_spans_tree", "docs/*", "docs/a/b/c.md", true},
		{"question_matches_separator", "a?b", "a/b", true},
		{"question_is_exactly_one", "a?b", "ab", false},
		{"anchored_full_match", "sub/note.txt", "dir/sub/note.txt", false},
		{"literal", "dir/note.txt", "dir/note.txt", true},
		{"dot_slash_stripped", "./src/*.go", "src/main.go", true},
		{"regexp_metachars_are_literal", "a+b.txt", "a+b.txt", true},
		{"regexp_metachars_no_repeat", "a+b.txt", "aab.txt", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, matchOne(t, tc.pattern, tc.path))
		})
	}
}

func TestMatcherCharacterClasses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    bool
	}{
		{"range_member", "log[0-9].txt", "log3.txt", true},
		{"range_nonmember", "log[0-9].txt", "logx.txt", false},
		{"negation", "[!a]bc", "xbc", true},
		{"negation_excludes", "[!a]bc", "abc", false},
		{"literal_closing_bracket", "[]]x", "]x", true},
		{"escaped_star_is_literal", `a\*b`, "a*b", true},
		{"escaped_star_no_wildcard", `a\*b`, "aXb", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, matchOne(t, tc.pattern, tc.path))
		})
	}
}

func TestMatcherBadPatterns(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{"a[bc", `broken\`} {
		_, err := pathmatch.NewMatcher([]string{pattern})
		assert.Error(t, err, pattern)
		assert.ErrorContains(t, err, pattern, "error must name the offending pattern")
	}
}

func TestMatchAny(t *testing.T) {
	t.Parallel()

	m, err := pathmatch.NewMatcher([]string{"*.log", "tmp/*"})
	require.NoError(t, err)

	assert.True(t, m.MatchAny("deep/dir/x.log"))
	assert.True(t, m.MatchAny("tmp/scratch"))
	assert.False(t, m.MatchAny("src/main.go"))

	empty, err := pathmatch.NewMatcher(nil)
	require.NoError(t, err)
	assert.False(t, empty.MatchAny("anything"))
}
