// Package pathmatch matches walked paths against glob patterns with the
// semantics of find's -path test. Wildcards are not stopped by the path
// separator, so a single * can span directory levels; this is fnmatch(3)
// without FNM_PATHNAME, and deliberately not filepath.Match.
package pathmatch

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Matcher is a compiled pattern set, reusable across a whole walk.
//
// Pattern syntax: * and ? match any character including the separator,
// [...] is a character class with ! negation and ] as a literal first
// member, and backslash escapes the character after it. A leading "./"
// is dropped so patterns line up with cleaned paths.
type Matcher struct {
	set []*regexp.Regexp
}

// NewMatcher compiles the patterns. A nil or empty list yields a matcher
// that matches nothing.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{set: make([]*regexp.Regexp, 0, len(patterns))}

	for _, pat := range patterns {
		expr, err := translate(strings.TrimPrefix(pat, "./"))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pat, err)
		}

		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pat, err)
		}

		m.set = append(m.set, re)
	}

	return m, nil
}

// MatchAny reports whether any pattern matches the whole path.
func (m *Matcher) MatchAny(path string) bool {
	for _, re := range m.set {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}

var (
	errTrailingEscape = errors.New("trailing backslash")
	errOpenClass      = errors.New("unterminated character class")
)

// translate rewrites one glob pattern as an anchored regexp.
func translate(pattern string) (string, error) {
	var out strings.Builder

	out.WriteByte('^')

	for i := 0; i < len(pattern); {
		switch c := pattern[i]; c {
		case '*':
			out.WriteString(".*")
			i++
		case '?':
			out.WriteByte('.')
			i++
		case '\\':
			if i == len(pattern)-1 {
				return "", errTrailingEscape
			}

			out.WriteString(regexp.QuoteMeta(pattern[i+1 : i+2]))
			i += 2
		case '[':
			end := classEnd(pattern, i)
			if end < 0 {
				return "", errOpenClass
			}

			body := pattern[i+1 : end]
			out.WriteByte('[')

			if strings.HasPrefix(body, "!") {
				out.WriteByte('^')
				body = body[1:]
			}

			// regexp has no literal-] convention, it needs the escape
			if strings.HasPrefix(body, "]") {
				out.WriteString(`\]`)
				body = body[1:]
			}

			out.WriteString(body)
			out.WriteByte(']')
			i = end + 1
		default:
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	out.WriteByte('$')

	return out.String(), nil
}

// classEnd returns the index of the ] that closes the class opened at
// open, or -1. A ] right after the opening bracket (or after the !
// negation) is a literal member, not the terminator.
func classEnd(pattern string, open int) int {
	i := open + 1
	if i < len(pattern) && pattern[i] == '!' {
		i++
	}

	if i < len(pattern) && pattern[i] == ']' {
		i++
	}

	for ; i < len(pattern); i++ {
		if pattern[i] == ']' {
			return i
		}
	}

	return -1
}
