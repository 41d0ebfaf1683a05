// Package filter expands the positional arguments of a batch into the
// concrete input list: explicit files pass straight through, directories
// are walked and matched against include/exclude patterns with find -path
// semantics.
package filter

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pgseal/pgseal/pkg/pathmatch"
)

// Filter selects files based on include/exclude patterns. Empty includes
// means "match all". Excludes always win.
type Filter struct {
	includes *pathmatch.Matcher
	excludes *pathmatch.Matcher

	// suffix of already-produced messages; they are skipped during
	// directory walks so repeated runs do not seal messages twice
	suffix string
}

// New compiles include/exclude patterns into a reusable filter.
func New(includes, excludes []string, suffix string) (*Filter, error) {
	inc, err := pathmatch.NewMatcher(includes)
	if err != nil {
		return nil, fmt.Errorf("compiling include patterns: %w", err)
	}

	exc, err := pathmatch.NewMatcher(excludes)
	if err != nil {
		return nil, fmt.Errorf("compiling exclude patterns: %w", err)
	}

	return &Filter{includes: inc, excludes: exc, suffix: suffix}, nil
}

// match reports whether the relative path should be included.
func (f *Filter) match(path string, hasIncludes bool) bool {
	if f.suffix != "" && strings.HasSuffix(path, f.suffix) {
		return false
	}

	included := !hasIncludes || f.includes.MatchAny(path)
	excluded := f.excludes.MatchAny(path)

	return included && !excluded
}

// Resolve takes positional args (files or directories) and expands them.
// Explicit files bypass filtering; directories are walked and filtered.
// hasIncludes indicates whether include filtering was requested at all,
// regardless of whether the pattern list is empty. Returns the matched
// files and the total number of candidates scanned.
func Resolve(args, includes, excludes []string, suffix string, hasIncludes bool) (files []string, scanned int, err error) {
	flt, err := New(includes, excludes, suffix)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]struct{})

	for _, arg := range args {
		arg = filepath.Clean(arg)

		info, err := os.Stat(arg)
		if err != nil {
			return nil, 0, fmt.Errorf("stat %q: %w", arg, err)
		}

		if !info.IsDir() {
			scanned++

			if _, ok := seen[arg]; ok {
				continue
			}

			seen[arg] = struct{}{}
			files = append(files, arg)

			continue
		}

		walked, total, err := walkDir(arg, flt, hasIncludes)
		if err != nil {
			return nil, 0, err
		}

		scanned += total

		for _, path := range walked {
			if _, ok := seen[path]; ok {
				continue
			}

			seen[path] = struct{}{}
			files = append(files, path)
		}
	}

	if len(files) == 0 {
		return nil, scanned, fmt.Errorf("no files matched the provided patterns: %v", args)
	}

	return files, scanned, nil
}

// walkDir walks root recursively, returning files that pass the filter.
func walkDir(root string, flt *Filter, hasIncludes bool) (files []string, total int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		total++

		// Use forward slashes for pattern matching consistency.
		clean := filepath.ToSlash(filepath.Clean(path))

		if !flt.match(clean, hasIncludes) {
			return nil
		}

		files = append(files, path)

		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("walking %q: %w", root, err)
	}

	return files, total, nil
}
