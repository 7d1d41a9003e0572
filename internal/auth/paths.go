// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// WildcardMarker at the end of an excluded path turns it into a prefix match.
const WildcardMarker = "*"

// pathRule is one compiled excluded-path entry.
type pathRule struct {
	exact string
	glob  glob.Glob
}

func (r pathRule) match(path string) bool {
	if r.glob != nil {
		return r.glob.Match(path)
	}
	return r.exact == path
}

// ExcludedPaths is a compiled set of paths that do not require authentication.
type ExcludedPaths struct {
	rules []pathRule
}

// CompileExcludedPaths compiles entries. An entry ending in WildcardMarker
// matches any path that starts with the entry minus the marker; everything
// else in the entry is literal. Other entries must match exactly.
func CompileExcludedPaths(entries []string) (*ExcludedPaths, error) {
	rules := make([]pathRule, 0, len(entries))
	for _, entry := range entries {
		prefix, wildcard := strings.CutSuffix(entry, WildcardMarker)
		if !wildcard {
			rules = append(rules, pathRule{exact: entry})
			continue
		}
		g, err := glob.Compile(glob.QuoteMeta(prefix) + WildcardMarker)
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_EXCLUDED_PATH").
				With("entry", entry).
				Wrap(err)
		}
		rules = append(rules, pathRule{glob: g})
	}
	return &ExcludedPaths{rules: rules}, nil
}

// Len returns the number of compiled entries.
func (e *ExcludedPaths) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

// Excludes reports whether path is excluded from authentication.
// A trailing slash is appended to path before comparison.
func (e *ExcludedPaths) Excludes(path string) bool {
	if e == nil || path == "" {
		return false
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	for _, r := range e.rules {
		if r.match(path) {
			return true
		}
	}
	return false
}

// RequireAuth reports whether path needs authentication given the excluded
// entries. An empty path or an empty exclusion list always requires it.
func RequireAuth(path string, excludedPaths []string) bool {
	if path == "" || len(excludedPaths) == 0 {
		return true
	}
	excluded, err := CompileExcludedPaths(excludedPaths)
	if err != nil {
		return true
	}
	return !excluded.Excludes(path)
}
