package validator

import (
	"path/filepath"
	"strings"
)

// controlOperators split a shell line into segments; the program that runs
// first sits left of the earliest one.
var controlOperators = []string{"&&", "||", "|", ";"}

// ExtractCommand returns the program token a shell line invokes: the first
// whitespace-separated word of its left-most segment. Path tokens keep their
// prefix so existence checks can treat them as files. It reports false for
// empty or operator-only lines.
func ExtractCommand(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	cut := len(line)
	for _, op := range controlOperators {
		if idx := strings.Index(line, op); idx >= 0 && idx < cut {
			cut = idx
		}
	}

	fields := strings.Fields(line[:cut])
	if len(fields) == 0 {
		return "", false
	}
	return fields[0], true
}

// IsPathLike reports whether a token names a file rather than a PATH lookup.
func IsPathLike(token string) bool {
	return strings.HasPrefix(token, "/") || strings.HasPrefix(token, "./") || strings.HasPrefix(token, "~/")
}

// NormalizeName strips path prefixes from a token, leaving the bare program
// name used for display and for fallback lookups.
func NormalizeName(token string) string {
	if !IsPathLike(token) {
		return token
	}
	return filepath.Base(token)
}
