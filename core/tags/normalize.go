package tags

import (
	"regexp"
	"strings"
)

var separators = regexp.MustCompile(`[-_\s.]+`)

// Normalize lowercases a tag and strips hyphens, underscores, dots and whitespace.
// "RTU-F04", "rtu_f04" and "RTU F04" all normalize to "rtuf04".
func Normalize(tag string) string {
	return separators.ReplaceAllString(strings.ToLower(tag), "")
}

// Equal reports whether two tags normalize to the same string
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
