// Package identity maps player display names to stable comparison keys and
// reconciles records after a player renames.
package identity

import (
	"regexp"
	"strings"
)

// Players on foreign servers carry a parenthetical world tag in their
// display name, e.g. "Krieger (w51net)" or "Magda (s37de)". The strip
// pattern is deliberately narrow (only s/w worlds) so role suffixes like
// "(AFK)" survive normalization; the extract pattern is broader because
// some exports use other leading letters, e.g. "(f25eu)".
var (
	trailingTagRe = regexp.MustCompile(`\s*\([sw]\d+\w*\)$`)
	anyTagRe      = regexp.MustCompile(`\(([a-z]\d+[a-z0-9]*)\)`)
)

// Normalize maps a raw display name to its canonical comparison key:
// lowercased, trimmed, with one trailing server-tag group removed. Two
// names normalize equal iff they are the same identity modulo case,
// whitespace and server tag.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = trailingTagRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ExtractTag returns the lowercased server tag embedded in a display name,
// or "" when the name carries none.
func ExtractTag(raw string) string {
	m := anyTagRe.FindStringSubmatch(strings.ToLower(raw))
	if m == nil {
		return ""
	}
	return m[1]
}
