package util

import "strings"

// SanitizeText strips bytes that Postgres text columns reject before abstracts
// and chunk text are stored. PDF extraction in particular leaks NUL bytes.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	// NUL is never valid in a PostgreSQL text value.
	s = strings.ReplaceAll(s, "\x00", "")

	// Drop remaining non-printing controls; keep ordinary whitespace, which
	// the sentence splitter and hyphenation repair depend on.
	out := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			out = append(out, ch)
			continue
		}
		if ch < 0x20 {
			continue
		}
		out = append(out, ch)
	}
	return strings.TrimSpace(string(out))
}
