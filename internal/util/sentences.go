package util

import (
	"strings"
	"unicode"
)

// abbreviations that end with a period mid-sentence in scholarly prose
var abbrevSuffixes = []string{
	"e.g", "i.e", "cf", "vs", "al", "ca", "resp", "approx",
	"fig", "figs", "eq", "eqs", "sec", "ref", "refs", "vol", "pp",
}

// SplitSentences splits prose into sentences on terminal punctuation followed
// by whitespace and an uppercase letter or digit. Periods after common
// abbreviations, initials, and inside decimal numbers do not split.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	out := make([]string, 0)
	start := 0
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && strings.ContainsRune(`)]"'`, runes[j]) {
			j++
		}
		if j >= len(runes) {
			break
		}
		if !unicode.IsSpace(runes[j]) {
			continue
		}
		k := j
		for k < len(runes) && unicode.IsSpace(runes[k]) {
			k++
		}
		if k >= len(runes) {
			break
		}
		if !unicode.IsUpper(runes[k]) && !unicode.IsDigit(runes[k]) {
			continue
		}
		if ch == '.' && endsWithAbbreviation(runes[start:i]) {
			continue
		}
		s := strings.TrimSpace(string(runes[start:j]))
		if s != "" {
			out = append(out, s)
		}
		start = k
		i = k - 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func endsWithAbbreviation(prefix []rune) bool {
	// token directly before the period
	e := len(prefix)
	s := e
	for s > 0 && (unicode.IsLetter(prefix[s-1]) || prefix[s-1] == '.') {
		s--
	}
	tok := string(prefix[s:e])
	if len([]rune(tok)) == 1 && unicode.IsUpper([]rune(tok)[0]) {
		return true // middle initial
	}
	low := strings.ToLower(strings.TrimRight(string(prefix), "."))
	for _, a := range abbrevSuffixes {
		if !strings.HasSuffix(low, a) {
			continue
		}
		idx := len(low) - len(a)
		if idx == 0 || !unicode.IsLetter(rune(low[idx-1])) {
			return true
		}
	}
	return false
}

// CleanHyphenation removes hyphen-newline artifacts that PDF extraction
// leaves inside words broken across lines.
func CleanHyphenation(s string) string {
	return strings.ReplaceAll(s, "-\n", "")
}
