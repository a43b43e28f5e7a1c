package search

import (
	"regexp"
	"strings"
)

var (
	frenchHint  = regexp.MustCompile(`(?i)[àâçéèêëîïôûùüÿœæ]|\b(le|la|les|un|une|des)\b`)
	englishHint = regexp.MustCompile(`(?i)\b(the|and|for|what|who|are)\b`)
)

// CleanQuery keeps the text before the first '?', trimmed.
func CleanQuery(q string) string {
	if i := strings.Index(q, "?"); i >= 0 {
		q = q[:i]
	}
	return strings.TrimSpace(q)
}

// DetectLang guesses fr or en from diacritics and function words. It returns
// "" when there is no signal.
func DetectLang(q string) string {
	switch {
	case frenchHint.MatchString(q):
		return "fr"
	case englishHint.MatchString(q):
		return "en"
	}
	return ""
}
