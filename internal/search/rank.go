package search

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kayz/kidsearch/internal/security"
)

// Lexical bonus weights.
const (
	TitleFullBonus  = 1.0
	TitleWordsBonus = 0.5
	TitlePrefix     = 0.4
	SnippetBonus    = 0.35
)

var wordSplit = regexp.MustCompile(`[\s,.:;!?]+`)

func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// QueryWords splits a lowercased query into words longer than one character.
func QueryWords(query string) []string {
	var words []string
	for _, w := range wordSplit.Split(lower(strings.TrimSpace(query)), -1) {
		if len([]rune(w)) > 1 {
			words = append(words, w)
		}
	}
	return words
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

// LexicalBonus scores literal overlap between the query and a result.
func LexicalBonus(title, snippet, query string) float64 {
	q := lower(strings.TrimSpace(query))
	if q == "" {
		return 0
	}
	title = lower(title)
	snippet = lower(snippet)
	words := QueryWords(query)

	var bonus float64
	if strings.Contains(title, q) {
		bonus += TitleFullBonus
	} else if len(words) > 1 && containsAll(title, words) {
		bonus += TitleWordsBonus
	}
	if strings.HasPrefix(title, q) {
		bonus += TitlePrefix
	}
	if snippet != "" && len(words) > 0 && containsAll(snippet, words) {
		bonus += SnippetBonus
	}
	return bonus
}

// positional decays linearly from weight to weight/2 across a list of n.
func positional(weight float64, i, n int) float64 {
	return weight * (1 - float64(i)/float64(n)/2)
}

var schemePrefix = regexp.MustCompile(`(?i)^https?://`)

// NormalizeLink is the deduplication identity of a link: no scheme, no
// leading www., no query or fragment, no trailing slash, lowercase host.
func NormalizeLink(link string) string {
	s := schemePrefix.ReplaceAllString(strings.TrimSpace(link), "")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	host, rest := s, ""
	if i := strings.Index(s, "/"); i >= 0 {
		host, rest = s[:i], s[i:]
	}
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	return strings.TrimSuffix(host+rest, "/")
}

func dedupKey(r Result, kind Kind) string {
	if kind == KindImages && r.Image != nil && r.Image.ContextURL != "" {
		return NormalizeLink(r.Image.ContextURL)
	}
	return NormalizeLink(r.Link)
}

// Merge scores primary and secondary lists, orders them by weight and drops
// duplicates. The first (highest weighted) copy of a link wins.
func Merge(primary []Result, secondary [][]Result, query string, kind Kind) []RankedResult {
	var all []RankedResult
	add := func(list []Result, weightOf func(Result) float64) {
		for i, r := range list {
			all = append(all, RankedResult{
				Result:           r,
				OriginalIndex:    i,
				CalculatedWeight: positional(weightOf(r), i, len(list)) + LexicalBonus(r.Title, r.SnippetPlain, query),
			})
		}
	}

	add(primary, func(Result) float64 { return 1.0 })
	for _, list := range secondary {
		add(list, func(r Result) float64 { return r.SourceWeight })
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].CalculatedWeight != all[j].CalculatedWeight {
			return all[i].CalculatedWeight > all[j].CalculatedWeight
		}
		return all[i].OriginalIndex < all[j].OriginalIndex
	})

	seen := make(map[string]bool, len(all))
	merged := make([]RankedResult, 0, len(all))
	for _, r := range all {
		if security.ValidateResultLink(r.Link) != nil {
			continue
		}
		key := dedupKey(r.Result, kind)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, r)
	}
	return merged
}
