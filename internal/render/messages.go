// Package render turns search responses into text for the terminal and
// the other user-facing surfaces.
package render

import (
	"context"
	"errors"

	"github.com/kayz/kidsearch/internal/search"
)

// Messages holds the user-facing strings of one language.
type Messages struct {
	NoResults   string
	NoImages    string
	Suggestions []string
	Oops        string
	EmptyQuery  string
	LastPage    string
	About       string
	Results     string
	ReadMore    string
	Degraded    string
	Page        string
}

var catalog = map[string]Messages{
	"fr": {
		NoResults: "Aucun résultat trouvé pour",
		NoImages:  "Aucune image trouvée pour",
		Suggestions: []string{
			"Vérifiez l'orthographe.",
			"Essayez avec des mots-clés différents ou plus généraux.",
			"Utilisez moins de mots.",
		},
		Oops:       "Oups, essaie encore ! 🎈",
		EmptyQuery: "Tape un mot pour lancer ta recherche.",
		LastPage:   "Il n'y a pas d'autres pages de résultats.",
		About:      "Environ",
		Results:    "résultats",
		ReadMore:   "En savoir plus sur",
		Degraded:   "Certains résultats ne sont pas disponibles pour le moment.",
		Page:       "Page",
	},
	"en": {
		NoResults: "No results found for",
		NoImages:  "No images found for",
		Suggestions: []string{
			"Make sure all words are spelled correctly.",
			"Try different or more general keywords.",
			"Try fewer keywords.",
		},
		Oops:       "Oops, try again! 🎈",
		EmptyQuery: "Type a word to start searching.",
		LastPage:   "There are no more result pages.",
		About:      "About",
		Results:    "results",
		ReadMore:   "Read more on",
		Degraded:   "Some results are not available right now.",
		Page:       "Page",
	},
}

// MessagesFor falls back to French for unknown languages.
func MessagesFor(lang string) Messages {
	if m, ok := catalog[lang]; ok {
		return m
	}
	return catalog["fr"]
}

// FriendlyError maps an engine error to a short message a child can read.
// Internal details never reach the user.
func FriendlyError(err error, lang string) string {
	m := MessagesFor(lang)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, search.ErrEmptyQuery):
		return m.EmptyQuery
	case errors.Is(err, search.ErrPageOutOfRange):
		return m.LastPage
	default:
		// ErrAllSourcesFailed, timeouts and anything unexpected.
		return m.Oops
	}
}

// IsQuiet reports errors that should not be shown at all.
func IsQuiet(err error) bool {
	return errors.Is(err, search.ErrStaleQuery) || errors.Is(err, context.Canceled)
}
