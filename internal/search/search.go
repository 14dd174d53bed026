// Package search scores tab titles and URLs against the sidebar search box.
package search

import (
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Score reports how well query matches text as a case-insensitive ordered
// subsequence. An empty query matches everything with score 1. A non-empty
// query never matches empty text. A match scores the number of query runes;
// a miss scores 0.
func Score(query, text string) int {
	if query == "" {
		return 1
	}
	if text == "" {
		return 0
	}
	if !fuzzy.MatchFold(query, text) {
		return 0
	}
	return utf8.RuneCountInString(query)
}

// Normalize turns the raw search box value into the term used for scoring.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Haystack is the text a tab is scored against.
func Haystack(title, url string) string {
	return title + " " + url
}
