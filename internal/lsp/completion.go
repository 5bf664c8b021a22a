package lsp

import (
	"sort"
	"strings"
	"unicode"
)

// CompletionResult is a ranked completion list ready for display.
type CompletionResult struct {
	// Items are the surviving options in display order.
	Items []CompletionItem

	// Start is the rune offset where the accepted insertion text replaces
	// the typed token. Equals the cursor offset when no token was matched.
	Start int

	// Token is the partial token extracted from the document, empty when
	// filtering was skipped.
	Token string
}

// RankCompletions post-processes an engine completion list against the text
// under the cursor.
//
// The token under the cursor is extracted by scanning backwards over the
// characters that actually occur in the options' comparison keys. A token
// that is not purely word characters disables filtering and ranking: the
// full option set is returned unranked at the original cursor position.
//
// Otherwise options survive only if their comparison key starts with the
// lowercase token (case-insensitive prefix, no fuzzy scoring), and options
// whose literal insertion text starts with the exact typed token sort before
// those that do not. Ties preserve the engine-supplied order.
func RankCompletions(items []CompletionItem, text string, offset int) *CompletionResult {
	token := tokenUnderCursor(items, text, offset)

	if !isWordToken(token) {
		return &CompletionResult{Items: items, Start: offset}
	}

	lowerToken := strings.ToLower(token)
	filtered := make([]CompletionItem, 0, len(items))
	for _, item := range items {
		if strings.HasPrefix(strings.ToLower(filterKey(item)), lowerToken) {
			filtered = append(filtered, item)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return strings.HasPrefix(insertKey(filtered[i]), token) &&
			!strings.HasPrefix(insertKey(filtered[j]), token)
	})

	return &CompletionResult{
		Items: filtered,
		Start: offset - len([]rune(token)),
		Token: token,
	}
}

// filterKey is the comparison key used for prefix filtering.
func filterKey(item CompletionItem) string {
	if item.FilterText != "" {
		return item.FilterText
	}
	return item.Label
}

// insertKey is the literal text insertion would produce.
func insertKey(item CompletionItem) string {
	if item.InsertText != "" {
		return item.InsertText
	}
	return item.Label
}

// tokenUnderCursor extracts the user's partial token: the longest run of
// characters before offset drawn from the character sets the options
// themselves use. Deriving the sets from the options lets tokens include
// option punctuation (a dotted module path, say) so the non-word bypass can
// see it.
func tokenUnderCursor(items []CompletionItem, text string, offset int) string {
	charset := make(map[rune]bool)
	for _, item := range items {
		for _, r := range filterKey(item) {
			charset[r] = true
		}
		for _, r := range insertKey(item) {
			charset[r] = true
		}
	}
	if len(charset) == 0 {
		return ""
	}

	runes := []rune(text)
	if offset > len(runes) {
		offset = len(runes)
	}
	if offset < 0 {
		offset = 0
	}

	start := offset
	for start > 0 && charset[runes[start-1]] {
		start--
	}
	return string(runes[start:offset])
}

// isWordToken reports whether every rune is a letter, digit or underscore.
// The empty token counts as a word token: it filters nothing out.
func isWordToken(token string) bool {
	for _, r := range token {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
