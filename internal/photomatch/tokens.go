package photomatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "in": true,
	"of": true, "on": true, "the": true, "to": true, "with": true,
}

// normalize case-folds s and collapses whitespace.
func normalize(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// tokenize splits s into folded words of at least two runes, dropping stop
// words.
func tokenize(s string) []string {
	words := strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := words[:0]
	for _, w := range words {
		if len([]rune(w)) < 2 || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

type wordSet map[string]struct{}

func newWordSet(texts ...string) wordSet {
	s := make(wordSet)
	for _, t := range texts {
		for _, w := range tokenize(t) {
			s[w] = struct{}{}
		}
	}
	return s
}

func (s wordSet) has(w string) bool {
	_, ok := s[w]
	return ok
}

// partialMatch reports whether the token sequence of either string appears
// as a run of whole tokens in the other. Strings with no tokens (single
// letters, stop words) never match.
func partialMatch(a, b string) bool {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	pa := " " + strings.Join(ta, " ") + " "
	pb := " " + strings.Join(tb, " ") + " "
	return strings.Contains(pa, pb) || strings.Contains(pb, pa)
}
