package photomatch

import (
	"github.com/sells-group/medspa-portal/internal/model"
)

// Match weights.
const (
	exactTreatmentPoints   = 50
	partialTreatmentPoints = 25
	categoryPoints         = 10
	exactIssuePoints       = 10
	partialIssuePoints     = 5
	wordPoints             = 1
	storyWordPoints        = 2
)

// Match is a scored candidate.
type Match struct {
	Photo model.Photo `json:"photo"`
	Score int         `json:"score"`
}

type query struct {
	treatment string
	category  string
	serves    []string
	words     []string
}

func (c *Catalog) newQuery(treatment string, serves []string) query {
	q := query{treatment: normalize(treatment)}
	q.category = c.categoryOf(q.treatment)

	seen := make(map[string]bool)
	add := func(s string) {
		for _, w := range tokenize(s) {
			if !seen[w] {
				seen[w] = true
				q.words = append(q.words, w)
			}
		}
	}
	add(treatment)
	for _, s := range serves {
		if n := normalize(s); n != "" {
			q.serves = append(q.serves, n)
		}
		add(s)
	}
	return q
}

func (q query) score(ip indexedPhoto) int {
	score := 0

	switch {
	case q.treatment != "" && ip.treatment == q.treatment:
		score += exactTreatmentPoints
	case partialMatch(ip.treatment, q.treatment):
		score += partialTreatmentPoints
	}

	if q.category != "" && ip.category == q.category {
		score += categoryPoints
	}

	for _, s := range q.serves {
		exact, partial := false, false
		for _, is := range ip.issues {
			if is == s {
				exact = true
				break
			}
			if partialMatch(is, s) {
				partial = true
			}
		}
		switch {
		case exact:
			score += exactIssuePoints
		case partial:
			score += partialIssuePoints
		}
	}

	for _, w := range q.words {
		if ip.matchWords.has(w) {
			score += wordPoints
		}
		if ip.storyWords.has(w) {
			score += storyWordPoints
		}
	}
	return score
}

// Best returns the highest-scoring photo for a treatment and the findings it
// serves, or nil when no photo scores above zero. On ties the photo that
// appears first in the catalog wins.
func (c *Catalog) Best(treatment string, serves []string) *model.Photo {
	q := c.newQuery(treatment, serves)

	best, bestScore := -1, 0
	for i, ip := range c.indexed {
		if s := q.score(ip); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 {
		return nil
	}
	p := c.photos[best]
	return &p
}

// Rank scores every photo, keeping catalog order, and drops zero scores.
func (c *Catalog) Rank(treatment string, serves []string) []Match {
	q := c.newQuery(treatment, serves)

	var out []Match
	for i, ip := range c.indexed {
		if s := q.score(ip); s > 0 {
			out = append(out, Match{Photo: c.photos[i], Score: s})
		}
	}
	return out
}
