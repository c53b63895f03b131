package match

import (
	"regexp"
	"sort"
	"strings"

	"clipbot/internal/models"
)

// OutcomeKind classifies what the resolution cascade decided
type OutcomeKind int

const (
	// NoMatch means no catalog entry came close enough to the query
	NoMatch OutcomeKind = iota
	// SingleMatch means exactly one entry was resolved with confidence
	SingleMatch
	// Suggestions means several entries are plausible and the user must pick
	Suggestions
)

// Outcome is the result of resolving a query against the catalog.
// Match is set for SingleMatch; Candidates holds up to five ranked entries
// for Suggestions, best first.
type Outcome struct {
	Kind       OutcomeKind
	Match      *models.Movie
	Candidates []*models.Movie
}

// Scores assigned by the cascade. Structural signals (spaceless containment,
// token subset, category word) score below the fuzzy guesses so that
// deliberate-but-noisy typing always outranks true uncertainty.
const (
	scoreSpaceless     = -1.0
	scoreTokenSubset   = -0.75
	scoreCategoryExact = -0.5
	scoreCategoryFuzzy = 0.5
	scorePhonetic      = 1.0
	scoreEditBase      = 2.0 // plus the edit distance
	scoreKeyboardBase  = 4.0 // plus the keyboard score
)

const maxCandidates = 5

type scored struct {
	movie *models.Movie
	score float64
}

// Resolve runs the matching cascade over the catalog for an already
// normalized query (see NormalizeQuery). It is a pure function: popularity
// bookkeeping for a successful resolution belongs to the caller.
func Resolve(query string, catalog []models.Movie) Outcome {
	if query == "" || len(catalog) == 0 {
		return Outcome{Kind: NoMatch}
	}

	// Stage 1: exact title equality.
	for i := range catalog {
		if catalog[i].Title == query {
			return Outcome{Kind: SingleMatch, Match: &catalog[i]}
		}
	}

	pool := make([]scored, 0, 8)
	inPool := make(map[string]bool)
	add := func(m *models.Movie, score float64) {
		if !inPool[m.Title] {
			inPool[m.Title] = true
			pool = append(pool, scored{movie: m, score: score})
		}
	}

	// Stage 2: spaceless containment pre-pass across the whole catalog.
	// The query-contains-title direction only applies to single-token
	// queries: "jawanfullmovie" should find "jawan", but "leo jawan"
	// listing two titles should not resolve to either.
	spaceless := stripSpaces(query)
	singleToken := !strings.ContainsRune(query, ' ')
	if len(spaceless) >= 3 {
		var hits []*models.Movie
		for i := range catalog {
			t := stripSpaces(catalog[i].Title)
			if strings.Contains(t, spaceless) || (singleToken && strings.Contains(spaceless, t)) {
				hits = append(hits, &catalog[i])
			}
		}
		if len(hits) == 1 {
			return Outcome{Kind: SingleMatch, Match: hits[0]}
		}
		for _, h := range hits {
			add(h, scoreSpaceless)
		}
	}

	// Stage 3: token subset. Every query token of length > 1 must appear
	// in the title. A lone survivor wins outright; collisions are ranked.
	tokens := queryTokens(query)
	if len(tokens) > 0 {
		var hits []*models.Movie
		for i := range catalog {
			if titleHasAllTokens(catalog[i].Title, tokens) {
				hits = append(hits, &catalog[i])
			}
		}
		if len(hits) == 1 && len(pool) == 0 {
			return Outcome{Kind: SingleMatch, Match: hits[0]}
		}
		for _, h := range hits {
			add(h, scoreTokenSubset)
		}
	}

	// Stage 4: scored fuzzy cascade. Skipped entirely for very short
	// queries, where fuzzing produces combinatorial false positives.
	if len([]rune(query)) >= 3 {
		for i := range catalog {
			m := &catalog[i]
			if inPool[m.Title] {
				continue
			}
			if score, ok := fuzzyScore(query, m); ok {
				add(m, score)
			}
		}
	}

	if len(pool) > 0 {
		sortPool(pool)
		if len(pool) > maxCandidates {
			pool = pool[:maxCandidates]
		}
		if len(pool) == 1 {
			return Outcome{Kind: SingleMatch, Match: pool[0].movie}
		}
		return Outcome{Kind: Suggestions, Candidates: poolMovies(pool)}
	}

	// Stage 5: broad substring/regex fallback over title or category.
	return fallback(query, catalog)
}

// fuzzyScore computes the first applicable fuzzy score for one entry,
// in the cascade's fixed order.
func fuzzyScore(query string, m *models.Movie) (float64, bool) {
	qLen := len([]rune(query))

	// Category exact word-boundary match.
	if categoryWordMatch(query, m.Categories) {
		return scoreCategoryExact, true
	}

	// Category fuzzy match, only for queries long enough to mistype.
	if qLen >= 4 && categoryFuzzyMatch(query, m.Categories) {
		return scoreCategoryFuzzy, true
	}

	// Phonetic key equality, full four-character code.
	if pc := PhoneticCode(query); pc != "" && pc == PhoneticCode(m.Title) {
		return scorePhonetic, true
	}

	// Full edit distance with a length-dependent threshold.
	threshold := 2
	if qLen < 5 {
		threshold = 1
	}
	if d := Levenshtein(query, m.Title); d <= threshold {
		return float64(d) + scoreEditBase, true
	}

	// Keyboard-adjacency typos, only for queries long enough to fat-finger.
	if qLen >= 5 {
		if kb, ok := KeyboardScore(query, m.Title); ok && kb <= 2 {
			return kb + scoreKeyboardBase, true
		}
	}

	return 0, false
}

// fallback is the last-resort substring/regex pass over titles and
// categories.
func fallback(query string, catalog []models.Movie) Outcome {
	var hits []*models.Movie
	for i := range catalog {
		m := &catalog[i]
		if strings.Contains(m.Title, query) || categoryWordMatch(query, m.Categories) {
			hits = append(hits, m)
		}
	}

	switch {
	case len(hits) == 0:
		return Outcome{Kind: NoMatch}
	case len(hits) == 1:
		return Outcome{Kind: SingleMatch, Match: hits[0]}
	default:
		sort.Slice(hits, func(i, j int) bool { return hits[i].Title < hits[j].Title })
		if len(hits) > maxCandidates {
			hits = hits[:maxCandidates]
		}
		return Outcome{Kind: Suggestions, Candidates: hits}
	}
}

// queryTokens returns the whitespace tokens of the query longer than one
// character
func queryTokens(query string) []string {
	var tokens []string
	for _, t := range strings.Fields(query) {
		if len([]rune(t)) > 1 {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// titleHasAllTokens reports whether every token is a substring of the title
func titleHasAllTokens(title string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(title, t) {
			return false
		}
	}
	return true
}

// categoryWordMatch reports whether the query matches a whole word inside
// any category tag, case-insensitively.
func categoryWordMatch(query string, categories []string) bool {
	if len(categories) == 0 {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(query) + `\b`)
	if err != nil {
		return false
	}
	for _, c := range categories {
		if re.MatchString(c) {
			return true
		}
	}
	return false
}

// categoryFuzzyMatch reports whether the query is within edit distance 1 of
// any category word of length >= 4
func categoryFuzzyMatch(query string, categories []string) bool {
	for _, c := range categories {
		for _, word := range strings.Fields(strings.ToLower(c)) {
			if len([]rune(word)) < 4 {
				continue
			}
			if Levenshtein(query, word) <= 1 {
				return true
			}
		}
	}
	return false
}

// sortPool orders candidates ascending by score, breaking ties by title so
// suggestion order is deterministic
func sortPool(pool []scored) {
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].score != pool[j].score {
			return pool[i].score < pool[j].score
		}
		return pool[i].movie.Title < pool[j].movie.Title
	})
}

func poolMovies(pool []scored) []*models.Movie {
	movies := make([]*models.Movie, len(pool))
	for i, s := range pool {
		movies[i] = s.movie
	}
	return movies
}
