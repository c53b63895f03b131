package match

import (
	"testing"

	"clipbot/internal/models"
)

func catalog(titles ...string) []models.Movie {
	movies := make([]models.Movie, len(titles))
	for i, t := range titles {
		movies[i] = models.Movie{Title: t}
	}
	return movies
}

func TestResolve_ExactMatchPrecedence(t *testing.T) {
	// Exact equality must win regardless of how many near-matches exist
	cat := catalog("jawan", "jawaan", "jawan 2", "pathaan")

	out := Resolve("jawan", cat)
	if out.Kind != SingleMatch {
		t.Fatalf("Expected SingleMatch, got %v", out.Kind)
	}
	if out.Match.Title != "jawan" {
		t.Errorf("Expected 'jawan', got '%s'", out.Match.Title)
	}
}

func TestResolve_SpacelessIdempotence(t *testing.T) {
	cat := catalog("jawan", "pathaan", "leo")

	tests := []string{"ja wan", "j awan", "jawa n"}
	for _, q := range tests {
		out := Resolve(q, cat)
		if out.Kind != SingleMatch {
			t.Fatalf("Resolve(%q): expected SingleMatch, got %v", q, out.Kind)
		}
		if out.Match.Title != "jawan" {
			t.Errorf("Resolve(%q): expected 'jawan', got '%s'", q, out.Match.Title)
		}
	}
}

func TestResolve_SpacelessContainment(t *testing.T) {
	cat := catalog("jawan", "pathaan")

	// Single-token query with trailing junk still finds the title
	out := Resolve("jawanfullhd", cat)
	if out.Kind != SingleMatch || out.Match.Title != "jawan" {
		t.Fatalf("Expected SingleMatch on 'jawan', got %v", out)
	}

	// Too-short spaceless queries never match by containment
	out = Resolve("ja", cat)
	if out.Kind == SingleMatch {
		t.Error("Two-character query should not match by containment")
	}
}

func TestResolve_TokenSubset(t *testing.T) {
	cat := catalog("the family man", "family star", "leo")

	out := Resolve("family man", cat)
	if out.Kind != SingleMatch {
		t.Fatalf("Expected SingleMatch, got %v", out.Kind)
	}
	if out.Match.Title != "the family man" {
		t.Errorf("Expected 'the family man', got '%s'", out.Match.Title)
	}
}

func TestResolve_EditDistanceTypo(t *testing.T) {
	// One extra letter, within the length-5+ threshold of 2
	cat := catalog("jawan", "leo")

	out := Resolve("jawaan", cat)
	if out.Kind != SingleMatch {
		t.Fatalf("Expected SingleMatch, got %v", out.Kind)
	}
	if out.Match.Title != "jawan" {
		t.Errorf("Expected 'jawan', got '%s'", out.Match.Title)
	}
}

func TestResolve_TwoTitlesInOneQuery(t *testing.T) {
	// "leo jawan" names two titles; no title contains both tokens and no
	// category overlaps, so the cascade must give up rather than guess.
	cat := catalog("jawan", "leo")

	out := Resolve("leo jawan", cat)
	if out.Kind != NoMatch {
		t.Fatalf("Expected NoMatch, got %v", out.Kind)
	}
}

func TestResolve_CategoryWordMatch(t *testing.T) {
	cat := []models.Movie{
		{Title: "jawan", Categories: []string{"shah rukh khan", "action"}},
		{Title: "leo", Categories: []string{"vijay", "action"}},
	}

	// Category word hits on both entries produce suggestions
	out := Resolve("action", cat)
	if out.Kind != Suggestions {
		t.Fatalf("Expected Suggestions, got %v", out.Kind)
	}
	if len(out.Candidates) != 2 {
		t.Errorf("Expected 2 candidates, got %d", len(out.Candidates))
	}

	// A unique category word resolves directly
	out = Resolve("vijay", cat)
	if out.Kind != SingleMatch || out.Match.Title != "leo" {
		t.Fatalf("Expected SingleMatch on 'leo', got %v", out)
	}
}

func TestResolve_ScoreOrderingStability(t *testing.T) {
	// A category-exact hit (score -0.5) must rank above a phonetic hit
	// (score +1) in the suggestion list.
	cat := []models.Movie{
		{Title: "salaar"},                                  // phonetic neighbor of "solar"
		{Title: "interstellar", Categories: []string{"solar system epic"}}, // category word hit
	}

	out := Resolve("solar", cat)
	if out.Kind != Suggestions {
		t.Fatalf("Expected Suggestions, got %v", out.Kind)
	}
	if out.Candidates[0].Title != "interstellar" {
		t.Errorf("Expected category hit first, got '%s'", out.Candidates[0].Title)
	}
}

func TestResolve_ShortQuerySkipsFuzzy(t *testing.T) {
	// Queries under 3 characters never reach the fuzzy stages
	cat := catalog("leo", "rrr")

	out := Resolve("lo", cat)
	if out.Kind == SingleMatch {
		t.Errorf("Two-character query must not fuzzy-match, got %v", out.Match)
	}
}

func TestResolve_PartialTitleResolves(t *testing.T) {
	cat := catalog("the greatest of all time", "leo")

	out := Resolve("greatest", cat)
	if out.Kind != SingleMatch {
		t.Fatalf("Expected SingleMatch, got %v", out.Kind)
	}
	if out.Match.Title != "the greatest of all time" {
		t.Errorf("Got '%s'", out.Match.Title)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	cat := catalog("jawan", "leo")

	out := Resolve("completely unrelated gibberish", cat)
	if out.Kind != NoMatch {
		t.Fatalf("Expected NoMatch, got %v", out.Kind)
	}
}

func TestResolve_EmptyInputs(t *testing.T) {
	if out := Resolve("", catalog("jawan")); out.Kind != NoMatch {
		t.Error("Empty query must be NoMatch")
	}
	if out := Resolve("jawan", nil); out.Kind != NoMatch {
		t.Error("Empty catalog must be NoMatch")
	}
}

func TestResolve_SuggestionCap(t *testing.T) {
	cat := []models.Movie{
		{Title: "war", Categories: []string{"action"}},
		{Title: "leo", Categories: []string{"action"}},
		{Title: "jawan", Categories: []string{"action"}},
		{Title: "pathaan", Categories: []string{"action"}},
		{Title: "vikram", Categories: []string{"action"}},
		{Title: "kaithi", Categories: []string{"action"}},
		{Title: "salaar", Categories: []string{"action"}},
	}

	out := Resolve("action", cat)
	if out.Kind != Suggestions {
		t.Fatalf("Expected Suggestions, got %v", out.Kind)
	}
	if len(out.Candidates) > 5 {
		t.Errorf("Expected at most 5 candidates, got %d", len(out.Candidates))
	}
}
