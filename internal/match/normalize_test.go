package match

import "testing"

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jawan", "jawan"},
		{"  JAWAN  720p HDRip  ", "jawan"},
		{"jawan | 1080p x264", "jawan"},
		{"leo - full movie", "leo"},
		{"jawan @somechannel", "jawan"},
		{"the family man", "the family man"},
		{"", ""},
		{"720p hd", ""},
	}

	for _, tt := range tests {
		if got := NormalizeQuery(tt.in); got != tt.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("  The   Family  MAN "); got != "the family man" {
		t.Errorf("Got %q", got)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"jawan", "jawan", 0},
		{"jawan", "jawaan", 1},
		{"jawan", "jawam", 1},
		{"jawan", "", 5},
		{"", "leo", 3},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		if got := Levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPhoneticCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jawan", "J500"},
		{"jawaan", "J500"}, // extra vowel, same sound
		{"robert", "R163"},
		{"rupert", "R163"},
		{"leo", "L000"},
		{"", ""},
		{"123", ""},
	}

	for _, tt := range tests {
		if got := PhoneticCode(tt.in); got != tt.want {
			t.Errorf("PhoneticCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeyboardScore(t *testing.T) {
	// Identical strings cost nothing
	if score, ok := KeyboardScore("jawan", "jawan"); !ok || score != 0 {
		t.Errorf("Expected (0, true), got (%v, %v)", score, ok)
	}

	// Same-row substitution costs 0.5: 'q' -> 'w'
	if score, ok := KeyboardScore("qawan", "wawan"); !ok || score != 0.5 {
		t.Errorf("Expected (0.5, true), got (%v, %v)", score, ok)
	}

	// Length difference beyond 2 is not comparable
	if _, ok := KeyboardScore("jawan", "ja"); ok {
		t.Error("Expected not comparable for length diff > 2")
	}

	// Length difference itself is costed
	if score, ok := KeyboardScore("jawan", "jawann"); !ok || score != 1 {
		t.Errorf("Expected (1, true), got (%v, %v)", score, ok)
	}
}
