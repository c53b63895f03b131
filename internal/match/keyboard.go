package match

// keyboardRow returns the QWERTY row index of a character, or -1 when the
// character is not on the letter/digit rows (spaces, punctuation).
func keyboardRow(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return 0
	}
	rows := []string{"qwertyuiop", "asdfghjkl", "zxcvbnm"}
	for i, row := range rows {
		for _, c := range row {
			if c == r {
				return i + 1
			}
		}
	}
	return -1
}

// KeyboardScore estimates how plausible it is that b was produced by
// fat-finger typos of a. Character substitutions cost by physical distance:
// same key 0, same row 0.5, adjacent row 1, anything farther 2; each length
// difference adds 1. Returns (score, true) when the pair is comparable, or
// (0, false) when the length difference exceeds 2 and the comparison is
// meaningless.
func KeyboardScore(a, b string) (float64, bool) {
	ra := []rune(a)
	rb := []rune(b)

	diff := len(ra) - len(rb)
	if diff < 0 {
		diff = -diff
	}
	if diff > 2 {
		return 0, false
	}

	n := len(ra)
	if len(rb) < n {
		n = len(rb)
	}

	var score float64
	for i := 0; i < n; i++ {
		if ra[i] == rb[i] {
			continue
		}
		rowA := keyboardRow(ra[i])
		rowB := keyboardRow(rb[i])
		switch {
		case rowA == -1 || rowB == -1:
			score += 2
		case rowA == rowB:
			score += 0.5
		case rowA-rowB == 1 || rowB-rowA == 1:
			score += 1
		default:
			score += 2
		}
	}

	return score + float64(diff), true
}
