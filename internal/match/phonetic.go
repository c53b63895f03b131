package match

import "strings"

// phoneticGroup maps a consonant to its sound group digit, or 0 for letters
// that carry no code (vowels, h, w, y).
func phoneticGroup(r rune) byte {
	switch r {
	case 'b', 'f', 'p', 'v':
		return '1'
	case 'c', 'g', 'j', 'k', 'q', 's', 'x', 'z':
		return '2'
	case 'd', 't':
		return '3'
	case 'l':
		return '4'
	case 'm', 'n':
		return '5'
	case 'r':
		return '6'
	}
	return 0
}

// PhoneticCode returns the four-character phonetic key of a word: the first
// letter uppercased, followed by digit codes for the remaining consonant
// groups, skipping vowels and adjacent letters of the same group, padded
// with zeros or truncated to length 4. Two words with equal codes sound
// alike to this scheme. Non-alphabetic input yields an empty code.
func PhoneticCode(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return ""
	}

	runes := []rune(word)
	first := runes[0]
	if first < 'a' || first > 'z' {
		return ""
	}

	code := make([]byte, 0, 4)
	code = append(code, byte(first-'a'+'A'))

	prevGroup := phoneticGroup(first)
	for _, r := range runes[1:] {
		if r < 'a' || r > 'z' {
			prevGroup = 0
			continue
		}
		g := phoneticGroup(r)
		if g != 0 && g != prevGroup {
			code = append(code, g)
			if len(code) == 4 {
				break
			}
		}
		prevGroup = g
	}

	for len(code) < 4 {
		code = append(code, '0')
	}

	return string(code)
}
