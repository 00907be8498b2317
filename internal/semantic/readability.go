package semantic

import (
	"strings"
	"unicode"
)

// Readability scores text on a 0-100 scale using a hybrid of sentence
// length and word complexity (characters per word as a syllable proxy).
// Higher is easier; technical prose typically lands in the 40-60 band.
func Readability(text string) float64 {
	sentences := 0
	words := 0
	chars := 0
	complexWords := 0

	for _, field := range strings.Fields(text) {
		letters := 0
		terminated := false
		for _, r := range field {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				letters++
			}
			if r == '.' || r == '!' || r == '?' {
				terminated = true
			}
		}
		if letters == 0 {
			continue
		}
		words++
		chars += letters
		if letters >= 9 {
			complexWords++
		}
		if terminated {
			sentences++
		}
	}

	if words == 0 {
		return 0
	}
	if sentences == 0 {
		sentences = 1
	}

	wordsPerSentence := float64(words) / float64(sentences)
	charsPerWord := float64(chars) / float64(words)
	complexRatio := float64(complexWords) / float64(words)

	// Flesch-shaped linear blend, recalibrated for character counts.
	score := 120 - 0.8*wordsPerSentence - 9.0*charsPerWord - 50*complexRatio

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
