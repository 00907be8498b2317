package chunker

import (
	"strings"
	"unicode"
)

// abbreviations that end with a period but do not end a sentence.
var abbreviations = map[string]bool{
	"e.g":  true,
	"i.e":  true,
	"etc":  true,
	"vs":   true,
	"cf":   true,
	"dr":   true,
	"mr":   true,
	"mrs":  true,
	"ms":   true,
	"prof": true,
	"st":   true,
	"no":   true,
	"fig":  true,
	"inc":  true,
	"ltd":  true,
	"co":   true,
	"jr":   true,
	"sr":   true,
	"dept": true,
	"est":  true,
	"approx": true,
}

// SplitSentences splits prose into sentences on ., !, ? followed by
// whitespace and an upper-case or digit start. Common abbreviations and
// decimal numbers do not split.
func SplitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if !boundaryAt(runes, i) {
			continue
		}
		// Consume trailing punctuation like ." or ?)
		end := i + 1
		for end < len(runes) && (runes[end] == '"' || runes[end] == '\'' || runes[end] == ')' || runes[end] == ']') {
			end++
		}
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// boundaryAt reports whether the terminator at index i ends a sentence.
func boundaryAt(runes []rune, i int) bool {
	r := runes[i]

	if r == '.' {
		// Decimal number: 3.14
		if i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			return false
		}
		// Abbreviation before the period.
		word := wordBefore(runes, i)
		if abbreviations[strings.ToLower(word)] {
			return false
		}
		// Single-letter initial: "J. Smith".
		if len(word) == 1 && unicode.IsUpper([]rune(word)[0]) {
			return false
		}
	}

	// Must be followed by whitespace (or end of text).
	j := i + 1
	for j < len(runes) && (runes[j] == '"' || runes[j] == '\'' || runes[j] == ')' || runes[j] == ']') {
		j++
	}
	if j >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[j]) {
		return false
	}
	// And the next sentence should start with a capital, digit, or
	// opening quote; otherwise assume the period is internal.
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	if j >= len(runes) {
		return true
	}
	next := runes[j]
	return unicode.IsUpper(next) || unicode.IsDigit(next) || next == '"' || next == '\'' || next == '('
}

// wordBefore returns the word immediately preceding index i, with any
// internal periods kept ("e.g" for "e.g.").
func wordBefore(runes []rune, i int) string {
	end := i
	start := end
	for start > 0 {
		prev := runes[start-1]
		if unicode.IsLetter(prev) || (prev == '.' && start-1 > 0 && unicode.IsLetter(runes[start-2])) {
			start--
			continue
		}
		break
	}
	return string(runes[start:end])
}

// CountTokens counts whitespace-delimited tokens.
func CountTokens(text string) int {
	return len(strings.Fields(text))
}
