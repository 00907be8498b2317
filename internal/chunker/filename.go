package chunker

import (
	"strings"
	"unicode"
)

// FilenameText tokenizes a relative path into a space-joined string
// suitable for embedding. Directory separators, dots, underscores,
// hyphens, and camelCase boundaries all split; tokens are lowercased.
// Version markers like "v2" survive as their own tokens.
//
//	"reports/Q3_BudgetReview-v2.xlsx" -> "reports q3 budget review v2 xlsx"
func FilenameText(relPath string) string {
	return strings.Join(TokenizeFilename(relPath), " ")
}

// TokenizeFilename splits a path into lowercase word tokens.
func TokenizeFilename(relPath string) []string {
	var tokens []string
	for _, part := range splitSeparators(relPath) {
		for _, word := range splitCamel(part) {
			word = strings.ToLower(word)
			if word != "" {
				tokens = append(tokens, word)
			}
		}
	}
	return tokens
}

func splitSeparators(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '/', '\\', '.', '_', '-', ' ', '(', ')', '[', ']', ',', '+':
			return true
		}
		return false
	})
}

// splitCamel splits camelCase and letter/digit boundaries. Acronym runs
// stay together ("HTTPServer" -> "HTTP", "Server"); a single letter
// followed by digits stays joined so "v2" and "Q3" survive.
func splitCamel(s string) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}

	var words []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]

		split := false
		switch {
		case unicode.IsLower(prev) && unicode.IsUpper(cur):
			split = true
		case unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
			// End of an acronym run: "XMLParser" splits before "Parser".
			split = true
		case unicode.IsDigit(prev) && unicode.IsLetter(cur):
			split = true
		case unicode.IsLetter(prev) && unicode.IsDigit(cur) && i-start > 1:
			// "budget2024" splits; "v2" and "Q3" do not.
			split = true
		}

		if split {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	words = append(words, string(runes[start:]))
	return words
}
