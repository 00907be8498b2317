package retrieval

import (
	"regexp"
	"strings"
	"unicode"
)

// Patterns for terms subword tokenizers shred: acronyms, kebab and
// snake identifiers, camel case, letter-digit mixes. Such terms get an
// exact keyword pass alongside the vector search.
var (
	allCapsRe     = regexp.MustCompile(`^[A-Z][A-Z0-9]+$`)
	kebabRe       = regexp.MustCompile(`^[A-Za-z0-9]+(-[A-Za-z0-9]+)+$`)
	snakeRe       = regexp.MustCompile(`^[A-Za-z0-9]+(_[A-Za-z0-9]+)+$`)
	alphaNumMixRe = regexp.MustCompile(`^[A-Za-z]+[0-9]+[A-Za-z0-9]*$|^[0-9]+[A-Za-z]+[A-Za-z0-9]*$`)
)

// PoorTokenizerTerms returns the query terms that deserve an exact
// keyword scan. Terms of three characters or fewer are left to the
// vector search alone.
func PoorTokenizerTerms(query string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, term := range strings.Fields(query) {
		term = strings.Trim(term, `.,;:!?"'()[]{}`)
		if len(term) <= 3 || seen[term] {
			continue
		}
		if isPoorTokenizerTerm(term) {
			seen[term] = true
			out = append(out, term)
		}
	}
	return out
}

func isPoorTokenizerTerm(term string) bool {
	for _, r := range term {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return allCapsRe.MatchString(term) ||
		kebabRe.MatchString(term) ||
		snakeRe.MatchString(term) ||
		alphaNumMixRe.MatchString(term) ||
		isCamelCase(term)
}

// isCamelCase: lowercase letters plus an uppercase letter past the
// first position ("HTTPServer", "BudgetReview"); plain capitalized
// words ("Budget") do not qualify.
func isCamelCase(term string) bool {
	hasLower := false
	interiorUpper := false
	for i, r := range term {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r) && i > 0:
			interiorUpper = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			return false
		}
	}
	return hasLower && interiorUpper
}
