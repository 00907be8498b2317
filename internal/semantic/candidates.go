package semantic

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords excluded from candidate phrase boundaries.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "had": true, "he": true, "her": true,
	"his": true, "if": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"not": true, "no": true, "our": true, "she": true, "so": true,
	"such": true, "that": true, "the": true, "their": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "to": true,
	"was": true, "we": true, "were": true, "which": true, "while": true,
	"will": true, "with": true, "would": true, "you": true, "your": true,
	"can": true, "do": true, "does": true, "how": true, "what": true,
	"when": true, "where": true, "who": true, "also": true, "than": true,
	"been": true, "more": true, "most": true, "some": true, "any": true,
	"all": true, "each": true, "other": true, "may": true, "must": true,
	"should": true, "about": true, "over": true, "under": true, "between": true,
	"i": true, "me": true, "my": true, "us": true, "him": true, "them": true,
}

// Candidate is a phrase candidate with its occurrence count.
type Candidate struct {
	Phrase string
	Words  int
	Count  int
}

// Candidates extracts 1-3 word phrase candidates. Phrases never start
// or end with a stopword and never cross sentence punctuation. Results
// are ordered by count (descending), then first appearance.
func Candidates(text string, maxPhrases int) []Candidate {
	words := tokenizeWords(text)

	type entry struct {
		cand  Candidate
		first int
	}
	seen := make(map[string]*entry)
	order := 0

	addPhrase := func(tokens []string) {
		n := len(tokens)
		if n == 0 || n > 3 {
			return
		}
		if stopwords[tokens[0]] || stopwords[tokens[n-1]] {
			return
		}
		for _, tok := range tokens {
			if len(tok) < 2 && !isAcronymOrVersion(tok) {
				return
			}
		}
		phrase := strings.Join(tokens, " ")
		if e, ok := seen[phrase]; ok {
			e.cand.Count++
			return
		}
		seen[phrase] = &entry{cand: Candidate{Phrase: phrase, Words: n, Count: 1}, first: order}
		order++
	}

	for i := 0; i < len(words); i++ {
		if words[i] == "" {
			continue
		}
		for n := 1; n <= 3 && i+n <= len(words); n++ {
			// Sentence breaks are encoded as empty tokens.
			if words[i+n-1] == "" {
				break
			}
			addPhrase(words[i : i+n])
		}
	}

	entries := make([]*entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].cand.Count != entries[j].cand.Count {
			return entries[i].cand.Count > entries[j].cand.Count
		}
		return entries[i].first < entries[j].first
	})

	if maxPhrases > 0 && len(entries) > maxPhrases {
		entries = entries[:maxPhrases]
	}
	out := make([]Candidate, len(entries))
	for i, e := range entries {
		out[i] = e.cand
	}
	return out
}

// tokenizeWords lowercases and splits text into word tokens. Sentence
// punctuation yields an empty marker token so phrases never span
// sentences. Hyphens and internal punctuation within a token survive
// ("e5-large", "BGE-M3" stays one token, lowercased).
func tokenizeWords(text string) []string {
	var tokens []string
	var b strings.Builder

	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToLower(b.String()))
			b.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case r == '.' || r == '!' || r == '?' || r == ':' || r == ';' || r == ',' || r == '\n':
			flush()
			if len(tokens) > 0 && tokens[len(tokens)-1] != "" {
				tokens = append(tokens, "")
			}
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// isAcronymOrVersion permits short tokens like "q3", "v2", "ai".
func isAcronymOrVersion(tok string) bool {
	if len(tok) == 0 {
		return false
	}
	hasDigit := false
	for _, r := range tok {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	return hasDigit || len(tok) == 2
}

// Jaccard computes token-set Jaccard similarity between two phrases.
func Jaccard(a, b string) float64 {
	as := strings.Fields(a)
	bs := strings.Fields(b)
	if len(as) == 0 || len(bs) == 0 {
		return 0
	}
	set := make(map[string]bool, len(as))
	for _, w := range as {
		set[w] = true
	}
	inter := 0
	bset := make(map[string]bool, len(bs))
	for _, w := range bs {
		if bset[w] {
			continue
		}
		bset[w] = true
		if set[w] {
			inter++
		}
	}
	union := len(set) + len(bset) - inter
	return float64(inter) / float64(union)
}
