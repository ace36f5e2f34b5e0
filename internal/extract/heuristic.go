package extract

import (
	"context"
	"regexp"
	"strings"

	"deepresearch/internal/types"
)

const (
	// heuristicRelevance is the fixed score for emergency-mode findings;
	// without a model there is nothing to grade relevance with.
	heuristicRelevance = 0.6

	// minSentenceLength filters out fragments during sentence splitting.
	minSentenceLength = 20

	maxKeyFindings   = 3
	maxRelevantFacts = 5
	maxStatistics    = 2
	maxConclusions   = 2
)

// findingIndicators mark sentences that state a result.
var findingIndicators = []string{
	"found that", "discovered", "revealed", "shows that", "showed that",
	"research indicates", "study found", "according to", "evidence suggests",
	"demonstrated", "reported that", "suggests that",
}

// conclusionIndicators mark sentences that draw a conclusion.
var conclusionIndicators = []string{
	"conclude", "in conclusion", "therefore", "as a result",
	"this means", "overall", "in summary", "consequently",
}

// statisticPattern matches numeric claims: percentages and large quantities.
var statisticPattern = regexp.MustCompile(`\d+\.?\d*\s*%|\d+\.?\d*\s*(percent|million|billion|thousand)`)

// HeuristicExtractor is the emergency-mode extractor: sentence splitting and
// indicator keyword matching, zero external calls.
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates the emergency extractor.
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

// Extract derives a fixed-confidence finding from the document text alone.
// It never fails.
func (e *HeuristicExtractor) Extract(_ context.Context, doc types.Document, _ string) (types.Finding, error) {
	sentences := SplitSentences(doc.Content)

	var keyFindings, facts, statistics, conclusions []string
	for _, sentence := range sentences {
		lower := strings.ToLower(sentence)

		if statisticPattern.MatchString(sentence) && len(statistics) < maxStatistics {
			statistics = append(statistics, sentence)
		}
		if containsAny(lower, findingIndicators) && len(keyFindings) < maxKeyFindings {
			keyFindings = append(keyFindings, sentence)
			continue
		}
		if containsAny(lower, conclusionIndicators) && len(conclusions) < maxConclusions {
			conclusions = append(conclusions, sentence)
			continue
		}
		if len(facts) < maxRelevantFacts {
			facts = append(facts, sentence)
		}
	}

	if len(keyFindings) == 0 && len(facts) > 0 {
		keyFindings = facts[:1]
	}

	return types.Finding{
		SourceTitle:   doc.Title,
		SourceURL:     doc.URL,
		KeyFindings:   keyFindings,
		RelevantFacts: facts,
		Statistics:    statistics,
		Conclusions:   conclusions,
		Relevance:     heuristicRelevance,
		Confidence:    types.ConfidenceLow,
	}, nil
}

// SplitSentences breaks text on terminal punctuation, dropping fragments
// shorter than minSentenceLength.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(current.String())
			if len(s) > minSentenceLength {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); len(s) > minSentenceLength {
		sentences = append(sentences, s)
	}
	return sentences
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
