package report

import (
	"sort"
	"strings"

	"deepresearch/internal/types"
)

// minThemeWordLength is the shortest word that can name a theme.
const minThemeWordLength = 5

// Theme is a naive single-keyword grouping of findings.
type Theme struct {
	Name     string
	Findings []types.Finding
}

// GroupThemes buckets findings by the first word longer than five characters
// in each key finding. Crude, but stable and model-free; it only feeds the
// findings section and the holistic synthesis prompt.
func GroupThemes(findings []types.Finding) []Theme {
	buckets := make(map[string][]types.Finding)
	var order []string

	for _, f := range findings {
		for _, kf := range f.KeyFindings {
			word := firstLongWord(kf)
			if word == "" {
				continue
			}
			if _, ok := buckets[word]; !ok {
				order = append(order, word)
			}
			buckets[word] = append(buckets[word], f)
			break
		}
	}

	themes := make([]Theme, 0, len(order))
	for _, name := range order {
		themes = append(themes, Theme{Name: name, Findings: buckets[name]})
	}
	sort.SliceStable(themes, func(i, j int) bool {
		return len(themes[i].Findings) > len(themes[j].Findings)
	})
	return themes
}

func firstLongWord(s string) string {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		cleaned := strings.Trim(word, ".,;:!?()\"'")
		if len(cleaned) > minThemeWordLength {
			return cleaned
		}
	}
	return ""
}

// topFindings returns up to n findings sorted by relevance descending, ties
// broken by discovery order.
func topFindings(findings []types.Finding, n int) []types.Finding {
	sorted := append([]types.Finding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Relevance > sorted[j].Relevance
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// topConclusions returns up to n conclusions across all findings,
// deduplicated preserving order.
func topConclusions(findings []types.Finding, n int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range findings {
		for _, c := range f.Conclusions {
			key := strings.ToLower(strings.TrimSpace(c))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
			if len(out) == n {
				return out
			}
		}
	}
	return out
}
