// Package goal turns a free-text research goal into a structured goal tree.
// Decomposition never fails: JSON parsing falls back to line-oriented
// heuristics, which fall back to a single-subgoal goal built from the input
// text.
package goal

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/types"
)

// Decomposer is the GoalDecomposer. All model calls go through the governor.
type Decomposer struct {
	client llm.Client
	gov    *ratelimit.Governor
	logger *zap.Logger
}

// NewDecomposer wires a decomposer to its collaborators.
func NewDecomposer(client llm.Client, gov *ratelimit.Governor, logger *zap.Logger) *Decomposer {
	return &Decomposer{
		client: client,
		gov:    gov,
		logger: logger.Named("decomposer"),
	}
}

const decomposePromptTemplate = `Analyze this research goal and break it down into structured components.

Research goal: %s

Respond with JSON only, no other text:
{
  "main_goal": "restated main objective",
  "research_domain": "the field this belongs to",
  "time_scope": "time period of interest, or 'current'",
  "subgoals": [
    {
      "id": "subgoal_1",
      "title": "short title",
      "description": "what this subgoal investigates",
      "search_terms": ["term1", "term2"],
      "priority": "high|medium|low",
      "expected_source_kinds": ["web", "academic", "report"]
    }
  ],
  "success_criteria": ["criterion 1"],
  "estimated_complexity": "simple|moderate|complex"
}`

// Decompose turns goal text into a Goal. The result always has at least one
// subgoal and every subgoal has at least one search term.
func (d *Decomposer) Decompose(ctx context.Context, goalText string) types.Goal {
	prompt := fmt.Sprintf(decomposePromptTemplate, goalText)

	var response string
	err := d.gov.Do(ctx, llm.EstimateTokens(prompt), "decomposition", func(model string) error {
		var genErr error
		response, genErr = d.client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   1500,
			Temperature: 0.3,
			Model:       model,
		})
		return genErr
	})
	if err != nil {
		d.logger.Warn("decomposition call failed, using fallback goal", zap.Error(err))
		return d.fallbackGoal(goalText)
	}

	if g, ok := d.parseJSON(response, goalText); ok {
		return d.ensureSearchTerms(g)
	}
	if g, ok := d.parseManual(response, goalText); ok {
		d.logger.Info("goal parsed via manual fallback")
		return d.ensureSearchTerms(g)
	}

	d.logger.Warn("goal response unparseable, using fallback goal")
	return d.fallbackGoal(goalText)
}

type parsedGoal struct {
	MainGoal        string          `json:"main_goal"`
	Domain          string          `json:"research_domain"`
	TimeScope       string          `json:"time_scope"`
	Subgoals        []parsedSubgoal `json:"subgoals"`
	SuccessCriteria []string        `json:"success_criteria"`
	Complexity      string          `json:"estimated_complexity"`
}

type parsedSubgoal struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	SearchTerms []string `json:"search_terms"`
	Priority    string   `json:"priority"`
	SourceKinds []string `json:"expected_source_kinds"`
}

// parseJSON extracts and validates the JSON goal shape. Validation failures
// fall through to the manual parser rather than risking unchecked field
// access on a partial object.
func (d *Decomposer) parseJSON(response, goalText string) (types.Goal, bool) {
	var parsed parsedGoal
	if err := llm.DecodeObject(response, &parsed); err != nil {
		return types.Goal{}, false
	}
	if parsed.MainGoal == "" || len(parsed.Subgoals) == 0 {
		return types.Goal{}, false
	}

	g := types.Goal{
		MainGoal:        parsed.MainGoal,
		Domain:          parsed.Domain,
		TimeScope:       parsed.TimeScope,
		SuccessCriteria: parsed.SuccessCriteria,
		Complexity:      normalizeComplexity(parsed.Complexity),
	}
	for i, sg := range parsed.Subgoals {
		id := sg.ID
		if id == "" {
			id = fmt.Sprintf("subgoal_%d", i+1)
		}
		title := sg.Title
		if title == "" {
			title = goalText
		}
		g.Subgoals = append(g.Subgoals, types.Subgoal{
			ID:          id,
			Title:       title,
			Description: sg.Description,
			SearchTerms: sg.SearchTerms,
			Priority:    normalizePriority(sg.Priority),
			SourceKinds: normalizeSourceKinds(sg.SourceKinds),
		})
	}
	return g, true
}

// parseManual approximates the JSON structure from a prose response by
// scanning for marker keywords line by line.
func (d *Decomposer) parseManual(response, goalText string) (types.Goal, bool) {
	g := types.Goal{
		MainGoal:   goalText,
		Complexity: types.ComplexityModerate,
	}

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)

		switch {
		case strings.Contains(lower, "objective") || strings.Contains(lower, "main goal"):
			if _, after, found := strings.Cut(trimmed, ":"); found && strings.TrimSpace(after) != "" {
				g.MainGoal = strings.TrimSpace(after)
			}
		case strings.Contains(lower, "subtask") || strings.Contains(lower, "subgoal"):
			title := trimmed
			if _, after, found := strings.Cut(trimmed, ":"); found && strings.TrimSpace(after) != "" {
				title = strings.TrimSpace(after)
			}
			g.Subgoals = append(g.Subgoals, types.Subgoal{
				ID:       fmt.Sprintf("subgoal_%d", len(g.Subgoals)+1),
				Title:    title,
				Priority: types.PriorityMedium,
				SourceKinds: []types.SourceKind{
					types.SourceWeb,
				},
			})
		}
	}

	if len(g.Subgoals) == 0 {
		return types.Goal{}, false
	}
	return g, true
}

// fallbackGoal is the total-failure path: a single subgoal equal to the goal
// text, with search terms derived from it.
func (d *Decomposer) fallbackGoal(goalText string) types.Goal {
	return types.Goal{
		MainGoal:   goalText,
		Domain:     "general",
		TimeScope:  "current",
		Complexity: types.ComplexityModerate,
		Subgoals: []types.Subgoal{
			{
				ID:          "subgoal_1",
				Title:       goalText,
				Description: "Research the stated goal directly",
				SearchTerms: ExtractKeywords(goalText),
				Priority:    types.PriorityHigh,
				SourceKinds: []types.SourceKind{types.SourceWeb, types.SourceAcademic},
			},
		},
	}
}

// ensureSearchTerms backfills empty search term lists from subgoal text.
func (d *Decomposer) ensureSearchTerms(g types.Goal) types.Goal {
	for i := range g.Subgoals {
		if len(g.Subgoals[i].SearchTerms) == 0 {
			source := g.Subgoals[i].Title + " " + g.Subgoals[i].Description
			g.Subgoals[i].SearchTerms = ExtractKeywords(source)
		}
	}
	return g
}

func normalizeComplexity(s string) types.Complexity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return types.ComplexitySimple
	case "complex":
		return types.ComplexityComplex
	default:
		return types.ComplexityModerate
	}
}

func normalizePriority(s string) types.Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return types.PriorityHigh
	case "low":
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}

func normalizeSourceKinds(kinds []string) []types.SourceKind {
	var out []types.SourceKind
	for _, k := range kinds {
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "web":
			out = append(out, types.SourceWeb)
		case "academic":
			out = append(out, types.SourceAcademic)
		case "report":
			out = append(out, types.SourceReport)
		}
	}
	if len(out) == 0 {
		out = []types.SourceKind{types.SourceWeb}
	}
	return out
}
