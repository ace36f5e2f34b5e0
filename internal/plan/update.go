package plan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deepresearch/internal/llm"
	"deepresearch/internal/types"
)

const updatePromptTemplate = `A research plan is in progress and new insights were discovered.

Research goal: %s
Completed phases: %s
Remaining phases: %s
New insights:
%s

Should the plan change? Respond with JSON only:
{
  "update_needed": true,
  "reasoning": "why",
  "new_phases": [
    {
      "title": "short title",
      "description": "what this phase does",
      "type": "research|analysis|synthesis|validation",
      "search_terms": ["term"],
      "dependencies": ["phase_1"],
      "priority": "high|medium|low"
    }
  ],
  "modify_phases": [
    {"id": "phase_2", "title": "...", "description": "...", "search_terms": ["..."]}
  ]
}

If no change is needed, respond {"update_needed": false}.`

type parsedUpdate struct {
	UpdateNeeded bool          `json:"update_needed"`
	Reasoning    string        `json:"reasoning"`
	NewPhases    []parsedPhase `json:"new_phases"`
	ModifyPhases []parsedPhase `json:"modify_phases"`
}

// Update asks whether the plan should change given new insights and applies
// additive or in-place updates. Any parse or validation failure returns the
// plan unchanged; re-planning is never fatal.
func (b *Builder) Update(ctx context.Context, p types.Plan, newInsights, completedIDs []string) types.Plan {
	var remaining []string
	completed := make(map[string]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}
	for _, ph := range p.Phases {
		if !completed[ph.ID] {
			remaining = append(remaining, ph.ID)
		}
	}

	prompt := fmt.Sprintf(updatePromptTemplate,
		p.ResearchGoal,
		strings.Join(completedIDs, ", "),
		strings.Join(remaining, ", "),
		"- "+strings.Join(newInsights, "\n- "))

	var response string
	err := b.gov.Do(ctx, llm.EstimateTokens(prompt), "planning", func(model string) error {
		var genErr error
		response, genErr = b.client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   1500,
			Temperature: 0.3,
			Model:       model,
		})
		return genErr
	})
	if err != nil {
		b.logger.Warn("plan update call failed, keeping plan", zap.Error(err))
		return p
	}

	var parsed parsedUpdate
	if err := llm.DecodeObject(response, &parsed); err != nil {
		b.logger.Warn("plan update unparseable, keeping plan", zap.Error(err))
		return p
	}
	if !parsed.UpdateNeeded {
		return p
	}

	updated := b.applyUpdate(p, parsed)
	if err := Validate(updated); err != nil {
		b.logger.Warn("plan update rejected, keeping plan", zap.Error(err))
		return p
	}

	b.logger.Info("plan updated",
		zap.Int("new_phases", len(parsed.NewPhases)),
		zap.Int("modified_phases", len(parsed.ModifyPhases)),
		zap.String("reasoning", parsed.Reasoning))
	return updated
}

// applyUpdate merges modifications in place and appends new phases with fresh
// sequential ids. Only named, non-empty fields overwrite existing values.
func (b *Builder) applyUpdate(p types.Plan, parsed parsedUpdate) types.Plan {
	updated := p
	updated.Phases = append([]types.Phase(nil), p.Phases...)

	for _, mod := range parsed.ModifyPhases {
		for i := range updated.Phases {
			if updated.Phases[i].ID != mod.ID {
				continue
			}
			if mod.Title != "" {
				updated.Phases[i].Title = mod.Title
			}
			if mod.Description != "" {
				updated.Phases[i].Description = mod.Description
			}
			if len(mod.SearchTerms) > 0 {
				updated.Phases[i].SearchTerms = mod.SearchTerms
			}
			if len(mod.SuccessCriteria) > 0 {
				updated.Phases[i].SuccessCriteria = mod.SuccessCriteria
			}
			if mod.Priority != "" {
				updated.Phases[i].Priority = normalizePriority(mod.Priority)
			}
			break
		}
	}

	for _, np := range parsed.NewPhases {
		phase := types.Phase{
			ID:              nextPhaseID(updated),
			Title:           np.Title,
			Description:     np.Description,
			Kind:            normalizeKind(np.Kind),
			SearchTerms:     np.SearchTerms,
			SourceKinds:     normalizeSourceKinds(np.SourceKinds),
			Dependencies:    np.Dependencies,
			SuccessCriteria: np.SuccessCriteria,
			Priority:        normalizePriority(np.Priority),
		}
		if len(phase.SearchTerms) == 0 {
			phase.SearchTerms = []string{"information", "research", "facts"}
		}
		updated.Phases = append(updated.Phases, phase)
	}

	updated.LastUpdated = b.now()
	return updated
}
