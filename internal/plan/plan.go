// Package plan builds and maintains the dependency-ordered phase plan for a
// research run. Plan construction never fails: JSON parsing falls back to
// manual text parsing, which falls back to a deterministic one-phase-per-
// subgoal plan with a linear dependency chain.
package plan

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"deepresearch/internal/llm"
	"deepresearch/internal/ratelimit"
	"deepresearch/internal/types"
)

// Builder is the PlanBuilder. All model calls go through the governor.
type Builder struct {
	client llm.Client
	gov    *ratelimit.Governor
	logger *zap.Logger
	now    func() time.Time
}

// NewBuilder wires a builder to its collaborators.
func NewBuilder(client llm.Client, gov *ratelimit.Governor, logger *zap.Logger) *Builder {
	return &Builder{
		client: client,
		gov:    gov,
		logger: logger.Named("planner"),
		now:    time.Now,
	}
}

const buildPromptTemplate = `Create a research execution plan for this goal.

Main goal: %s
Subgoals:
%s

Respond with JSON only:
{
  "strategy": "one-sentence overall strategy",
  "phases": [
    {
      "id": "phase_1",
      "title": "short title",
      "description": "what this phase does",
      "type": "research|analysis|synthesis|validation",
      "search_terms": ["term1", "term2"],
      "expected_source_kinds": ["web", "academic"],
      "dependencies": [],
      "success_criteria": ["criterion"],
      "priority": "high|medium|low"
    }
  ],
  "quality_gates": ["gate 1"],
  "risk_factors": ["risk 1"]
}

Use 3 to 6 phases. Dependencies must reference earlier phase ids only.`

// Build turns a goal into a plan.
func (b *Builder) Build(ctx context.Context, g types.Goal) types.Plan {
	var lines []string
	for _, sg := range g.Subgoals {
		lines = append(lines, fmt.Sprintf("- %s: %s (terms: %s)",
			sg.ID, sg.Title, strings.Join(sg.SearchTerms, ", ")))
	}
	prompt := fmt.Sprintf(buildPromptTemplate, g.MainGoal, strings.Join(lines, "\n"))

	var response string
	err := b.gov.Do(ctx, llm.EstimateTokens(prompt), "planning", func(model string) error {
		var genErr error
		response, genErr = b.client.Generate(ctx, llm.Request{
			Prompt:      prompt,
			MaxTokens:   2000,
			Temperature: 0.3,
			Model:       model,
		})
		return genErr
	})
	if err != nil {
		b.logger.Warn("plan call failed, using deterministic fallback", zap.Error(err))
		return b.fallbackPlan(g)
	}

	if p, ok := b.parseJSON(response, g); ok {
		if err := Validate(p); err != nil {
			b.logger.Warn("model plan rejected", zap.Error(err))
			return b.fallbackPlan(g)
		}
		return p
	}
	if p, ok := b.parseManual(response, g); ok {
		b.logger.Info("plan parsed via manual fallback")
		return p
	}

	b.logger.Warn("plan response unparseable, using deterministic fallback")
	return b.fallbackPlan(g)
}

type parsedPlan struct {
	Strategy     string        `json:"strategy"`
	Phases       []parsedPhase `json:"phases"`
	QualityGates []string      `json:"quality_gates"`
	RiskFactors  []string      `json:"risk_factors"`
}

type parsedPhase struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Kind            string   `json:"type"`
	SearchTerms     []string `json:"search_terms"`
	SourceKinds     []string `json:"expected_source_kinds"`
	Dependencies    []string `json:"dependencies"`
	SuccessCriteria []string `json:"success_criteria"`
	Priority        string   `json:"priority"`
}

func (b *Builder) parseJSON(response string, g types.Goal) (types.Plan, bool) {
	var parsed parsedPlan
	if err := llm.DecodeObject(response, &parsed); err != nil {
		return types.Plan{}, false
	}
	if len(parsed.Phases) == 0 {
		return types.Plan{}, false
	}

	p := b.newPlan(g)
	p.Strategy = parsed.Strategy
	p.QualityGates = parsed.QualityGates
	p.RiskFactors = parsed.RiskFactors
	for i, ph := range parsed.Phases {
		p.Phases = append(p.Phases, b.toPhase(ph, i, g))
	}
	return p, true
}

func (b *Builder) toPhase(ph parsedPhase, index int, g types.Goal) types.Phase {
	id := ph.ID
	if id == "" {
		id = fmt.Sprintf("phase_%d", index+1)
	}
	terms := ph.SearchTerms
	if len(terms) == 0 {
		terms = searchTermsForIndex(g, index)
	}
	return types.Phase{
		ID:              id,
		Title:           ph.Title,
		Description:     ph.Description,
		Kind:            normalizeKind(ph.Kind),
		SearchTerms:     terms,
		SourceKinds:     normalizeSourceKinds(ph.SourceKinds),
		Dependencies:    ph.Dependencies,
		SuccessCriteria: ph.SuccessCriteria,
		Priority:        normalizePriority(ph.Priority),
	}
}

// parseManual scans a prose response for phase-like lines. It accepts the
// result only if at least two phases emerge; single-line responses fall
// through to the deterministic fallback instead.
func (b *Builder) parseManual(response string, g types.Goal) (types.Plan, bool) {
	p := b.newPlan(g)
	p.Strategy = "sequential investigation"

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if !strings.Contains(lower, "phase") && !strings.Contains(lower, "step") {
			continue
		}
		title := trimmed
		if _, after, found := strings.Cut(trimmed, ":"); found && strings.TrimSpace(after) != "" {
			title = strings.TrimSpace(after)
		}
		idx := len(p.Phases)
		phase := types.Phase{
			ID:          fmt.Sprintf("phase_%d", idx+1),
			Title:       title,
			Description: title,
			Kind:        types.PhaseResearch,
			SearchTerms: searchTermsForIndex(g, idx),
			SourceKinds: []types.SourceKind{types.SourceWeb},
			Priority:    types.PriorityMedium,
		}
		if idx > 0 {
			phase.Dependencies = []string{fmt.Sprintf("phase_%d", idx)}
		}
		p.Phases = append(p.Phases, phase)
	}

	if len(p.Phases) < 2 {
		return types.Plan{}, false
	}
	return p, true
}

// fallbackPlan is the deterministic one-phase-per-subgoal plan. Phases form a
// strict linear dependency chain.
func (b *Builder) fallbackPlan(g types.Goal) types.Plan {
	p := b.newPlan(g)
	p.Strategy = "investigate each subgoal in order"

	for i, sg := range g.Subgoals {
		phase := types.Phase{
			ID:              fmt.Sprintf("phase_%d", i+1),
			Title:           sg.Title,
			Description:     sg.Description,
			Kind:            types.PhaseResearch,
			SearchTerms:     sg.SearchTerms,
			SourceKinds:     sg.SourceKinds,
			SuccessCriteria: []string{"relevant sources identified"},
			Priority:        sg.Priority,
		}
		if i > 0 {
			phase.Dependencies = []string{fmt.Sprintf("phase_%d", i)}
		}
		p.Phases = append(p.Phases, phase)
	}
	return p
}

func (b *Builder) newPlan(g types.Goal) types.Plan {
	return types.Plan{
		PlanID:       uuid.NewString(),
		ResearchGoal: g.MainGoal,
		CreatedAt:    b.now(),
	}
}

// searchTermsForIndex borrows terms from the subgoal at the same position,
// wrapping around when the plan has more phases than the goal has subgoals.
func searchTermsForIndex(g types.Goal, index int) []string {
	if len(g.Subgoals) == 0 {
		return []string{"information", "research", "facts"}
	}
	return g.Subgoals[index%len(g.Subgoals)].SearchTerms
}

func normalizeKind(s string) types.PhaseKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "analysis":
		return types.PhaseAnalysis
	case "synthesis":
		return types.PhaseSynthesis
	case "validation":
		return types.PhaseValidation
	default:
		return types.PhaseResearch
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

// nextPhaseID returns a fresh sequential id for an appended phase.
func nextPhaseID(p types.Plan) string {
	max := 0
	for _, ph := range p.Phases {
		suffix, found := strings.CutPrefix(ph.ID, "phase_")
		if !found {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("phase_%d", max+1)
}
