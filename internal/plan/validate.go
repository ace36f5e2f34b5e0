package plan

import (
	"fmt"
	"time"

	"deepresearch/internal/types"
)

// Validate rejects plans whose dependency graph is not a DAG over known phase
// ids. A cyclic or dangling plan would stall the scheduler silently, so it is
// rejected at build time instead.
func Validate(p types.Plan) error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("plan has no phases")
	}

	known := make(map[string]bool, len(p.Phases))
	for _, ph := range p.Phases {
		if ph.ID == "" {
			return fmt.Errorf("phase with empty id")
		}
		if known[ph.ID] {
			return fmt.Errorf("duplicate phase id %q", ph.ID)
		}
		known[ph.ID] = true
	}

	deps := make(map[string][]string, len(p.Phases))
	for _, ph := range p.Phases {
		for _, dep := range ph.Dependencies {
			if !known[dep] {
				return fmt.Errorf("phase %q depends on unknown phase %q", ph.ID, dep)
			}
			deps[ph.ID] = append(deps[ph.ID], dep)
		}
	}

	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(p.Phases))
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("dependency cycle through phase %q", id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, dep := range deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for _, ph := range p.Phases {
		if err := visit(ph.ID); err != nil {
			return err
		}
	}
	return nil
}

// NextPhase returns the first phase in plan order that is neither completed
// nor excluded and whose every dependency is completed. The list-order
// tie-break is deterministic. Excluded ids are failed phases; a phase whose
// dependency failed never becomes eligible.
func NextPhase(p types.Plan, completed, excluded map[string]bool) (types.Phase, bool) {
	for _, ph := range p.Phases {
		if completed[ph.ID] || excluded[ph.ID] {
			continue
		}
		eligible := true
		for _, dep := range ph.Dependencies {
			if !completed[dep] {
				eligible = false
				break
			}
		}
		if eligible {
			return ph, true
		}
	}
	return types.Phase{}, false
}

// Per-kind duration estimates, in minutes.
var kindMinutes = map[types.PhaseKind]int{
	types.PhaseResearch:   15,
	types.PhaseAnalysis:   10,
	types.PhaseSynthesis:  10,
	types.PhaseValidation: 5,
}

// EstimateDuration gives a rough wall-clock estimate for executing the plan.
func EstimateDuration(p types.Plan) time.Duration {
	total := 0
	for _, ph := range p.Phases {
		m, ok := kindMinutes[ph.Kind]
		if !ok {
			m = 10
		}
		total += m
	}
	return time.Duration(total) * time.Minute
}
