package agent

import (
	"fmt"

	"deepresearch/internal/types"
)

// ExecutionSteps renders a run's execution log as numbered, timestamped
// lines for display to a caller.
func ExecutionSteps(log []types.LogEntry) []string {
	steps := make([]string, 0, len(log))
	for i, entry := range log {
		steps = append(steps, fmt.Sprintf("%d. [%s] %s (%d phases complete)",
			i+1,
			entry.Timestamp.Format("15:04:05"),
			entry.Description,
			entry.CompletedPhases))
	}
	return steps
}
