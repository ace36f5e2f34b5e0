package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"deepresearch/internal/store"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent research sessions",
	RunE:  listSessions,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 10, "number of sessions to show")
}

func listSessions(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	sessions, err := st.GetRecentSessions(sessionsLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println(mutedStyle.Render("No sessions recorded yet."))
		return nil
	}

	heading("Recent sessions")
	for _, s := range sessions {
		line := fmt.Sprintf("%-8s  %-9s  %s", shortID(s.ID), s.Status, truncateGoal(s.Goal))
		switch s.Status {
		case "completed":
			line = okStyle.Render(line)
			if s.QualityGrade != "" {
				line += "  " + mutedStyle.Render(fmt.Sprintf("grade %s (%.2f)", s.QualityGrade, s.QualityScore))
			}
		case "failed":
			line = failStyle.Render(line)
		default:
			line = mutedStyle.Render(line)
		}
		fmt.Println(line)
		fmt.Println(mutedStyle.Render("         " + s.CreatedAt.Format("2006-01-02 15:04")))
	}
	return nil
}

// shortID trims a session id for display. Ids are UUIDs in practice, but
// anything shorter is printed as-is.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateGoal(goal string) string {
	if len(goal) <= 60 {
		return goal
	}
	return goal[:57] + "..."
}
