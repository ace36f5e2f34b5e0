package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"deepresearch/internal/store"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show aggregate statistics across all sessions",
	RunE:  showAnalytics,
}

func showAnalytics(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	a, err := st.GetAnalytics()
	if err != nil {
		return err
	}

	heading("Research analytics")
	fmt.Printf("Sessions:   %d total, %s, %s\n",
		a.TotalSessions,
		okStyle.Render(fmt.Sprintf("%d completed", a.CompletedSessions)),
		failStyle.Render(fmt.Sprintf("%d failed", a.FailedSessions)))
	fmt.Printf("Findings:   %d\n", a.TotalFindings)
	fmt.Printf("Citations:  %d\n", a.TotalCitations)
	fmt.Printf("Avg score:  %.2f\n", a.AvgQualityScore)

	if len(a.GradeCounts) > 0 {
		grades := make([]string, 0, len(a.GradeCounts))
		for g := range a.GradeCounts {
			grades = append(grades, g)
		}
		sort.Strings(grades)
		fmt.Print("Grades:     ")
		for _, g := range grades {
			fmt.Printf("%s ×%d  ", g, a.GradeCounts[g])
		}
		fmt.Println()
	}
	return nil
}
