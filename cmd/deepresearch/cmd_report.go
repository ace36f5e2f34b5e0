package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deepresearch/internal/store"
)

var (
	reportOutput   string
	reportNoRender bool
)

var reportCmd = &cobra.Command{
	Use:   "report [session-id]",
	Short: "Re-render the report of a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  showReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "write the report to this file")
	reportCmd.Flags().BoolVar(&reportNoRender, "no-render", false, "print the raw markdown report")
}

func showReport(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	session, err := st.GetSession(args[0])
	if err != nil {
		return err
	}
	if session.Report == "" {
		return fmt.Errorf("session %s has no stored report (status %s)", session.ID, session.Status)
	}

	if reportOutput != "" {
		if err := os.WriteFile(reportOutput, []byte(session.Report), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Println("Report written to " + reportOutput)
		return nil
	}

	if reportNoRender {
		fmt.Println(session.Report)
	} else {
		fmt.Println(renderMarkdown(session.Report))
	}
	return nil
}
