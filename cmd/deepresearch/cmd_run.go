package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deepresearch/internal/agent"
	"deepresearch/internal/config"
	"deepresearch/internal/store"
)

var (
	outputPath string
	noRender   bool
)

var runCmd = &cobra.Command{
	Use:   "run [research goal]",
	Short: "Execute a research goal end to end",
	Long: `Runs the full pipeline for a goal: decomposition, planning, phased
retrieval and extraction, per-phase critique, holistic synthesis, final
quality review, and report assembly.

Example:
  deepresearch run "impact of AI on healthcare diagnostics in 2023-2024"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to this file")
	runCmd.Flags().BoolVar(&noRender, "no-render", false, "print the raw markdown report")
}

func runResearch(cmd *cobra.Command, args []string) error {
	goalText := strings.Join(args, " ")

	if v := cfg.Validate(); !v.OK() {
		for _, issue := range v.Issues {
			fmt.Fprintln(os.Stderr, failStyle.Render("config: "+issue))
		}
		return fmt.Errorf("invalid configuration")
	} else if len(v.Warnings) > 0 {
		for _, w := range v.Warnings {
			fmt.Fprintln(os.Stderr, mutedStyle.Render("config: "+w))
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received, stopping at next phase boundary")
		cancel()
	}()

	client, err := newClient(ctx)
	if err != nil {
		return err
	}

	var st *store.Store
	if cfg.Storage.Enabled {
		st, err = store.Open(cfg.Storage.DatabasePath, logger)
		if err != nil {
			logger.Warn("persistence unavailable, continuing without it", zap.Error(err))
			st = nil
		} else {
			defer st.Close()
		}
	}

	pipeline := agent.NewPipeline(cfg, client, st, logger,
		agent.WithProgress(printProgress))
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Warn("pipeline cleanup failed", zap.Error(err))
		}
	}()

	// Edits to the config file retune the live run at the next phase
	// boundary.
	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, pipeline.Retune, logger)
		if err != nil {
			logger.Warn("config watch unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("config watch failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	heading("Researching: " + goalText)
	result := pipeline.Run(ctx, goalText)

	fmt.Println()
	if !result.Success {
		fmt.Println(failStyle.Render("Research failed: " + result.Error))
		fmt.Printf("Partial results: %d findings, %d citations\n",
			len(result.Findings), len(result.Citations))
		return nil
	}

	heading("Summary")
	fmt.Printf("Grade: %s  Score: %.2f  Phases: %d  Findings: %d  Citations: %d  Time: %.1fs\n",
		gradeBadge(result.QualityCheck.Grade),
		result.QualityCheck.OverallScore,
		len(result.PhaseResults),
		len(result.Findings),
		len(result.Citations),
		result.ExecutionSeconds)
	if result.SessionID != "" {
		fmt.Println(mutedStyle.Render("Session: " + result.SessionID))
	}

	if verbose {
		heading("Execution log")
		for _, step := range agent.ExecutionSteps(result.ExecutionLog) {
			fmt.Println(mutedStyle.Render(step))
		}
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(result.Report), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Println("Report written to " + outputPath)
		return nil
	}

	fmt.Println()
	if noRender {
		fmt.Println(result.Report)
	} else {
		fmt.Println(renderMarkdown(result.Report))
	}
	return nil
}

// printProgress is the synchronous progress callback for the run command.
func printProgress(ev agent.ProgressEvent) {
	switch ev.Kind {
	case agent.EventPlanReady:
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Plan ready: %d phases, %s", ev.Total, ev.Message)))
	case agent.EventPhaseStarted:
		fmt.Println(mutedStyle.Render("→ " + ev.Title))
	case agent.EventPhaseCompleted:
		fmt.Println(okStyle.Render(fmt.Sprintf("✓ %s (%d/%d)", ev.Title, ev.Completed, ev.Total)))
	case agent.EventPhaseFailed:
		fmt.Println(failStyle.Render("✗ " + ev.Title + ": " + ev.Message))
	case agent.EventPlanUpdated:
		fmt.Println(mutedStyle.Render(fmt.Sprintf("↺ plan updated, now %d phases", ev.Total)))
	}
}
