package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"deepresearch/internal/config"
	"deepresearch/internal/llm"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string
	freeTier   bool

	// Loaded per invocation
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deepresearch",
	Short: "deepresearch - autonomous research assistant",
	Long: `deepresearch runs goal-driven research: it decomposes a goal into
subgoals, builds a phased execution plan, retrieves and extracts from web and
academic sources, critiques its own output, and assembles a cited report.

Model calls are paced and retried by a rate governor; under sustained quota
pressure the pipeline degrades to model-free heuristics instead of failing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if freeTier {
			cfg = config.FreeTier()
		} else {
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
		}
		if dbPath != "" {
			cfg.Storage.DatabasePath = dbPath
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "deepresearch.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override database path")
	rootCmd.PersistentFlags().BoolVar(&freeTier, "free-tier", false, "use the free-tier preset (fewer sources, slower pacing)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(reportCmd)
}

// newClient builds the configured model client. Validation already warned
// about a missing key; the providers surface their own errors on use.
func newClient(ctx context.Context) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		return llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey: cfg.ProviderKey(),
			Model:  cfg.LLM.Model,
		}, logger)
	case "groq":
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.ProviderKey(),
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.GetLLMTimeout(),
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
