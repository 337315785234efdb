// Package commands contains all CLI commands for mrev.
//
// This package uses the Cobra library for CLI management.
// Each command is defined in its own file and registered in init().
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kadvik/mrev/internal/config"
	"github.com/kadvik/mrev/internal/llm"
	"github.com/kadvik/mrev/internal/logger"
	"github.com/kadvik/mrev/internal/review"
	"github.com/kadvik/mrev/internal/rules"
)

var (
	// cfgFile holds the path to the config file (from --config flag)
	cfgFile string

	// verbose enables debug-level logging
	verbose bool

	// quiet suppresses all output except errors
	quiet bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mrev",
	Short: "AI code review for GitLab merge requests",
	Long: `mrev reviews the diff of a merge request with an LLM and renders
the findings as a Markdown report.

It runs either as a one-shot CLI over a local repository or as a
webhook server that reacts to GitLab merge request events and posts
the review back as a comment.

Examples:
  # Review feature..main in the current repository
  mrev review --base main --head feature

  # Run the webhook server
  mrev serve

  # Show the effective review rules for a repository
  mrev rules show --repo .

  # Show current configuration
  mrev config show`,

	// SilenceUsage prevents printing usage on errors
	SilenceUsage: true,

	// SilenceErrors lets main handle errors itself
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .mrev.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

// loadConfig builds the configuration for the current invocation,
// honoring the --config flag.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if verbose && !quiet && loader.ConfigFileUsed() != "" {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", loader.ConfigFileUsed())
	}

	return cfg, nil
}

// newLogger builds a logger honoring --verbose and --quiet over the
// configured level.
func newLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Log.Level)
	switch {
	case quiet:
		level = logger.LevelError
	case verbose:
		level = logger.LevelDebug
	}
	return logger.New(level, os.Stderr)
}

// loadBotRules reads the bot rule baseline: the built-in defaults,
// or an external document when rules.bot_file is set.
func loadBotRules(cfg *config.Config) (rules.RuleSet, error) {
	if cfg.Rules.BotFile != "" {
		return rules.LoadBotRules(cfg.Rules.BotFile)
	}
	return rules.Defaults()
}

// buildPipeline assembles the full review pipeline from config.
// Shared by the review and serve commands.
func buildPipeline(cfg *config.Config, log *logger.Logger) (*review.Pipeline, error) {
	bot, err := loadBotRules(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot rules: %w", err)
	}
	resolver := rules.NewResolver(bot, cfg.Rules.ProjectFile, log)

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, err
	}
	client := llm.NewClient(provider, cfg, log)

	return review.NewPipeline(cfg, resolver, client, log), nil
}

// isQuiet returns true if quiet mode is enabled
func isQuiet() bool {
	return quiet
}
