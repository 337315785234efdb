package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kadvik/mrev/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect review rules",
	Long:  `Inspect the bot defaults and the effective rules for a repository.`,
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective review rules",
	Long: `Show the rules a review of the given repository would run with:
the bot defaults merged with the repository's override file, if any.

Without --repo, the bot defaults are shown unmerged.

Examples:
  # Show the bot defaults
  mrev rules show

  # Show the effective rules for a repository
  mrev rules show --repo .

  # Output as JSON
  mrev rules show --repo . --format json`,

	Args: cobra.NoArgs,
	RunE: runRulesShow,
}

var (
	rulesRepo   string
	rulesFormat string
)

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesShowCmd)

	rulesShowCmd.Flags().StringVarP(&rulesRepo, "repo", "r", "", "repository whose overrides to merge in")
	rulesShowCmd.Flags().StringVarP(&rulesFormat, "format", "f", "yaml", "output format (yaml, json)")
}

func runRulesShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	bot, err := loadBotRules(cfg)
	if err != nil {
		return fmt.Errorf("failed to load bot rules: %w", err)
	}

	effective := bot
	if rulesRepo != "" {
		resolver := rules.NewResolver(bot, cfg.Rules.ProjectFile, newLogger(cfg))
		effective = resolver.Resolve(rulesRepo)
	}

	out := cmd.OutOrStdout()
	switch rulesFormat {
	case "yaml", "yml":
		data, err := yaml.Marshal(effective)
		if err != nil {
			return fmt.Errorf("failed to marshal rules: %w", err)
		}
		fmt.Fprint(out, string(data))
	case "json":
		data, err := json.MarshalIndent(effective, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal rules: %w", err)
		}
		fmt.Fprintln(out, string(data))
	default:
		return fmt.Errorf("unknown format: %s (available: yaml, json)", rulesFormat)
	}

	return nil
}
