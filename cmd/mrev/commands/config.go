package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kadvik/mrev/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage mrev configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the current configuration, including values from the
config file, environment variables, and defaults.

Secrets (API keys, tokens, webhook secret) are masked.

Examples:
  # Show config in YAML format
  mrev config show

  # Show config as JSON
  mrev config show --format json`,

	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", "yaml", "output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	masked := maskSecrets(cfg)

	out := cmd.OutOrStdout()
	if !isQuiet() {
		if file := loader.ConfigFileUsed(); file != "" {
			fmt.Fprintf(out, "# Config file: %s\n\n", file)
		} else {
			fmt.Fprintf(out, "# No config file found, using defaults\n\n")
		}
	}

	switch configFormat {
	case "yaml", "yml":
		data, err := yaml.Marshal(masked)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprint(out, string(data))
	case "json":
		data, err := json.MarshalIndent(masked, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Fprintln(out, string(data))
	default:
		return fmt.Errorf("unknown format: %s (available: yaml, json)", configFormat)
	}

	return nil
}

// maskSecrets copies cfg with credential fields replaced.
func maskSecrets(cfg *config.Config) *config.Config {
	masked := *cfg

	if masked.Provider.APIKey != "" {
		masked.Provider.APIKey = "***REDACTED***"
	}
	if masked.GitLab.Token != "" {
		masked.GitLab.Token = "***REDACTED***"
	}
	if masked.Server.WebhookSecret != "" {
		masked.Server.WebhookSecret = "***REDACTED***"
	}

	return &masked
}
