package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kadvik/mrev/internal/config"
	"github.com/kadvik/mrev/internal/metrics"
	"github.com/kadvik/mrev/internal/report"
	"github.com/kadvik/mrev/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a merge request diff in a local repository",
	Long: `Review the changes between two refs of a local repository.

The diff of base...head is collected, filtered through the effective
review rules, sent to the configured LLM, and rendered as a report.

Examples:
  # Review the current branch against main
  mrev review

  # Review an explicit ref pair
  mrev review --base main --head feature/login

  # Review another repository
  mrev review --repo /srv/repos/group/project

  # Output as JSON
  mrev review --format json

  # Save the report to a file
  mrev review -o report.md`,

	Args: cobra.NoArgs,
	RunE: runReview,
}

var (
	reviewRepo   string
	reviewBase   string
	reviewHead   string
	reviewFormat string
	reviewOutput string
)

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringVarP(&reviewRepo, "repo", "r", "", "repository path (default from config, else current directory)")
	reviewCmd.Flags().StringVarP(&reviewBase, "base", "b", "", "base ref to compare against (default from config)")
	reviewCmd.Flags().StringVar(&reviewHead, "head", "HEAD", "head ref to review")
	reviewCmd.Flags().StringVarP(&reviewFormat, "format", "f", "markdown", "output format (markdown, json)")
	reviewCmd.Flags().StringVarP(&reviewOutput, "output", "o", "", "write report to file instead of stdout")

	// Provider overrides for one-off runs
	reviewCmd.Flags().String("provider", "", "LLM provider to use (openrouter, ollama)")
	reviewCmd.Flags().String("model", "", "model to use")
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyProviderFlags(cmd, cfg)

	reporter, err := report.NewReporter(reviewFormat)
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	pipeline, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}

	repoPath := reviewRepo
	if repoPath == "" {
		repoPath = cfg.Git.RepoPath
	}
	base := reviewBase
	if base == "" {
		base = cfg.Git.BaseBranch
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := pipeline.Run(ctx, review.Request{
		RepoPath: repoPath,
		BaseRef:  base,
		HeadRef:  reviewHead,
	})
	if err != nil {
		return err
	}

	if err := writeReport(reporter, outcome); err != nil {
		return err
	}

	if verbose && !quiet {
		if data, err := metrics.Global().Export(); err == nil {
			fmt.Fprintf(os.Stderr, "Metrics:\n%s\n", data)
		}
	}
	return nil
}

// applyProviderFlags applies per-invocation provider overrides.
func applyProviderFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("provider"); v != "" {
		cfg.Provider.Name = v
	}
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.Provider.Model = v
	}
}

func writeReport(reporter report.Reporter, outcome *review.Outcome) error {
	rev := &report.Review{
		Result:       outcome.Result,
		OmittedFiles: outcome.Omitted,
	}

	if reviewOutput != "" {
		f, err := os.Create(reviewOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		if err := reporter.Write(rev, f); err != nil {
			return err
		}
		if !isQuiet() {
			fmt.Fprintf(os.Stderr, "Report written to %s\n", reviewOutput)
		}
		return nil
	}

	return reporter.Write(rev, os.Stdout)
}
