package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kadvik/mrev/internal/gitlab"
	"github.com/kadvik/mrev/internal/profiler"
	"github.com/kadvik/mrev/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the GitLab webhook server",
	Long: `Run the HTTP server that reviews merge requests on webhook events.

Endpoints:
  POST /gitlab   GitLab merge request webhook
  POST /test     review a built-in sample diff (smoke test)
  GET  /health   liveness probe
  GET  /stats    process metrics as JSON

When a GitLab API token is configured, the rendered review is also
posted back to the merge request as a note.

Examples:
  # Listen on the configured address
  mrev serve

  # Override the listen address
  mrev serve --addr :9090

  # Expose pprof on a side listener
  mrev serve --pprof-addr localhost:6060`,

	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr      string
	servePprofAddr string
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&servePprofAddr, "pprof-addr", "", "serve net/http/pprof on this address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if servePprofAddr != "" {
		cfg.Server.PprofAddr = servePprofAddr
	}

	log := newLogger(cfg)
	pipeline, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}

	poster := gitlab.NewClient(cfg)
	if poster.Enabled() {
		log.Info("gitlab comment posting enabled: %s", cfg.GitLab.BaseURL)
	} else {
		log.Info("no gitlab token configured, reviews will not be posted")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.PprofAddr != "" {
		prof := profiler.New(cfg.Server.PprofAddr, log)
		prof.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := prof.Stop(stopCtx); err != nil {
				log.Warn("pprof shutdown: %v", err)
			}
		}()
	}

	srv := webhook.NewServer(cfg, pipeline, poster, log)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
