// Package review orchestrates one merge-request review run: rule
// resolution, diff collection, prompt building, the LLM call, and
// Markdown rendering, in that order.
//
// The pipeline is the only place that decides whether a failure is
// fatal to the run. Rule resolution fails soft (bot defaults); every
// other stage failure terminates the run with a stage-tagged error.
package review

import (
	"context"
	"fmt"
	"time"

	"github.com/kadvik/mrev/internal/config"
	"github.com/kadvik/mrev/internal/git"
	"github.com/kadvik/mrev/internal/llm"
	"github.com/kadvik/mrev/internal/logger"
	"github.com/kadvik/mrev/internal/metrics"
	"github.com/kadvik/mrev/internal/prompt"
	"github.com/kadvik/mrev/internal/report"
	"github.com/kadvik/mrev/internal/rules"
)

// Stage identifies how far a run progressed.
type Stage string

const (
	StageReceived      Stage = "received"
	StageRulesResolved Stage = "rules_resolved"
	StageDiffCollected Stage = "diff_collected"
	StagePromptBuilt   Stage = "prompt_built"
	StageReviewed      Stage = "reviewed"
	StageRendered      Stage = "rendered"
	StageDone          Stage = "done"
)

// StageError is the terminal Failed(stage, reason) outcome: it tags
// the underlying error with the stage that produced it so callers can
// diagnose without a stack trace.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Reviewer is the LLM step. *llm.Client implements it; tests swap in
// a mock.
type Reviewer interface {
	Review(ctx context.Context, p *prompt.Prompt) (*llm.ReviewResult, error)
}

// Request identifies one merge-request event to review.
type Request struct {
	RepoPath string
	BaseRef  string
	HeadRef  string

	// Optional metadata carried into the prompt
	Project      string
	SourceBranch string
	TargetBranch string
}

// Outcome is a completed run.
type Outcome struct {
	State    Stage             `json:"state"`
	Markdown string            `json:"markdown"`
	Result   *llm.ReviewResult `json:"result"`
	Rules    rules.RuleSet     `json:"rules"`
	Files    []git.FileDiff    `json:"files"`
	Omitted  []string          `json:"omitted_files,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// Pipeline runs review events. Safe for concurrent use: all per-run
// state lives in locals, and the shared pieces (resolver, builder,
// reviewer, renderer) are themselves concurrency-safe.
type Pipeline struct {
	cfg      *config.Config
	resolver *rules.Resolver
	builder  *prompt.Builder
	reviewer Reviewer
	renderer *report.MarkdownReporter
	log      *logger.Logger
}

// NewPipeline assembles a pipeline from its stages.
func NewPipeline(cfg *config.Config, resolver *rules.Resolver, reviewer Reviewer, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		resolver: resolver,
		builder:  prompt.NewBuilder(cfg.Provider.Model, cfg.Review.PromptTokenBudget),
		reviewer: reviewer,
		renderer: &report.MarkdownReporter{},
		log:      log.WithPrefix("pipeline"),
	}
}

// Run executes the full pipeline for one event. On failure the
// returned error is a *StageError naming the stage that failed;
// callers never see partial Markdown.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Outcome, error) {
	start := time.Now()
	metrics.IncCounter("pipeline.runs_started")
	p.log.Info("run started: %s %s..%s", req.RepoPath, req.BaseRef, req.HeadRef)

	// Rules resolve soft: a broken project file demotes to bot
	// defaults inside the resolver and the run continues.
	effective := p.resolver.Resolve(req.RepoPath)

	if err := ctx.Err(); err != nil {
		return nil, p.fail(StageRulesResolved, err)
	}

	collector, err := git.NewCollector(req.RepoPath, p.cfg.Git.ContextLines)
	if err != nil {
		return nil, p.fail(StageDiffCollected, err)
	}
	files, err := collector.Collect(ctx, req.BaseRef, req.HeadRef, effective.MaxFileSize)
	if err != nil {
		return nil, p.fail(StageDiffCollected, err)
	}
	p.observeFiles(files)

	meta := prompt.Metadata{
		Project:      req.Project,
		SourceBranch: req.SourceBranch,
		TargetBranch: req.TargetBranch,
		BaseSHA:      req.BaseRef,
		HeadSHA:      req.HeadRef,
	}

	outcome, err := p.reviewFiles(ctx, effective, files, meta)
	if err != nil {
		return nil, err
	}

	outcome.Duration = time.Since(start)
	metrics.IncCounter("pipeline.runs_completed")
	metrics.ObserveHistogram("pipeline.run_duration_ms", float64(outcome.Duration.Milliseconds()))
	p.log.Info("run done in %s: score %d/10, %d file(s), %d omitted",
		outcome.Duration.Round(time.Millisecond), outcome.Result.QualityScore, len(files), len(outcome.Omitted))
	return outcome, nil
}

// ReviewFiles runs the pipeline tail (prompt, LLM, render) over an
// already-collected diff. The webhook test endpoint uses it with a
// synthetic diff; Run uses it after collection.
func (p *Pipeline) ReviewFiles(ctx context.Context, files []git.FileDiff, meta prompt.Metadata) (*Outcome, error) {
	start := time.Now()
	outcome, err := p.reviewFiles(ctx, p.resolver.Bot(), files, meta)
	if err != nil {
		return nil, err
	}
	outcome.Duration = time.Since(start)
	return outcome, nil
}

func (p *Pipeline) reviewFiles(ctx context.Context, effective rules.RuleSet, files []git.FileDiff, meta prompt.Metadata) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, p.fail(StageDiffCollected, err)
	}

	pr := p.builder.Build(&prompt.ReviewRequest{
		Rules: effective,
		Files: files,
		Meta:  meta,
	})
	if len(pr.OmittedFiles) > 0 {
		metrics.AddCounter("pipeline.files_omitted", int64(len(pr.OmittedFiles)))
		p.log.Warn("prompt budget dropped %d file(s): %v", len(pr.OmittedFiles), pr.OmittedFiles)
	}

	if err := ctx.Err(); err != nil {
		return nil, p.fail(StagePromptBuilt, err)
	}

	result, err := p.reviewer.Review(ctx, pr)
	if err != nil {
		return nil, p.fail(StageReviewed, err)
	}
	result.Normalize()

	markdown, err := p.renderer.Generate(&report.Review{
		Result:       result,
		OmittedFiles: pr.OmittedFiles,
	})
	if err != nil {
		// Unreachable for a normalized result; invariant violation.
		return nil, p.fail(StageRendered, err)
	}

	return &Outcome{
		State:    StageDone,
		Markdown: markdown,
		Result:   result,
		Rules:    effective,
		Files:    files,
		Omitted:  pr.OmittedFiles,
	}, nil
}

// fail records the stage failure and wraps the error.
func (p *Pipeline) fail(stage Stage, err error) *StageError {
	metrics.IncCounter("pipeline.failed." + string(stage))
	p.log.Error("run failed at %s: %v", stage, err)
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) observeFiles(files []git.FileDiff) {
	metrics.AddCounter("pipeline.files_processed", int64(len(files)))
	for _, f := range files {
		if f.IsTruncated {
			metrics.IncCounter("pipeline.files_truncated")
		}
		if f.IsBinary {
			metrics.IncCounter("pipeline.files_binary")
		}
	}
}
