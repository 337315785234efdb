package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kadvik/mrev/internal/config"
	"github.com/kadvik/mrev/internal/git"
	"github.com/kadvik/mrev/internal/llm"
	"github.com/kadvik/mrev/internal/prompt"
	"github.com/kadvik/mrev/internal/rules"
)

// MockReviewer implements Reviewer with a function field.
type MockReviewer struct {
	ReviewFunc func(ctx context.Context, p *prompt.Prompt) (*llm.ReviewResult, error)
	LastPrompt *prompt.Prompt
}

func (m *MockReviewer) Review(ctx context.Context, p *prompt.Prompt) (*llm.ReviewResult, error) {
	m.LastPrompt = p
	return m.ReviewFunc(ctx, p)
}

// initTestRepo creates a repository where branch "feature" adds one
// 49-line foo.py on top of main.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		var errBuf bytes.Buffer
		cmd.Stderr = &errBuf
		if err := cmd.Run(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, errBuf.String())
		}
	}
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}

	run("init")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("checkout", "-b", "main")
	write("README.md", "# demo\n")
	run("add", ".")
	run("commit", "-m", "initial commit")

	run("checkout", "-b", "feature")
	var content strings.Builder
	for i := 0; i < 49; i++ {
		fmt.Fprintf(&content, "print(%d)\n", i)
	}
	write("foo.py", content.String())
	run("add", ".")
	run("commit", "-m", "add foo")

	return dir
}

func botDefaults(t *testing.T) rules.RuleSet {
	t.Helper()
	bot, err := rules.Defaults()
	if err != nil {
		t.Fatalf("rules.Defaults: %v", err)
	}
	return bot
}

func newTestPipeline(t *testing.T, reviewer Reviewer) *Pipeline {
	t.Helper()
	cfg := config.DefaultConfig()
	resolver := rules.NewResolver(botDefaults(t), cfg.Rules.ProjectFile, nil)
	return NewPipeline(cfg, resolver, reviewer, nil)
}

func TestRunEndToEnd(t *testing.T) {
	dir := initTestRepo(t)

	mock := &MockReviewer{
		ReviewFunc: func(_ context.Context, _ *prompt.Prompt) (*llm.ReviewResult, error) {
			return &llm.ReviewResult{Summary: "clean addition", QualityScore: 8}, nil
		},
	}
	p := newTestPipeline(t, mock)

	outcome, err := p.Run(context.Background(), Request{
		RepoPath:     dir,
		BaseRef:      "main",
		HeadRef:      "feature",
		Project:      "demo/repo",
		SourceBranch: "feature",
		TargetBranch: "main",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if outcome.State != StageDone {
		t.Errorf("State = %s, want %s", outcome.State, StageDone)
	}
	if len(outcome.Files) != 1 {
		t.Fatalf("Files = %d, want 1", len(outcome.Files))
	}
	f := outcome.Files[0]
	if f.Path != "foo.py" || f.IsTruncated {
		t.Errorf("FileDiff = %+v, want untruncated foo.py", f)
	}
	if f.Language != "python" {
		t.Errorf("Language = %q, want python", f.Language)
	}

	if mock.LastPrompt == nil || !strings.Contains(mock.LastPrompt.User, "foo.py") {
		t.Error("prompt must contain the changed path foo.py")
	}

	if !strings.Contains(outcome.Markdown, "Quality Score: 8/10") {
		t.Errorf("markdown missing quality score line:\n%s", outcome.Markdown)
	}
}

func TestRunBadRepoFailsAtDiffCollected(t *testing.T) {
	mock := &MockReviewer{
		ReviewFunc: func(_ context.Context, _ *prompt.Prompt) (*llm.ReviewResult, error) {
			t.Fatal("reviewer must not be called when collection fails")
			return nil, nil
		},
	}
	p := newTestPipeline(t, mock)

	_, err := p.Run(context.Background(), Request{
		RepoPath: t.TempDir(),
		BaseRef:  "main",
		HeadRef:  "feature",
	})

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if stageErr.Stage != StageDiffCollected {
		t.Errorf("Stage = %s, want %s", stageErr.Stage, StageDiffCollected)
	}
	var repoErr *git.RepositoryError
	if !errors.As(err, &repoErr) {
		t.Errorf("cause should unwrap to *RepositoryError, got %v", err)
	}
}

func TestRunReviewerExhaustionFailsAtReviewed(t *testing.T) {
	dir := initTestRepo(t)

	mock := &MockReviewer{
		ReviewFunc: func(_ context.Context, _ *prompt.Prompt) (*llm.ReviewResult, error) {
			return nil, &llm.LLMError{Kind: llm.Transient, StatusCode: 503, Err: errors.New("unavailable")}
		},
	}
	p := newTestPipeline(t, mock)

	_, err := p.Run(context.Background(), Request{RepoPath: dir, BaseRef: "main", HeadRef: "feature"})

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if stageErr.Stage != StageReviewed {
		t.Errorf("Stage = %s, want %s", stageErr.Stage, StageReviewed)
	}
	var llmErr *llm.LLMError
	if !errors.As(err, &llmErr) || !llmErr.Transient() {
		t.Errorf("cause should be a transient *LLMError, got %v", err)
	}
}

func TestRunMalformedProjectRulesFallsBack(t *testing.T) {
	dir := initTestRepo(t)
	if err := os.WriteFile(filepath.Join(dir, "md.rbot"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("writing override: %v", err)
	}

	mock := &MockReviewer{
		ReviewFunc: func(_ context.Context, _ *prompt.Prompt) (*llm.ReviewResult, error) {
			return &llm.ReviewResult{Summary: "ok", QualityScore: 6}, nil
		},
	}
	p := newTestPipeline(t, mock)

	outcome, err := p.Run(context.Background(), Request{RepoPath: dir, BaseRef: "main", HeadRef: "feature"})
	if err != nil {
		t.Fatalf("malformed project rules must not fail the run: %v", err)
	}

	bot := botDefaults(t)
	if outcome.Rules.MaxFileSize != bot.MaxFileSize {
		t.Errorf("Rules.MaxFileSize = %d, want bot default %d", outcome.Rules.MaxFileSize, bot.MaxFileSize)
	}
}

func TestRunCancelledContext(t *testing.T) {
	dir := initTestRepo(t)

	mock := &MockReviewer{
		ReviewFunc: func(_ context.Context, _ *prompt.Prompt) (*llm.ReviewResult, error) {
			t.Fatal("reviewer must not be called after cancellation")
			return nil, nil
		},
	}
	p := newTestPipeline(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Request{RepoPath: dir, BaseRef: "main", HeadRef: "feature"})

	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if stageErr.Stage == StageReviewed || stageErr.Stage == StageDone {
		t.Errorf("cancellation should stop before the LLM call, failed at %s", stageErr.Stage)
	}
}

func TestReviewFilesSyntheticDiff(t *testing.T) {
	mock := &MockReviewer{
		ReviewFunc: func(_ context.Context, _ *prompt.Prompt) (*llm.ReviewResult, error) {
			return &llm.ReviewResult{Summary: "sample", QualityScore: 7}, nil
		},
	}
	p := newTestPipeline(t, mock)

	files := []git.FileDiff{{
		Path:        "example.py",
		Language:    "python",
		Status:      git.FileModified,
		UnifiedDiff: "@@ -1 +1,2 @@\n def f():\n+    return 1",
	}}

	outcome, err := p.ReviewFiles(context.Background(), files, prompt.Metadata{Project: "smoke"})
	if err != nil {
		t.Fatalf("ReviewFiles: %v", err)
	}
	if outcome.State != StageDone {
		t.Errorf("State = %s, want %s", outcome.State, StageDone)
	}
	if !strings.Contains(outcome.Markdown, "Quality Score: 7/10") {
		t.Error("markdown missing score line")
	}
}

// Full-stack scenarios through a real llm.Client against a stub
// backend: retries end in Done, exhaustion ends in Failed(reviewed).
func TestRunWithRealClientRetryScenarios(t *testing.T) {
	dir := initTestRepo(t)

	newClient := func(t *testing.T, handler http.HandlerFunc) *llm.Client {
		t.Helper()
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)

		cfg := config.DefaultConfig()
		cfg.Provider.APIKey = "sk-or-v1-test"
		cfg.Provider.BaseURL = srv.URL
		cfg.Provider.Timeout = 5 * time.Second
		provider, err := llm.NewOpenRouterProvider(cfg)
		if err != nil {
			t.Fatalf("NewOpenRouterProvider: %v", err)
		}
		return llm.NewClient(provider, cfg, nil)
	}

	t.Run("429 twice then success ends Done", func(t *testing.T) {
		var calls int32
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) <= 2 {
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
			resp := map[string]interface{}{
				"choices": []map[string]interface{}{
					{"message": map[string]string{"content": `{"summary": "ok", "quality_score": 8}`}},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		})

		cfg := config.DefaultConfig()
		resolver := rules.NewResolver(botDefaults(t), cfg.Rules.ProjectFile, nil)
		p := NewPipeline(cfg, resolver, client, nil)

		outcome, err := p.Run(context.Background(), Request{RepoPath: dir, BaseRef: "main", HeadRef: "feature"})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if outcome.State != StageDone {
			t.Errorf("State = %s, want %s", outcome.State, StageDone)
		}
	})

	t.Run("persistent 503 ends Failed(reviewed, transient)", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		})

		cfg := config.DefaultConfig()
		cfg.Provider.MaxRetries = 1 // keep backoff waits short
		resolver := rules.NewResolver(botDefaults(t), cfg.Rules.ProjectFile, nil)
		p := NewPipeline(cfg, resolver, client, nil)

		_, err := p.Run(context.Background(), Request{RepoPath: dir, BaseRef: "main", HeadRef: "feature"})

		var stageErr *StageError
		if !errors.As(err, &stageErr) || stageErr.Stage != StageReviewed {
			t.Fatalf("expected failure at %s, got %v", StageReviewed, err)
		}
		var llmErr *llm.LLMError
		if !errors.As(err, &llmErr) || !llmErr.Transient() {
			t.Errorf("expected transient LLMError, got %v", err)
		}
	})
}
