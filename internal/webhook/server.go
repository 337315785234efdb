// Package webhook is the HTTP surface that turns GitLab merge-request
// events into pipeline runs. It is thin plumbing: payload decoding,
// token checking, and response shaping live here; everything with
// actual logic lives in the pipeline.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kadvik/mrev/internal/config"
	"github.com/kadvik/mrev/internal/git"
	"github.com/kadvik/mrev/internal/gitlab"
	"github.com/kadvik/mrev/internal/logger"
	"github.com/kadvik/mrev/internal/metrics"
	"github.com/kadvik/mrev/internal/prompt"
	"github.com/kadvik/mrev/internal/review"
)

const maxPayloadBytes = 1 << 20 // GitLab MR payloads are small; 1MB is generous

// Server serves the webhook endpoints.
type Server struct {
	cfg      *config.Config
	pipeline *review.Pipeline
	poster   *gitlab.Client
	log      *logger.Logger
	httpSrv  *http.Server
}

// NewServer creates the webhook server. poster may be nil; reviews
// are then returned in the HTTP response but never posted to GitLab.
func NewServer(cfg *config.Config, pipeline *review.Pipeline, poster *gitlab.Client, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		cfg:      cfg,
		pipeline: pipeline,
		poster:   poster,
		log:      log.WithPrefix("webhook"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /gitlab", s.handleGitLab)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /test", s.handleTest)

	s.httpSrv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// ListenAndServe serves until ctx is cancelled, then drains with the
// configured shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", s.cfg.Server.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down, draining for up to %s", s.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "mrev",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	data, err := metrics.Global().Export()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "metrics export failed"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleGitLab accepts a merge-request event, runs the pipeline over
// the configured local checkout, and returns the rendered review.
func (s *Server) handleGitLab(w http.ResponseWriter, r *http.Request) {
	if !s.checkToken(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "unauthorized"})
		return
	}

	var event mergeRequestEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes)).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "failed",
			"error":  "malformed payload: " + err.Error(),
		})
		return
	}

	if event.ObjectKind != "merge_request" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "not a merge request event"})
		return
	}
	if !reviewableActions[event.ObjectAttributes.Action] {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "action " + event.ObjectAttributes.Action})
		return
	}

	repoPath, err := s.checkoutPath(event.Project.PathWithNamespace)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "failed", "error": err.Error()})
		return
	}

	headRef := event.ObjectAttributes.LastCommit.ID
	if headRef == "" {
		headRef = event.ObjectAttributes.SourceBranch
	}

	outcome, err := s.pipeline.Run(r.Context(), review.Request{
		RepoPath:     repoPath,
		BaseRef:      event.ObjectAttributes.TargetBranch,
		HeadRef:      headRef,
		Project:      event.Project.PathWithNamespace,
		SourceBranch: event.ObjectAttributes.SourceBranch,
		TargetBranch: event.ObjectAttributes.TargetBranch,
	})
	if err != nil {
		status, body := failureResponse(err)
		writeJSON(w, status, body)
		return
	}

	s.postNote(r.Context(), &event, outcome.Markdown)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "processed",
		"review": outcome.Markdown,
	})
}

// handleTest runs the pipeline tail over a built-in sample diff so
// deployments can be smoke-checked without a repository or a webhook.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.pipeline.ReviewFiles(r.Context(), sampleFiles(), prompt.Metadata{
		Project:      "mrev/smoke-test",
		SourceBranch: "feature",
		TargetBranch: "main",
	})
	if err != nil {
		status, body := failureResponse(err)
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"review":     outcome.Markdown,
		"raw_review": outcome.Result,
	})
}

// checkToken validates X-Gitlab-Token when a secret is configured.
func (s *Server) checkToken(r *http.Request) bool {
	secret := s.cfg.Server.WebhookSecret
	if secret == "" {
		return true
	}
	got := r.Header.Get("X-Gitlab-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// checkoutPath maps a project path to its local checkout under the
// configured root. The project path is sanitized so a crafted payload
// cannot escape the root.
func (s *Server) checkoutPath(projectPath string) (string, error) {
	if s.cfg.Git.ReposRoot == "" {
		return "", errors.New("git.repos_root is not configured")
	}
	if projectPath == "" {
		return "", errors.New("payload carries no project path")
	}

	for _, part := range strings.Split(projectPath, "/") {
		if part == ".." || part == "" || part == "." {
			return "", fmt.Errorf("project path %q escapes the checkout root", projectPath)
		}
	}
	return filepath.Join(s.cfg.Git.ReposRoot, filepath.FromSlash(projectPath)), nil
}

// postNote posts the review back to the merge request when posting is
// configured. Failures are logged, not fatal: the review succeeded.
func (s *Server) postNote(ctx context.Context, event *mergeRequestEvent, markdown string) {
	if !s.poster.Enabled() {
		return
	}
	err := s.poster.PostMergeRequestNote(ctx, event.Project.ID, event.ObjectAttributes.IID, markdown)
	if err != nil {
		metrics.IncCounter("webhook.note_post_failures")
		s.log.Warn("posting review to MR %d failed: %v", event.ObjectAttributes.IID, err)
		return
	}
	s.log.Info("posted review to %s!%d", event.Project.PathWithNamespace, event.ObjectAttributes.IID)
}

// failureResponse maps a pipeline error to an HTTP response carrying
// the failed stage and reason, never a stack trace.
func failureResponse(err error) (int, map[string]string) {
	status := http.StatusInternalServerError

	var stageErr *review.StageError
	if errors.As(err, &stageErr) {
		var repoErr *git.RepositoryError
		if errors.As(err, &repoErr) {
			status = http.StatusBadRequest
		}
		return status, map[string]string{
			"status": "failed",
			"stage":  string(stageErr.Stage),
			"error":  stageErr.Err.Error(),
		}
	}

	return status, map[string]string{"status": "failed", "error": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sampleFiles is the built-in diff served by POST /test.
func sampleFiles() []git.FileDiff {
	const diff = `@@ -1,4 +1,6 @@
 def process(items):
-    result = []
-    for i in items:
-        result.append(i * 2)
+    result = [i * 2 for i in items]
+    total = sum(result)
+    print(f"processed {len(result)} items, total {total}")
     return result`

	return []git.FileDiff{{
		Path:        "sample.py",
		Language:    "python",
		Status:      git.FileModified,
		UnifiedDiff: diff,
		Additions:   4,
		Deletions:   3,
	}}
}
