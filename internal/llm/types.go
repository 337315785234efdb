// Package llm sends review prompts to an LLM backend and parses the
// response into a ReviewResult.
//
// The backend is asked for a schema-conforming JSON response. When it
// honors the schema, the response is parsed directly; when it returns
// free text, a heuristic fallback parser extracts the same fields.
// Transient failures (timeouts, 429, 5xx) are retried with bounded
// backoff; other client errors propagate immediately.
package llm

import (
	"context"
	"fmt"
)

// Provider is one LLM backend. It turns a prompt into raw model text;
// the Client layered on top handles retries, rate limiting, and
// response parsing.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Complete sends the prompt and returns the raw model output.
	// Failures are reported as *LLMError so the caller can classify
	// them for retry.
	Complete(ctx context.Context, system, user string) (string, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}

// ReviewResult is the structured output of one review, prior to
// Markdown rendering.
type ReviewResult struct {
	Summary string `json:"summary"`

	// QualityScore is always present and clamped to [1,10]
	QualityScore int `json:"quality_score"`

	Issues           []Issue  `json:"issues"`
	Suggestions      []string `json:"suggestions"`
	SecurityConcerns []string `json:"security_concerns"`
	PerformanceNotes []string `json:"performance_notes"`
}

// Issue is one problem the reviewer found.
type Issue struct {
	File        string `json:"file,omitempty"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
}

// Severity values the response schema accepts.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Normalize clamps the score into [1,10] and replaces nil slices with
// empty ones so that every section renders, never as null.
func (r *ReviewResult) Normalize() {
	if r.QualityScore < 1 {
		r.QualityScore = 1
	}
	if r.QualityScore > 10 {
		r.QualityScore = 10
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	if r.SecurityConcerns == nil {
		r.SecurityConcerns = []string{}
	}
	if r.PerformanceNotes == nil {
		r.PerformanceNotes = []string{}
	}
}

// ErrorKind classifies an LLMError for retry decisions.
type ErrorKind int

const (
	// Transient failures (timeouts, 429, 5xx) are retried.
	Transient ErrorKind = iota
	// Fatal failures (other 4xx, bad credentials) are not.
	Fatal
)

func (k ErrorKind) String() string {
	if k == Transient {
		return "transient"
	}
	return "fatal"
}

// LLMError reports a failed backend call.
type LLMError struct {
	Kind       ErrorKind
	StatusCode int // 0 for network-level failures
	Err        error
}

func (e *LLMError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm error (%s, status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm error (%s): %v", e.Kind, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// Transient reports whether the error is worth retrying.
func (e *LLMError) Transient() bool {
	return e.Kind == Transient
}
