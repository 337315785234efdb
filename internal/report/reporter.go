// Package report serializes a ReviewResult into its final output
// formats. Rendering is pure: the same input always produces the same
// bytes, and no section is ever omitted.
package report

import (
	"fmt"
	"io"

	"github.com/kadvik/mrev/internal/llm"
)

// Review is the unit a reporter renders: the structured result plus
// the paths that were dropped from the prompt and therefore never
// reviewed. Omissions must be disclosed in every format.
type Review struct {
	Result       *llm.ReviewResult
	OmittedFiles []string
}

// Reporter renders a Review in one output format.
type Reporter interface {
	// Generate renders the review as a string.
	Generate(rev *Review) (string, error)

	// Write renders the review to w.
	Write(rev *Review, w io.Writer) error

	// Format returns the format name.
	Format() string
}

// NewReporter creates a reporter for the given format.
func NewReporter(format string) (Reporter, error) {
	switch format {
	case "markdown", "md":
		return &MarkdownReporter{}, nil
	case "json":
		return &JSONReporter{Indent: true}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s (available: markdown, json)", format)
	}
}

// AvailableFormats returns the supported format names.
func AvailableFormats() []string {
	return []string{"markdown", "json"}
}

// RenderError reports rendering of an invalid Review. It indicates a
// programming error in the caller, not a runtime condition.
type RenderError struct {
	Reason string
}

func (e *RenderError) Error() string {
	return "render error: " + e.Reason
}
