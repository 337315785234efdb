package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/kadvik/mrev/internal/llm"
)

// Placeholders for empty sections. Sections always render; absence of
// findings is stated, never implied by a missing header.
const (
	noIssuesPlaceholder = "No issues found."
	nonePlaceholder     = "None."
)

// MarkdownReporter renders the fixed Markdown report format posted as
// a merge-request comment.
type MarkdownReporter struct{}

func (r *MarkdownReporter) Format() string { return "markdown" }

// Generate renders the review as Markdown. Output is byte-identical
// for identical input.
func (r *MarkdownReporter) Generate(rev *Review) (string, error) {
	var sb strings.Builder
	if err := r.Write(rev, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Write renders the review to w. Every section header is always
// emitted; empty sections carry a placeholder line.
func (r *MarkdownReporter) Write(rev *Review, w io.Writer) error {
	if rev == nil || rev.Result == nil {
		return &RenderError{Reason: "nil review result"}
	}
	res := rev.Result

	fmt.Fprintf(w, "# Code Review\n\n")

	fmt.Fprintf(w, "## Summary\n\n")
	if summary := strings.TrimSpace(res.Summary); summary != "" {
		fmt.Fprintf(w, "%s\n\n", summary)
	} else {
		fmt.Fprintf(w, "No summary provided.\n\n")
	}

	fmt.Fprintf(w, "## Quality Score: %d/10\n\n", res.QualityScore)

	fmt.Fprintf(w, "## Issues Found\n\n")
	if len(res.Issues) == 0 {
		fmt.Fprintf(w, "%s\n\n", noIssuesPlaceholder)
	} else {
		for _, issue := range res.Issues {
			writeIssue(w, issue)
		}
		fmt.Fprintf(w, "\n")
	}

	writeList(w, "Suggestions", res.Suggestions)
	writeList(w, "Security Concerns", res.SecurityConcerns)
	writeList(w, "Performance Notes", res.PerformanceNotes)

	if len(rev.OmittedFiles) > 0 {
		fmt.Fprintf(w, "## Omitted Files\n\n")
		fmt.Fprintf(w, "These files exceeded the prompt size limit and were not reviewed:\n\n")
		for _, path := range rev.OmittedFiles {
			fmt.Fprintf(w, "- `%s`\n", path)
		}
		fmt.Fprintf(w, "\n")
	}

	return nil
}

// writeIssue renders one issue bullet with its severity and file tags.
func writeIssue(w io.Writer, issue llm.Issue) {
	fmt.Fprintf(w, "- ")
	if issue.Severity != "" {
		fmt.Fprintf(w, "**[%s]** ", strings.ToUpper(issue.Severity))
	}
	if issue.File != "" {
		fmt.Fprintf(w, "`%s`: ", issue.File)
	}
	fmt.Fprintf(w, "%s\n", issue.Description)
}

// writeList renders a bullet-list section, or its placeholder when
// empty.
func writeList(w io.Writer, header string, items []string) {
	fmt.Fprintf(w, "## %s\n\n", header)
	if len(items) == 0 {
		fmt.Fprintf(w, "%s\n\n", nonePlaceholder)
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "- %s\n", item)
	}
	fmt.Fprintf(w, "\n")
}
