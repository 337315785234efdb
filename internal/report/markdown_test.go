package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/kadvik/mrev/internal/llm"
)

func fullResult() *llm.ReviewResult {
	return &llm.ReviewResult{
		Summary:      "Solid change with two rough edges.",
		QualityScore: 7,
		Issues: []llm.Issue{
			{File: "foo.py", Description: "unused import", Severity: llm.SeverityWarning},
			{Description: "missing tests"},
		},
		Suggestions:      []string{"add a regression test"},
		SecurityConcerns: []string{"user input reaches exec()"},
		PerformanceNotes: []string{},
	}
}

func TestMarkdownContainsAllSections(t *testing.T) {
	md, err := (&MarkdownReporter{}).Generate(&Review{Result: fullResult()})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, want := range []string{
		"# Code Review",
		"## Summary",
		"Solid change with two rough edges.",
		"## Quality Score: 7/10",
		"## Issues Found",
		"**[WARNING]** `foo.py`: unused import",
		"- missing tests",
		"## Suggestions",
		"- add a regression test",
		"## Security Concerns",
		"- user input reaches exec()",
		"## Performance Notes",
		"None.",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

func TestMarkdownEmptySectionsStillRender(t *testing.T) {
	res := &llm.ReviewResult{QualityScore: 5}
	res.Normalize()

	md, err := (&MarkdownReporter{}).Generate(&Review{Result: res})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, header := range []string{
		"## Summary",
		"## Quality Score: 5/10",
		"## Issues Found",
		"## Suggestions",
		"## Security Concerns",
		"## Performance Notes",
	} {
		if !strings.Contains(md, header) {
			t.Errorf("empty result must still emit %q", header)
		}
	}

	if !strings.Contains(md, "No issues found.") {
		t.Error("empty issues section needs its placeholder")
	}
	if strings.Contains(md, "## Omitted Files") {
		t.Error("omitted-files section must only appear when files were dropped")
	}
}

func TestMarkdownDeterministic(t *testing.T) {
	rev := &Review{Result: fullResult(), OmittedFiles: []string{"big.sql"}}
	r := &MarkdownReporter{}

	first, err := r.Generate(rev)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := r.Generate(rev)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if again != first {
			t.Fatal("rendering the same result twice produced different output")
		}
	}
}

func TestMarkdownDisclosesOmittedFiles(t *testing.T) {
	rev := &Review{Result: fullResult(), OmittedFiles: []string{"big.sql", "vendor/lib.js"}}

	md, err := (&MarkdownReporter{}).Generate(rev)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.Contains(md, "## Omitted Files") {
		t.Fatal("dropped files must be disclosed")
	}
	for _, path := range rev.OmittedFiles {
		if !strings.Contains(md, "`"+path+"`") {
			t.Errorf("omitted path %q not disclosed", path)
		}
	}
}

func TestMarkdownNilResultIsRenderError(t *testing.T) {
	_, err := (&MarkdownReporter{}).Generate(&Review{})

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected *RenderError, got %v", err)
	}
}

func TestJSONReporter(t *testing.T) {
	rev := &Review{Result: fullResult(), OmittedFiles: []string{"big.sql"}}

	out, err := (&JSONReporter{Indent: true}).Generate(rev)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for _, want := range []string{
		`"quality_score": 7`,
		`"unused import"`,
		`"omitted_files"`,
		`"big.sql"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("json missing %q\n%s", want, out)
		}
	}
}

func TestNewReporter(t *testing.T) {
	for _, format := range AvailableFormats() {
		r, err := NewReporter(format)
		if err != nil {
			t.Errorf("NewReporter(%q): %v", format, err)
			continue
		}
		if r.Format() != format {
			t.Errorf("Format() = %q, want %q", r.Format(), format)
		}
	}

	if _, err := NewReporter("sarif"); err == nil {
		t.Error("unknown format should error")
	}
}
