package prompt

import (
	"strings"
	"testing"

	"github.com/kadvik/mrev/internal/git"
	"github.com/kadvik/mrev/internal/rules"
)

func testRules() rules.RuleSet {
	return rules.RuleSet{
		MaxFileSize:       1000,
		SecurityChecks:    true,
		PerformanceChecks: true,
		CodeQualityChecks: true,
		LanguageRules: map[string][]string{
			"python": {"check_imports", "check_docstrings"},
			"go":     {"check_errors"},
		},
		CustomRules: []string{"prefer small functions"},
	}
}

func testRequest() *ReviewRequest {
	return &ReviewRequest{
		Rules: testRules(),
		Files: []git.FileDiff{
			{
				Path:        "foo.py",
				Language:    "python",
				Status:      git.FileModified,
				UnifiedDiff: "@@ -1,3 +1,4 @@\n import os\n+import sys\n def main():\n     pass",
			},
			{
				Path:        "bar.go",
				Language:    "go",
				Status:      git.FileAdded,
				UnifiedDiff: "@@ -0,0 +1,3 @@\n+package bar\n+\n+func Bar() {}",
			},
		},
		Meta: Metadata{
			Project:      "group/repo",
			SourceBranch: "feature",
			TargetBranch: "main",
			BaseSHA:      "abc123",
			HeadSHA:      "def456",
		},
	}
}

func TestBuildContainsAllSections(t *testing.T) {
	b := NewBuilder("openai/gpt-4-turbo-preview", 0)
	p := b.Build(testRequest())

	if !strings.Contains(p.System, "code reviewer") {
		t.Error("system instruction missing reviewer role")
	}
	if !strings.Contains(p.System, "quality_score") {
		t.Error("system instruction missing output schema description")
	}

	for _, want := range []string{
		"## Merge Request",
		"- Project: group/repo",
		"- Branches: feature -> main",
		"## Review Rules",
		"- Security checks: enabled",
		"- go: check_errors",
		"- python: check_imports, check_docstrings",
		"- prefer small functions",
		"### File: foo.py (python)",
		"### File: bar.go (go)",
		"BEGIN DIFF",
		"END DIFF",
		"+import sys",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if len(p.OmittedFiles) != 0 {
		t.Errorf("unexpected omitted files: %v", p.OmittedFiles)
	}
	if strings.Contains(p.User, "## Omitted Files") {
		t.Error("omitted-files section should not appear when nothing was dropped")
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder("openai/gpt-4-turbo-preview", 8000)

	first := b.Build(testRequest())
	for i := 0; i < 5; i++ {
		p := b.Build(testRequest())
		if p.System != first.System || p.User != first.User {
			t.Fatal("same request produced different prompts")
		}
	}
}

func TestBuildSectionOrder(t *testing.T) {
	b := NewBuilder("", 0)
	p := b.Build(testRequest())

	rulesIdx := strings.Index(p.User, "## Review Rules")
	fooIdx := strings.Index(p.User, "### File: foo.py")
	barIdx := strings.Index(p.User, "### File: bar.go")

	if !(rulesIdx < fooIdx && fooIdx < barIdx) {
		t.Errorf("sections out of order: rules=%d foo=%d bar=%d", rulesIdx, fooIdx, barIdx)
	}
}

func TestBuildDropsTailOverBudget(t *testing.T) {
	req := testRequest()
	// Make the second file huge so it cannot fit a small budget.
	req.Files[1].UnifiedDiff = strings.Repeat("+some very long added line of code\n", 400)

	b := NewBuilder("", 600)
	p := b.Build(req)

	if len(p.OmittedFiles) != 1 || p.OmittedFiles[0] != "bar.go" {
		t.Fatalf("OmittedFiles = %v, want [bar.go]", p.OmittedFiles)
	}
	if !strings.Contains(p.User, "### File: foo.py") {
		t.Error("first file should survive the budget")
	}
	if strings.Contains(p.User, "### File: bar.go") {
		t.Error("dropped file block should not appear")
	}
	if !strings.Contains(p.User, "## Omitted Files") || !strings.Contains(p.User, "- bar.go") {
		t.Error("dropped paths must be disclosed in the prompt")
	}
}

func TestBuildDropKeepsPrefix(t *testing.T) {
	req := testRequest()
	big := strings.Repeat("+padding line\n", 300)
	req.Files = []git.FileDiff{
		{Path: "a.go", Language: "go", UnifiedDiff: big},
		{Path: "b.go", Language: "go", UnifiedDiff: big},
		{Path: "c.go", Language: "go", UnifiedDiff: "+one line"},
	}

	b := NewBuilder("", 1600)
	p := b.Build(req)

	// Once b.go fails to fit, c.go is dropped as well even though it
	// would fit on its own: included files stay a prefix of diff order.
	if len(p.OmittedFiles) != 2 {
		t.Fatalf("OmittedFiles = %v, want [b.go c.go]", p.OmittedFiles)
	}
	if p.OmittedFiles[0] != "b.go" || p.OmittedFiles[1] != "c.go" {
		t.Errorf("OmittedFiles = %v, want [b.go c.go]", p.OmittedFiles)
	}
}

func TestBuildBinaryAndTruncatedMarkers(t *testing.T) {
	req := &ReviewRequest{
		Rules: testRules(),
		Files: []git.FileDiff{
			{Path: "logo.png", Language: "text", IsBinary: true},
			{Path: "big.py", Language: "python", UnifiedDiff: "@@ -1 +1 @@\n+x = 1", IsTruncated: true},
		},
	}

	p := NewBuilder("", 0).Build(req)

	if !strings.Contains(p.User, "Binary file, not analyzed.") {
		t.Error("binary files need an explicit marker")
	}
	if strings.Contains(p.User, "logo.png (text)\n\nBEGIN DIFF") {
		t.Error("binary files must not carry a diff block")
	}
	if !strings.Contains(p.User, "diff truncated") {
		t.Error("truncated files need a truncation notice")
	}
}
