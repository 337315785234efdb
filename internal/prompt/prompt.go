// Package prompt turns a collected diff and resolved rules into the
// request payload sent to the LLM backend.
//
// Building is deterministic: the same ReviewRequest always yields the
// same prompt text. When the estimated token size exceeds the budget,
// whole file blocks are dropped from the tail and the dropped paths
// are disclosed both in the prompt and on the Prompt value.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kadvik/mrev/internal/git"
	"github.com/kadvik/mrev/internal/rules"
	"github.com/kadvik/mrev/internal/tokenizer"
)

// Metadata identifies the merge request under review.
type Metadata struct {
	Project      string
	SourceBranch string
	TargetBranch string
	BaseSHA      string
	HeadSHA      string
}

// ReviewRequest aggregates everything one review run feeds the
// builder. Transient, built once per event.
type ReviewRequest struct {
	Rules rules.RuleSet
	Files []git.FileDiff
	Meta  Metadata
}

// Prompt is the built request payload.
type Prompt struct {
	// System is the role and output-contract instruction.
	System string

	// User carries the rule summary and the file diff blocks.
	User string

	// OmittedFiles lists paths dropped to meet the token budget, in
	// diff order. The renderer discloses them in the final report.
	OmittedFiles []string

	// EstimatedTokens is the builder's estimate for System plus User.
	EstimatedTokens int
}

// systemInstruction describes the reviewer role and the JSON response
// contract. The schema text here mirrors the document the client
// validates against.
const systemInstruction = `You are an expert code reviewer analyzing a GitLab merge request.
Review the changed files against the stated rules and respond with a single JSON object, no prose outside it:

{
  "summary": "one-paragraph overall assessment",
  "quality_score": <integer 1-10>,
  "issues": [{"file": "path", "description": "what is wrong", "severity": "info|warning|error|critical"}],
  "suggestions": ["actionable improvement"],
  "security_concerns": ["security problem, if any"],
  "performance_notes": ["performance observation, if any"]
}

Report only real problems, not nitpicks. Use empty arrays for sections with nothing to report.`

// Builder builds prompts under a token budget.
type Builder struct {
	budget    int
	estimator *tokenizer.Estimator
}

// NewBuilder creates a builder. model tunes the token estimator;
// tokenBudget <= 0 disables bounding.
func NewBuilder(model string, tokenBudget int) *Builder {
	return &Builder{
		budget:    tokenBudget,
		estimator: tokenizer.NewEstimatorForModel(model),
	}
}

// Build constructs the prompt for one review request.
func (b *Builder) Build(req *ReviewRequest) *Prompt {
	var sb strings.Builder

	writeMetadata(&sb, req.Meta)
	writeRules(&sb, req.Rules)

	budget := tokenizer.NewBudget(b.budget)
	budget.Use(b.estimator.EstimateTokens(systemInstruction))
	budget.Use(b.estimator.EstimateTokens(sb.String()))

	// Blocks are dropped from the tail: once one file does not fit,
	// every later file is dropped too, keeping the included set a
	// prefix of the diff order.
	var omitted []string
	for i, f := range req.Files {
		block := fileBlock(f)
		cost := b.estimator.EstimateTokens(block)
		if !budget.CanFit(cost) {
			for _, rest := range req.Files[i:] {
				omitted = append(omitted, rest.Path)
			}
			break
		}
		budget.Use(cost)
		sb.WriteString(block)
	}

	if len(omitted) > 0 {
		sb.WriteString("\n## Omitted Files\n\n")
		sb.WriteString("The following changed files were omitted to fit the size limit and were NOT reviewed:\n")
		for _, path := range omitted {
			fmt.Fprintf(&sb, "- %s\n", path)
		}
	}

	user := sb.String()
	return &Prompt{
		System:          systemInstruction,
		User:            user,
		OmittedFiles:    omitted,
		EstimatedTokens: b.estimator.EstimateTokens(systemInstruction) + b.estimator.EstimateTokens(user),
	}
}

// writeMetadata writes the merge-request header block.
func writeMetadata(sb *strings.Builder, m Metadata) {
	sb.WriteString("## Merge Request\n\n")
	if m.Project != "" {
		fmt.Fprintf(sb, "- Project: %s\n", m.Project)
	}
	if m.SourceBranch != "" || m.TargetBranch != "" {
		fmt.Fprintf(sb, "- Branches: %s -> %s\n", m.SourceBranch, m.TargetBranch)
	}
	if m.BaseSHA != "" || m.HeadSHA != "" {
		fmt.Fprintf(sb, "- Commits: %s..%s\n", m.BaseSHA, m.HeadSHA)
	}
	sb.WriteString("\n")
}

// writeRules serializes the rule set. Map iteration is sorted so the
// output is deterministic.
func writeRules(sb *strings.Builder, rs rules.RuleSet) {
	sb.WriteString("## Review Rules\n\n")

	fmt.Fprintf(sb, "- Security checks: %s\n", enabled(rs.SecurityChecks))
	fmt.Fprintf(sb, "- Performance checks: %s\n", enabled(rs.PerformanceChecks))
	fmt.Fprintf(sb, "- Code quality checks: %s\n", enabled(rs.CodeQualityChecks))

	if len(rs.LanguageRules) > 0 {
		langs := make([]string, 0, len(rs.LanguageRules))
		for lang := range rs.LanguageRules {
			langs = append(langs, lang)
		}
		sort.Strings(langs)

		sb.WriteString("\nLanguage-specific rules:\n")
		for _, lang := range langs {
			fmt.Fprintf(sb, "- %s: %s\n", lang, strings.Join(rs.LanguageRules[lang], ", "))
		}
	}

	if len(rs.CustomRules) > 0 {
		sb.WriteString("\nCustom rules:\n")
		for _, rule := range rs.CustomRules {
			fmt.Fprintf(sb, "- %s\n", rule)
		}
	}
	sb.WriteString("\n")
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

// fileBlock renders one FileDiff section.
func fileBlock(f git.FileDiff) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "### File: %s (%s)\n\n", f.Path, f.Language)

	switch {
	case f.IsBinary:
		sb.WriteString("Binary file, not analyzed.\n\n")
		return sb.String()
	case f.Status == git.FileDeleted:
		sb.WriteString("File deleted in this merge request.\n\n")
	case f.Status == git.FileRenamed && f.OldPath != "":
		fmt.Fprintf(&sb, "Renamed from %s.\n\n", f.OldPath)
	}

	if f.IsTruncated {
		sb.WriteString("Note: diff truncated, the file exceeds the size limit.\n\n")
	}

	sb.WriteString("BEGIN DIFF\n")
	sb.WriteString(f.UnifiedDiff)
	if !strings.HasSuffix(f.UnifiedDiff, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("END DIFF\n\n")

	return sb.String()
}
