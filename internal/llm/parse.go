package llm

import (
	_ "embed"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/review_schema.json
var reviewSchemaJSON string

// reviewSchema is compiled once at init. The schema document is part
// of the binary, so a compile failure is a build defect, not a runtime
// condition.
var reviewSchema = jsonschema.MustCompileString("review_schema.json", reviewSchemaJSON)

// SchemaJSON returns the response schema document sent to the backend.
func SchemaJSON() string {
	return reviewSchemaJSON
}

// ParsedResponse is the tagged result of classifying raw model output:
// exactly one of Structured or Freeform is set.
type ParsedResponse struct {
	// Structured holds the result when the backend honored the schema.
	Structured *ReviewResult

	// Freeform holds the raw text when it did not.
	Freeform string
}

// IsStructured reports which variant is populated.
func (p ParsedResponse) IsStructured() bool {
	return p.Structured != nil
}

// Parse classifies raw model output. Output that is valid JSON and
// passes schema validation becomes Structured; anything else is
// demoted to Freeform for heuristic parsing.
func Parse(raw string) ParsedResponse {
	candidate := extractJSON(raw)
	if candidate == "" {
		return ParsedResponse{Freeform: raw}
	}

	var v interface{}
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return ParsedResponse{Freeform: raw}
	}
	if err := reviewSchema.Validate(v); err != nil {
		return ParsedResponse{Freeform: raw}
	}

	var result ReviewResult
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return ParsedResponse{Freeform: raw}
	}
	result.Normalize()
	return ParsedResponse{Structured: &result}
}

// extractJSON pulls a JSON object out of model output. Models often
// wrap JSON in a fenced code block even when asked not to.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if fenced := fenceRe.FindStringSubmatch(s); fenced != nil {
		s = strings.TrimSpace(fenced[1])
	}

	if !strings.HasPrefix(s, "{") {
		return ""
	}
	return s
}

var (
	fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

	// Score patterns, most specific first: "Quality Score: 7/10",
	// "Score: 7", bare "7/10".
	scorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)quality\s+score[:\s]+(\d+)`),
		regexp.MustCompile(`(?i)\bscore[:\s]+(\d+)`),
		regexp.MustCompile(`\b(\d+)\s*/\s*10\b`),
	}

	headerRe = regexp.MustCompile(`(?i)^#{0,4}\s*(summary|issues?(?:\s+found)?|suggestions?|security(?:\s+concerns)?|performance(?:\s+notes)?|quality\s+score)\s*:?\s*$`)
	bulletRe = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.*)`)

	// A line that is nothing but a score ("Quality Score: 7/10") is a
	// header variant, not narrative content.
	scoreLineRe = regexp.MustCompile(`(?i)^#{0,4}\s*(?:quality\s+)?score[:\s]+\d+\s*(?:/\s*10)?\s*$`)
)

// fallbackScore is used when free-form output carries no recognizable
// numeric score.
const fallbackScore = 5

// ParseFreeform derives a ReviewResult from free-form model text: the
// score comes from a numeric pattern search (default 5 when absent),
// narrative text is split into sections by recognizable headers, and
// sections not found stay empty.
func ParseFreeform(text string) *ReviewResult {
	result := &ReviewResult{
		QualityScore:     extractScore(text),
		Issues:           []Issue{},
		Suggestions:      []string{},
		SecurityConcerns: []string{},
		PerformanceNotes: []string{},
	}

	section := "summary"
	var summaryLines []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := headerRe.FindStringSubmatch(trimmed); m != nil {
			section = normalizeHeader(m[1])
			continue
		}
		if scoreLineRe.MatchString(trimmed) {
			continue
		}

		item := trimmed
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			item = strings.TrimSpace(m[1])
		}

		switch section {
		case "summary":
			summaryLines = append(summaryLines, trimmed)
		case "issues":
			result.Issues = append(result.Issues, Issue{
				Description: item,
				Severity:    SeverityWarning,
			})
		case "suggestions":
			result.Suggestions = append(result.Suggestions, item)
		case "security":
			result.SecurityConcerns = append(result.SecurityConcerns, item)
		case "performance":
			result.PerformanceNotes = append(result.PerformanceNotes, item)
		case "score":
			// Consumed by extractScore already
		}
	}

	result.Summary = strings.Join(summaryLines, " ")
	result.Normalize()
	return result
}

func normalizeHeader(h string) string {
	switch strings.ToLower(strings.Fields(h)[0]) {
	case "summary":
		return "summary"
	case "issue", "issues":
		return "issues"
	case "suggestion", "suggestions":
		return "suggestions"
	case "security":
		return "security"
	case "performance":
		return "performance"
	case "quality":
		return "score"
	}
	return "summary"
}

// extractScore searches for a numeric score pattern. Values outside
// [1,10] are clamped later by Normalize.
func extractScore(text string) int {
	for _, re := range scorePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return fallbackScore
}
