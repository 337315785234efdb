// Package tokenizer estimates token counts so prompts stay inside the
// backend's context window without shipping a real tokenizer.
// Estimates are deliberately rough and err on the high side.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// defaultCharsPerToken is the rough English-prose ratio most models
// share.
const defaultCharsPerToken = 4.0

// codeDensityFactor inflates estimates for code-like text, which
// tokenizes denser than prose because of punctuation.
const codeDensityFactor = 1.3

// Estimator estimates token counts for text.
type Estimator struct {
	charsPerToken float64
}

// NewEstimator creates an estimator with the generic ratio.
func NewEstimator() *Estimator {
	return &Estimator{charsPerToken: defaultCharsPerToken}
}

// NewEstimatorForModel creates an estimator tuned for a model family.
func NewEstimatorForModel(model string) *Estimator {
	e := NewEstimator()
	switch {
	case strings.Contains(model, "claude"):
		e.charsPerToken = 3.5
	case strings.Contains(model, "llama"):
		e.charsPerToken = 4.5
	case strings.Contains(model, "qwen"):
		// CJK-heavy vocabulary, more tokens per character
		e.charsPerToken = 3.0
	}
	return e
}

// EstimateTokens estimates the token count for text.
func (e *Estimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	chars := utf8.RuneCountInString(text)
	estimate := float64(chars) / e.charsPerToken

	if isCodeLike(text) {
		estimate *= codeDensityFactor
	}

	n := int(estimate)
	if n < 1 {
		n = 1
	}
	return n
}

// codeIndicators are substrings whose presence suggests code. Three or
// more hits classify the text as code-like.
var codeIndicators = []string{
	"func ", "function ", "def ", "class ",
	"if ", "for ", "while ", "switch ",
	"import ", "require(", "return ",
	"{", "}", "(", ")",
	"=>", "->", "::", "//", "/*",
	"@@", "+++", "---",
}

func isCodeLike(text string) bool {
	lower := strings.ToLower(text)
	hits := 0
	for _, indicator := range codeIndicators {
		if strings.Contains(lower, indicator) {
			hits++
			if hits >= 3 {
				return true
			}
		}
	}
	return false
}

// Budget tracks remaining tokens while prompt blocks are appended.
// Not safe for concurrent use; each prompt build owns its Budget.
type Budget struct {
	max  int
	used int
}

// NewBudget creates a budget of max tokens. max <= 0 means unlimited.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// CanFit reports whether n more tokens fit.
func (b *Budget) CanFit(n int) bool {
	if b.max <= 0 {
		return true
	}
	return b.used+n <= b.max
}

// Use records n tokens as spent.
func (b *Budget) Use(n int) {
	b.used += n
}

// Used returns the tokens spent so far.
func (b *Budget) Used() int {
	return b.used
}

// Remaining returns the tokens left, or -1 when unlimited.
func (b *Budget) Remaining() int {
	if b.max <= 0 {
		return -1
	}
	if b.used > b.max {
		return 0
	}
	return b.max - b.used
}
