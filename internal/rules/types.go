// Package rules resolves the effective review rule set for a run.
//
// Bot-wide defaults ship embedded in the binary; a repository may carry
// an override file (md.rbot by default) that adjusts individual fields.
// Resolution never fails the pipeline: a missing or malformed override
// file falls back to the bot defaults.
package rules

// RuleSet is the effective, merged configuration for one review run.
// Immutable after resolution.
type RuleSet struct {
	// MaxFileSize is the post-image line count above which a file's
	// diff is truncated
	MaxFileSize int `json:"max_file_size" yaml:"max_file_size"`

	// SecurityChecks asks the reviewer to flag security problems
	SecurityChecks bool `json:"security_checks" yaml:"security_checks"`

	// PerformanceChecks asks the reviewer to flag performance problems
	PerformanceChecks bool `json:"performance_checks" yaml:"performance_checks"`

	// CodeQualityChecks asks the reviewer to flag general quality problems
	CodeQualityChecks bool `json:"code_quality_checks" yaml:"code_quality_checks"`

	// LanguageRules maps a language name to its ordered rule names
	LanguageRules map[string][]string `json:"language_specific_rules" yaml:"language_specific_rules"`

	// CustomRules are free-form instructions appended to the prompt
	CustomRules []string `json:"custom_rules" yaml:"custom_rules"`
}

// Overrides is the partial rule document read from a project's override
// file. Pointer fields distinguish "absent" from zero values so that a
// project can explicitly disable a check.
type Overrides struct {
	MaxFileSize       *int                `json:"max_file_size"`
	SecurityChecks    *bool               `json:"security_checks"`
	PerformanceChecks *bool               `json:"performance_checks"`
	CodeQualityChecks *bool               `json:"code_quality_checks"`
	LanguageRules     map[string][]string `json:"language_specific_rules"`
	CustomRules       []string            `json:"custom_rules"`
}

// Clone returns a deep copy so that concurrent runs never share
// mutable rule state.
func (rs RuleSet) Clone() RuleSet {
	out := rs

	if rs.LanguageRules != nil {
		out.LanguageRules = make(map[string][]string, len(rs.LanguageRules))
		for lang, names := range rs.LanguageRules {
			copied := make([]string, len(names))
			copy(copied, names)
			out.LanguageRules[lang] = copied
		}
	}

	if rs.CustomRules != nil {
		out.CustomRules = make([]string, len(rs.CustomRules))
		copy(out.CustomRules, rs.CustomRules)
	}

	return out
}

// ConfigError reports an unreadable or malformed rule document. It is
// recoverable: callers fall back to the bot defaults.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return "rules config error: " + e.Path + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
