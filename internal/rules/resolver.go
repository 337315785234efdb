package rules

import (
	"github.com/kadvik/mrev/internal/logger"
)

// Merge applies project overrides on top of the bot defaults and
// returns a fresh RuleSet. Scalar fields override field-by-field,
// language lists replace the bot list for that language only, and
// custom rules are appended after the bot's.
func Merge(bot RuleSet, ov Overrides) RuleSet {
	out := bot.Clone()

	if ov.MaxFileSize != nil && *ov.MaxFileSize > 0 {
		out.MaxFileSize = *ov.MaxFileSize
	}
	if ov.SecurityChecks != nil {
		out.SecurityChecks = *ov.SecurityChecks
	}
	if ov.PerformanceChecks != nil {
		out.PerformanceChecks = *ov.PerformanceChecks
	}
	if ov.CodeQualityChecks != nil {
		out.CodeQualityChecks = *ov.CodeQualityChecks
	}

	if len(ov.LanguageRules) > 0 {
		if out.LanguageRules == nil {
			out.LanguageRules = make(map[string][]string, len(ov.LanguageRules))
		}
		for lang, names := range ov.LanguageRules {
			copied := make([]string, len(names))
			copy(copied, names)
			out.LanguageRules[lang] = copied
		}
	}

	if len(ov.CustomRules) > 0 {
		out.CustomRules = append(out.CustomRules, ov.CustomRules...)
	}

	return out
}

// Resolver produces the effective rule set for a repository. The bot
// defaults are loaded once at process start and shared read-only.
type Resolver struct {
	bot         RuleSet
	projectFile string
	log         *logger.Logger
}

// NewResolver creates a resolver over the given bot defaults.
func NewResolver(bot RuleSet, projectFile string, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{
		bot:         bot,
		projectFile: projectFile,
		log:         log.WithPrefix("rules"),
	}
}

// Bot returns a copy of the bot defaults.
func (r *Resolver) Bot() RuleSet {
	return r.bot.Clone()
}

// Resolve returns the effective rules for the repository at repoPath.
// A missing override file yields the bot defaults silently; a broken
// one yields the bot defaults with a warning. Resolution never fails.
func (r *Resolver) Resolve(repoPath string) RuleSet {
	ov, err := LoadProjectOverrides(repoPath, r.projectFile)
	if err != nil {
		r.log.Warn("falling back to bot defaults: %v", err)
		return r.bot.Clone()
	}
	if ov == nil {
		return r.bot.Clone()
	}

	r.log.Debug("applying project overrides from %s", r.projectFile)
	return Merge(r.bot, *ov)
}
