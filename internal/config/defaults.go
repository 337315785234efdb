package config

import (
	"time"
)

// DefaultConfig returns a Config with sensible default values.
// The provider defaults target OpenRouter; the API key must come from
// the environment or a config file.
func DefaultConfig() *Config {
	return &Config{
		Provider: defaultProviderConfig(),
		Git:      defaultGitConfig(),
		Review: ReviewConfig{
			PromptTokenBudget: 16000,
		},
		Rules: RulesConfig{
			ProjectFile: "md.rbot",
		},
		Server: defaultServerConfig(),
		GitLab: defaultGitLabConfig(),
		Log:    LogConfig{Level: "info"},
	}
}

// defaultProviderConfig returns the default provider configuration.
func defaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Name:          "openrouter",
		Model:         "openai/gpt-4-turbo-preview",
		BaseURL:       "https://openrouter.ai/api/v1",
		Timeout:       60 * time.Second,
		MaxTokens:     2000,
		Temperature:   0.3,
		MaxRetries:    3,
		RateLimitRPS:  0,
		MaxConcurrent: 4,
	}
}

// defaultGitConfig returns the default git configuration.
func defaultGitConfig() GitConfig {
	return GitConfig{
		RepoPath:     ".",
		BaseBranch:   "main",
		ContextLines: 3,
	}
}

// defaultServerConfig returns the default server configuration.
func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8000",
		ShutdownTimeout: 10 * time.Second,
	}
}

// defaultGitLabConfig returns the default GitLab client configuration.
func defaultGitLabConfig() GitLabConfig {
	return GitLabConfig{
		BaseURL: "https://gitlab.com",
		Timeout: 15 * time.Second,
	}
}
