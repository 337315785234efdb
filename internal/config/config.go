// Package config handles all configuration management for mrev.
//
// Configuration is loaded from multiple sources in order of precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables (MREV_*)
// 3. Configuration file (.mrev.yaml)
// 4. Default values (lowest priority)
//
// The loaded Config is immutable by convention: it is built once at
// process start and passed explicitly into each pipeline run.
package config

import (
	"time"
)

// Config is the main configuration structure for mrev.
type Config struct {
	// Provider configures the LLM backend (OpenRouter, Ollama)
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`

	// Git configures repository access
	Git GitConfig `mapstructure:"git" yaml:"git"`

	// Review configures pipeline behavior
	Review ReviewConfig `mapstructure:"review" yaml:"review"`

	// Rules configures rule resolution
	Rules RulesConfig `mapstructure:"rules" yaml:"rules"`

	// Server configures the webhook HTTP server
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// GitLab configures the comment-posting client
	GitLab GitLabConfig `mapstructure:"gitlab" yaml:"gitlab"`

	// Log configures logging
	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// ProviderConfig configures the LLM backend.
type ProviderConfig struct {
	// Name is the provider name: "openrouter", "ollama"
	Name string `mapstructure:"name" yaml:"name"`

	// Model is the model identifier (e.g. "openai/gpt-4-turbo-preview")
	Model string `mapstructure:"model" yaml:"model"`

	// BaseURL is the API base URL
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// APIKey authenticates against the backend.
	// Prefer MREV_PROVIDER_API_KEY over the config file.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// Timeout bounds a single request to the backend
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// MaxTokens is the maximum tokens in the response
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`

	// Temperature controls sampling randomness
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`

	// MaxRetries bounds retry attempts for transient failures
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// RateLimitRPS is requests per second against the backend (0 = unlimited)
	RateLimitRPS int `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`

	// MaxConcurrent bounds simultaneous in-flight requests (0 = unlimited)
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`
}

// GitConfig configures repository access.
type GitConfig struct {
	// RepoPath is the repository for one-shot reviews (default: current directory)
	RepoPath string `mapstructure:"repo_path" yaml:"repo_path"`

	// ReposRoot is the directory holding local checkouts keyed by
	// project path; required for webhook-triggered reviews
	ReposRoot string `mapstructure:"repos_root" yaml:"repos_root"`

	// BaseBranch is the default comparison base (default: main)
	BaseBranch string `mapstructure:"base_branch" yaml:"base_branch"`

	// ContextLines is the unified diff context size
	ContextLines int `mapstructure:"context_lines" yaml:"context_lines"`
}

// ReviewConfig configures pipeline behavior.
type ReviewConfig struct {
	// PromptTokenBudget caps the estimated token size of a prompt;
	// file blocks are dropped from the tail once it is exceeded
	PromptTokenBudget int `mapstructure:"prompt_token_budget" yaml:"prompt_token_budget"`
}

// RulesConfig configures rule resolution.
type RulesConfig struct {
	// ProjectFile is the repository-relative override file name
	ProjectFile string `mapstructure:"project_file" yaml:"project_file"`

	// BotFile optionally replaces the built-in bot defaults
	// with an external JSON document
	BotFile string `mapstructure:"bot_file" yaml:"bot_file"`
}

// ServerConfig configures the webhook HTTP server.
type ServerConfig struct {
	// Addr is the listen address
	Addr string `mapstructure:"addr" yaml:"addr"`

	// WebhookSecret, when set, must match the X-Gitlab-Token header
	WebhookSecret string `mapstructure:"webhook_secret" yaml:"webhook_secret"`

	// ShutdownTimeout bounds the drain period on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// PprofAddr, when set, serves net/http/pprof on a side listener
	PprofAddr string `mapstructure:"pprof_addr" yaml:"pprof_addr"`
}

// GitLabConfig configures the comment-posting client.
type GitLabConfig struct {
	// BaseURL is the GitLab instance URL
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Token is the API token used to post merge request notes;
	// when empty, reviews are returned but never posted
	Token string `mapstructure:"token" yaml:"token"`

	// Timeout bounds a single API call
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
}

// Validate validates the configuration and returns an error if invalid.
// Provider credentials are checked at client construction, not here, so
// that read-only commands work without a key.
func (c *Config) Validate() error {
	validProviders := map[string]bool{"openrouter": true, "ollama": true}
	if !validProviders[c.Provider.Name] {
		return &ValidationError{Field: "provider.name", Message: "invalid provider, must be one of: openrouter, ollama"}
	}

	if c.Provider.Model == "" {
		return &ValidationError{Field: "provider.model", Message: "model is required"}
	}

	if c.Provider.Timeout <= 0 {
		return &ValidationError{Field: "provider.timeout", Message: "timeout must be positive"}
	}

	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return &ValidationError{Field: "provider.temperature", Message: "temperature must be in [0, 2]"}
	}

	if c.Provider.MaxRetries < 1 {
		return &ValidationError{Field: "provider.max_retries", Message: "max_retries must be at least 1"}
	}

	if c.Review.PromptTokenBudget < 1 {
		return &ValidationError{Field: "review.prompt_token_budget", Message: "prompt_token_budget must be positive"}
	}

	if c.Rules.ProjectFile == "" {
		return &ValidationError{Field: "rules.project_file", Message: "project_file is required"}
	}

	if c.Server.Addr == "" {
		return &ValidationError{Field: "server.addr", Message: "listen address is required"}
	}

	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + ": " + e.Message
}
