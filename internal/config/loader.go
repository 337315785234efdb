package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const configFileName = ".mrev.yaml"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName(".mrev")
	v.SetConfigType("yaml")

	// Search paths in order of priority
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	v.AddConfigPath("/etc/mrev")

	v.SetEnvPrefix("MREV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// SetConfigFile sets a specific config file to use.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
	l.v.SetConfigFile(path)
}

// Load loads the configuration from all sources.
// Priority (highest to lowest):
// 1. Explicit config file (if set via SetConfigFile)
// 2. Environment variables (MREV_*)
// 3. Config file from search paths (.mrev.yaml)
// 4. Default values
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	l.setDefaults(cfg)

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults apply
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets all default values in viper.
func (l *Loader) setDefaults(cfg *Config) {
	l.v.SetDefault("provider.name", cfg.Provider.Name)
	l.v.SetDefault("provider.model", cfg.Provider.Model)
	l.v.SetDefault("provider.base_url", cfg.Provider.BaseURL)
	l.v.SetDefault("provider.api_key", cfg.Provider.APIKey)
	l.v.SetDefault("provider.timeout", cfg.Provider.Timeout)
	l.v.SetDefault("provider.max_tokens", cfg.Provider.MaxTokens)
	l.v.SetDefault("provider.temperature", cfg.Provider.Temperature)
	l.v.SetDefault("provider.max_retries", cfg.Provider.MaxRetries)
	l.v.SetDefault("provider.rate_limit_rps", cfg.Provider.RateLimitRPS)
	l.v.SetDefault("provider.max_concurrent", cfg.Provider.MaxConcurrent)

	l.v.SetDefault("git.repo_path", cfg.Git.RepoPath)
	l.v.SetDefault("git.repos_root", cfg.Git.ReposRoot)
	l.v.SetDefault("git.base_branch", cfg.Git.BaseBranch)
	l.v.SetDefault("git.context_lines", cfg.Git.ContextLines)

	l.v.SetDefault("review.prompt_token_budget", cfg.Review.PromptTokenBudget)

	l.v.SetDefault("rules.project_file", cfg.Rules.ProjectFile)
	l.v.SetDefault("rules.bot_file", cfg.Rules.BotFile)

	l.v.SetDefault("server.addr", cfg.Server.Addr)
	l.v.SetDefault("server.webhook_secret", cfg.Server.WebhookSecret)
	l.v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	l.v.SetDefault("server.pprof_addr", cfg.Server.PprofAddr)

	l.v.SetDefault("gitlab.base_url", cfg.GitLab.BaseURL)
	l.v.SetDefault("gitlab.token", cfg.GitLab.Token)
	l.v.SetDefault("gitlab.timeout", cfg.GitLab.Timeout)

	l.v.SetDefault("log.level", cfg.Log.Level)
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance for advanced usage.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// FindConfigFile searches for a config file and returns its path.
// Returns empty string if no config file is found.
func FindConfigFile() string {
	if _, err := os.Stat(configFileName); err == nil {
		if abs, err := filepath.Abs(configFileName); err == nil {
			return abs
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	etcPath := "/etc/mrev/" + configFileName
	if _, err := os.Stat(etcPath); err == nil {
		return etcPath
	}

	return ""
}
