package llm

import (
	"fmt"

	"github.com/kadvik/mrev/internal/config"
)

// NewProvider creates the backend named in config.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.Provider.Name {
	case "openrouter":
		return NewOpenRouterProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %q (supported: openrouter, ollama)", cfg.Provider.Name)
	}
}
