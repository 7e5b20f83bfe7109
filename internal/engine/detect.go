package engine

import (
	"fmt"

	"github.com/kalambet/bookwise/internal/config"
)

// Detect returns the Engine selected by cfg.Provider.
func Detect(cfg config.LLMConfig) (Engine, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIEngine(cfg.BaseURL, cfg.APIKey), nil
	case config.ProviderOllama:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return NewOllamaEngine(baseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
