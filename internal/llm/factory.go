package llm

import (
	"fmt"

	"github.com/scrypster/toolpilot/internal/config"
)

// NewChatCompleter creates the ChatCompleter for the configured provider.
// Returns (nil, nil) when no model is configured: provider "none", or
// "openai" without an API key. Callers treat a nil completer as "LLM not
// available".
func NewChatCompleter(cfg config.LLMConfig) (ChatCompleter, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, nil
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			Temperature: cfg.Temperature,
		}), nil
	case config.ProviderOllama:
		// Ollama serves the same chat completions API.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "qwen2.5:7b"
		}
		return NewOpenAIClient(OpenAIConfig{
			APIKey:      cfg.APIKey,
			Model:       model,
			BaseURL:     baseURL,
			Timeout:     cfg.Timeout,
			Temperature: cfg.Temperature,
		}), nil
	case config.ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}

// NewAssistant creates the hosted assistant client, or returns nil when no
// assistant URL is configured.
func NewAssistant(cfg config.AssistantConfig) Assistant {
	if cfg.URL == "" {
		return nil
	}
	return NewAssistantClient(AssistantConfig{
		URL:         cfg.URL,
		APIKey:      cfg.APIKey,
		AssistantID: cfg.AssistantID,
		Timeout:     cfg.Timeout,
	})
}
