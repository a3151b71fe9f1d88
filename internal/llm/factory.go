package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/storyloom/loom/internal/config"
)

// NewAnalyzer builds the semantic analyzer for the configured provider. An
// empty provider returns a nil-client analyzer that reports ErrUnavailable,
// which the slow verification tier treats as "degrade to local checks".
func NewAnalyzer(ctx context.Context, cfg config.LLMConfig) (*SemanticAnalyzer, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "":
		return NewSemanticAnalyzer(nil), nil

	case "openai":
		return NewSemanticAnalyzer(NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL)), nil

	case "claude":
		return NewSemanticAnalyzer(NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)), nil

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		return NewSemanticAnalyzer(c), nil

	case "ollama":
		// Ollama speaks the OpenAI-compatible API; route through that client.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = strings.TrimRight(baseURL, "/") + "/v1"
		}
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // ignored by Ollama, required by the client
		}
		return NewSemanticAnalyzer(NewOpenAIClient(apiKey, cfg.Model, baseURL)), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
