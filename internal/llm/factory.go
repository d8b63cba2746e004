package llm

import (
	"fmt"
	"os"
	"strings"
)

// NewClient constructs a Client from a ClientConfig. An APIKey that starts
// with '$' is resolved as an environment variable name, the same
// indirection the teacher's config layer uses for secrets (spec.md §6).
func NewClient(cfg ClientConfig) (Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		return nil, fmt.Errorf("llm: provider is required")
	}
	cfg.APIKey = resolveAPIKey(cfg.APIKey)

	switch provider {
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "openai", "openai-compatible", "ollama", "vllm":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("llm: base_url is required for provider %q", provider)
		}
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}

func resolveAPIKey(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "$") {
		return os.Getenv(strings.TrimPrefix(s, "$"))
	}
	return s
}
