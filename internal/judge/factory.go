package judge

import (
	"context"
	"os"
	"strings"
)

// NewFromEnv returns a Client based on environment variables.
// Supported providers:
//   - LLM_PROVIDER=gemini|openai|anthropic
//   - Gemini:    GOOGLE_API_KEY, optional LLM_MODEL
//   - OpenAI:    OPENAI_API_KEY, optional LLM_MODEL, OPENAI_API_BASE
//   - Anthropic: ANTHROPIC_API_KEY, optional LLM_MODEL
//
// If nothing is configured, returns a Mock so the pipeline stays runnable.
func NewFromEnv(ctx context.Context) Client {
	prov := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	switch prov {
	case "gemini":
		if key := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); key != "" {
			if c, err := NewGemini(ctx, key, modelWithDefault("gemini-1.5-flash")); err == nil {
				return c
			}
		}
	case "openai":
		if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
			return NewOpenAI(key, modelWithDefault("gpt-4o-mini"), os.Getenv("OPENAI_API_BASE"))
		}
	case "anthropic":
		if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
			return NewAnthropic(key, modelWithDefault("claude-3-5-sonnet-latest"))
		}
	}

	// Auto-detect by key presence when the provider is not pinned.
	if key := strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")); key != "" {
		if c, err := NewGemini(ctx, key, modelWithDefault("gemini-1.5-flash")); err == nil {
			return c
		}
	}
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return NewOpenAI(key, modelWithDefault("gpt-4o-mini"), os.Getenv("OPENAI_API_BASE"))
	}
	if key := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); key != "" {
		return NewAnthropic(key, modelWithDefault("claude-3-5-sonnet-latest"))
	}

	return &Mock{}
}

func modelWithDefault(def string) string {
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		return v
	}
	return def
}
