package llm

import (
	"fmt"
	"strings"

	"github.com/chuckie/autopr/internal/adapters/llm/mock"
	"github.com/chuckie/autopr/internal/adapters/llm/openai"
	"github.com/chuckie/autopr/internal/ports"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// NewFromConfig creates a new LLM provider from configuration. Every remote
// provider speaks the OpenAI chat completions protocol.
func NewFromConfig(provider, apiKey, baseURL, ollamaURL string) (ports.LLM, error) {
	switch provider {
	case "openai":
		return openai.NewClient(apiKey, baseURL)
	case "groq":
		if baseURL == "" {
			baseURL = GroqBaseURL
		}
		return openai.NewNamedClient("groq", apiKey, baseURL)
	case "ollama":
		return openai.NewNamedClient("ollama", "ollama", strings.TrimRight(ollamaURL, "/")+"/v1")
	case "mock":
		return mock.NewClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}
