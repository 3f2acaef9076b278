package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chuckie/autopr/internal/domain"
	"github.com/chuckie/autopr/internal/observability"
	"github.com/chuckie/autopr/internal/ports"
)

// Client implements ports.LLM for any OpenAI-compatible chat completions API.
type Client struct {
	client  *openai.Client
	name    string
	timeout time.Duration
}

// NewClient creates a new OpenAI client. baseURL may point at another
// OpenAI-compatible endpoint (Groq, Ollama).
func NewClient(apiKey, baseURL string) (*Client, error) {
	return NewNamedClient("openai", apiKey, baseURL)
}

// NewNamedClient is NewClient with the provider name used in logs.
func NewNamedClient(name, apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s API key is required", name)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		client:  openai.NewClientWithConfig(config),
		name:    name,
		timeout: 90 * time.Second,
	}, nil
}

// SuggestNaming asks the model for a branch name and commit message.
func (c *Client) SuggestNaming(ctx context.Context, input ports.NamingInput) (domain.Naming, error) {
	system, user := buildMessages(input)

	req := openai.ChatCompletionRequest{
		Model:       input.Model,
		Temperature: input.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := observability.Component("llm")
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(reqCtx, req)
	if err != nil {
		log.Warn().Err(err).Str("provider", c.name).Dur("elapsed", time.Since(start)).Msg("chat completion failed")
		return domain.Naming{}, classify(ctx, c.name, err)
	}
	log.Debug().
		Str("provider", c.name).
		Str("model", input.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(start)).
		Msg("chat completion")

	if len(resp.Choices) == 0 {
		return domain.Naming{}, domain.Wrap(domain.ErrLLMRequest, c.name, errors.New("no choices returned"))
	}

	naming, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.Naming{}, domain.Wrap(domain.ErrLLMRequest, "parse "+c.name+" response", err)
	}
	return naming, nil
}

type namingResponse struct {
	BranchName    string  `json:"branch_name"`
	CommitTitle   string  `json:"commit_title"`
	CommitDetails *string `json:"commit_details"`
}

// parseResponse decodes and validates the model's JSON answer.
func parseResponse(content string) (domain.Naming, error) {
	jsonContent := extractJSON(content)

	var resp namingResponse
	if err := json.Unmarshal([]byte(jsonContent), &resp); err != nil {
		log := observability.Component("llm")
		log.Warn().
			Err(err).
			Int("raw_len", len(content)).
			Str("raw_snip", observability.Snip(observability.RedactForLog(content), 600)).
			Msg("invalid JSON from model")
		return domain.Naming{}, fmt.Errorf("invalid JSON format: %w", err)
	}

	naming := domain.Naming{
		BranchName:  resp.BranchName,
		CommitTitle: resp.CommitTitle,
	}
	if resp.CommitDetails != nil {
		naming.CommitDescription = *resp.CommitDetails
	}
	naming.Normalize()
	if err := naming.Validate(); err != nil {
		return domain.Naming{}, err
	}
	return naming, nil
}

// extractJSON strips surrounding whitespace and markdown code fences.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

// classify tags err as an LLM request failure, and as transient when another
// attempt could succeed (rate limit, server error, request timeout).
func classify(parent context.Context, name string, err error) error {
	if parent.Err() != nil {
		return domain.Wrap(domain.ErrCancelled, name, err)
	}
	wrapped := domain.Wrap(domain.ErrLLMRequest, name, err)
	if isTransient(err) {
		return fmt.Errorf("%w: %w", domain.ErrTransient, wrapped)
	}
	return wrapped
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
