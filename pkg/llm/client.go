package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds configuration for creating an LLM client.
type Config struct {
	Provider string // "openai", "anthropic" or "gemini"
	Endpoint string // Base URL, e.g., "https://api.openai.com/v1"
	Model    string // Model name, e.g., "gpt-4o"
	APIKey   string // Optional for local endpoints
	// MaxTokens bounds every completion. Zero leaves it to the provider
	// where the provider allows that.
	MaxTokens int
}

// Client talks to OpenAI and OpenAI-compatible chat completion endpoints
// (vLLM, Ollama, Azure gateways).
type Client struct {
	client    *openai.Client
	endpoint  string
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewClient creates an OpenAI-compatible client. The API key may be empty
// for local endpoints.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.Named("llm").With(zap.String("provider", ProviderOpenAI)),
	}, nil
}

var _ LLMClient = (*Client)(nil)

// GenerateResponse sends one system and one user message and returns the
// first choice. A response cut by the provider's content filter or with no
// content is an ErrorTypeModel error.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(temperature),
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}

	c.logger.Debug("Chat completion request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Warn("Chat completion failed",
			zap.String("model", c.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, c.parseError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewErrorWithContext(ErrorTypeModel, "no choices in response", false, nil, c.model, c.endpoint, 0)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return nil, NewErrorWithContext(ErrorTypeModel, "response withheld by provider content filter", false, nil, c.model, c.endpoint, 0)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, NewErrorWithContext(ErrorTypeModel, "empty response content", true, nil, c.model, c.endpoint, 0)
	}
	if choice.FinishReason == openai.FinishReasonLength {
		c.logger.Warn("Completion hit the token limit", zap.Int("max_tokens", c.maxTokens))
	}

	c.logger.Info("Chat completion done",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}

func (c *Client) parseError(err error) error {
	llmErr := ClassifyError(err)
	llmErr.Model = c.model
	llmErr.Endpoint = c.endpoint
	return llmErr
}
