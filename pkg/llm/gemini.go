package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"

// GeminiClient talks to the Gemini API through the GenAI SDK.
type GeminiClient struct {
	client   *genai.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// NewGeminiClient creates a Gemini client. The SDK client is created eagerly
// so configuration errors surface at startup.
func NewGeminiClient(ctx context.Context, cfg *Config, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	endpoint := defaultGeminiEndpoint
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiClient{
		client:   client,
		endpoint: endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm-gemini"),
	}, nil
}

// GenerateResponse generates content with the system prompt as system instruction.
func (c *GeminiClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
) (*GenerateResponseResult, error) {
	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))

	start := time.Now()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if systemMessage != "" {
		config.SystemInstruction = genai.NewContentFromText(systemMessage, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		llmErr := ClassifyError(err)
		llmErr.Model = c.model
		llmErr.Endpoint = c.endpoint
		return nil, llmErr
	}

	content := resp.Text()
	if content == "" {
		return nil, NewErrorWithContext(ErrorTypeModel, "no text content in response", false, nil, c.model, c.endpoint, 0)
	}

	result := &GenerateResponseResult{Content: content}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		result.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// GetModel returns the configured model name.
func (c *GeminiClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *GeminiClient) GetEndpoint() string {
	return c.endpoint
}
