package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/retry"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Providers lists the supported provider names.
var Providers = []string{ProviderOpenAI, ProviderAnthropic, ProviderGemini}

// NewClientFromConfig creates the provider client named by cfg.Provider.
// An empty provider selects the OpenAI-compatible client.
func NewClientFromConfig(ctx context.Context, cfg *Config, logger *zap.Logger) (LLMClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewClient(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (expected one of %s)", cfg.Provider, strings.Join(Providers, ", "))
	}
}

// NewGuardedClientFromConfig creates the provider client and wraps it with
// retry and circuit breaking.
func NewGuardedClientFromConfig(ctx context.Context, cfg *Config, breakerCfg CircuitBreakerConfig, retryCfg *retry.Config, logger *zap.Logger) (*GuardedClient, error) {
	client, err := NewClientFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}
	return NewGuardedClient(client, NewCircuitBreaker(breakerCfg), retryCfg, logger), nil
}
