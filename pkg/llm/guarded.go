package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/retry"
)

// GuardedClient wraps an LLMClient with retry of transient provider errors
// and a circuit breaker. Retries stay inside one GenerateResponse call.
type GuardedClient struct {
	inner   LLMClient
	breaker *CircuitBreaker
	retry   *retry.Config
	logger  *zap.Logger
}

// NewGuardedClient wraps inner. A nil retry config disables retries.
func NewGuardedClient(inner LLMClient, breaker *CircuitBreaker, retryCfg *retry.Config, logger *zap.Logger) *GuardedClient {
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCircuitBreakerConfig())
	}
	if retryCfg == nil {
		retryCfg = retry.NoRetry()
	}
	return &GuardedClient{
		inner:   inner,
		breaker: breaker,
		retry:   retryCfg,
		logger:  logger.Named("llm-guard"),
	}
}

// GenerateResponse implements LLMClient.
func (g *GuardedClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	attempt := 0
	return retry.DoWithResult(ctx, g.retry, func() (*GenerateResponseResult, error) {
		attempt++
		if ok, err := g.breaker.Allow(); !ok {
			return nil, NewErrorWithContext(ErrorTypeEndpoint, "provider unavailable", false, err, g.inner.GetModel(), g.inner.GetEndpoint(), 0)
		}

		result, err := g.inner.GenerateResponse(ctx, prompt, systemMessage, temperature)
		if err != nil {
			// Caller cancellation says nothing about provider health.
			if !errors.Is(err, context.Canceled) {
				g.breaker.RecordFailure()
			}
			if attempt > 1 || IsRetryable(err) {
				g.logger.Warn("LLM attempt failed",
					zap.Int("attempt", attempt),
					zap.Bool("retryable", IsRetryable(err)),
					zap.String("circuit", g.breaker.State().String()),
					zap.Error(err))
			}
			return nil, err
		}

		g.breaker.RecordSuccess()
		return result, nil
	})
}

// GetModel implements LLMClient.
func (g *GuardedClient) GetModel() string {
	return g.inner.GetModel()
}

// GetEndpoint implements LLMClient.
func (g *GuardedClient) GetEndpoint() string {
	return g.inner.GetEndpoint()
}

// Breaker exposes the circuit state for health reporting.
func (g *GuardedClient) Breaker() *CircuitBreaker {
	return g.breaker
}
