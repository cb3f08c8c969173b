package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestGuardedClient_RetriesTransientErrors(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		if mock.GenerateResponseCalls < 3 {
			return nil, ClassifyError(errors.New("HTTP 503 Service Unavailable"))
		}
		return &GenerateResponseResult{Content: "ok"}, nil
	}

	guarded := NewGuardedClient(mock, nil, fastRetry(), zap.NewNop())
	result, err := guarded.GenerateResponse(context.Background(), "q", "s", 0)
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Content)
	assert.Equal(t, 3, mock.Calls())
	assert.Equal(t, CircuitClosed, guarded.Breaker().State())
	assert.Equal(t, 0, guarded.Breaker().ConsecutiveFailures())
}

func TestGuardedClient_DoesNotRetryPermanentErrors(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		return nil, ClassifyError(errors.New("HTTP 401 Unauthorized"))
	}

	guarded := NewGuardedClient(mock, nil, fastRetry(), zap.NewNop())
	_, err := guarded.GenerateResponse(context.Background(), "q", "s", 0)

	assert.Equal(t, ErrorTypeAuth, GetErrorType(err))
	assert.Equal(t, 1, mock.Calls())
}

func TestGuardedClient_OpenCircuitShortCircuits(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(context.Context, string, string, float64) (*GenerateResponseResult, error) {
		return nil, ClassifyError(errors.New("connection refused"))
	}

	breaker := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Minute})
	guarded := NewGuardedClient(mock, breaker, retry.NoRetry(), zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := guarded.GenerateResponse(context.Background(), "q", "s", 0)
		require.Error(t, err)
	}
	require.Equal(t, CircuitOpen, breaker.State())

	_, err := guarded.GenerateResponse(context.Background(), "q", "s", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider unavailable")
	assert.Equal(t, 2, mock.Calls(), "open circuit must not reach the provider")
}

func TestGuardedClient_CancellationDoesNotTripBreaker(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, _ string, _ string, _ float64) (*GenerateResponseResult, error) {
		return nil, context.Canceled
	}

	breaker := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Minute})
	guarded := NewGuardedClient(mock, breaker, retry.NoRetry(), zap.NewNop())

	_, err := guarded.GenerateResponse(context.Background(), "q", "s", 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CircuitClosed, breaker.State())
}
