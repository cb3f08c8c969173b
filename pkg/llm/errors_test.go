package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.5:443: connection refused")

	tests := []struct {
		name    string
		err     *Error
		want    []string
		notWant []string
	}{
		{
			name: "minimal",
			err:  &Error{Type: ErrorTypeAuth, Message: "authentication failed"},
			want: []string{"auth authentication failed"},
		},
		{
			name: "status model and endpoint host",
			err: &Error{
				Type:       ErrorTypeEndpoint,
				Message:    "server error",
				StatusCode: 503,
				Model:      "gpt-4o",
				Endpoint:   "https://api.openai.com/v1",
			},
			want:    []string{"HTTP 503", "model=gpt-4o", "endpoint=api.openai.com", "server error"},
			notWant: []string{"/v1", "https://"},
		},
		{
			name:    "unparseable endpoint is omitted",
			err:     &Error{Type: ErrorTypeEndpoint, Message: "connection failed", Endpoint: "not a url"},
			notWant: []string{"endpoint="},
		},
		{
			name: "cause appended",
			err:  &Error{Type: ErrorTypeEndpoint, Message: "connection failed", Cause: cause},
			want: []string{"connection failed: dial tcp 10.0.0.5:443: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.want {
				assert.Contains(t, msg, s)
			}
			for _, s := range tt.notWant {
				assert.NotContains(t, msg, s)
			}
		})
	}
}

func TestError_UnwrapAndRetryable(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorWithContext(ErrorTypeEndpoint, "server error", true, cause, "m", "http://localhost:11434", 502)

	assert.ErrorIs(t, err, cause)
	assert.True(t, err.IsRetryable())
	assert.True(t, IsRetryable(fmt.Errorf("intent: %w", err)))
	assert.Equal(t, ErrorTypeEndpoint, GetErrorType(fmt.Errorf("intent: %w", err)))
	assert.Equal(t, 502, err.StatusCode)

	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorTypeUnknown, GetErrorType(errors.New("plain")))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      ErrorType
		wantStatus    int
		wantRetryable bool
	}{
		{"unrecognized", errors.New("something odd"), ErrorTypeUnknown, 0, false},
		{"401", errors.New("error, status code: 401, message: Incorrect API key provided"), ErrorTypeAuth, 401, false},
		{"invalid x-api-key", errors.New("anthropic: invalid x-api-key"), ErrorTypeAuth, 0, false},
		{"unknown model", errors.New("status code: 404, message: The model `gpt-9` does not exist"), ErrorTypeModel, 404, false},
		{"404 path", errors.New("HTTP 404 page not found"), ErrorTypeEndpoint, 404, false},
		{"429", errors.New("HTTP 429 Too Many Requests"), ErrorTypeRateLimited, 429, true},
		{"rate limit text", errors.New("rate limit exceeded for gpt-4o"), ErrorTypeRateLimited, 0, true},
		{"anthropic overloaded", errors.New("anthropic api error type: overloaded_error, message: Overloaded"), ErrorTypeRateLimited, 0, true},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), ErrorTypeEndpoint, 0, true},
		{"no such host", errors.New("dial tcp: lookup llm.internal: no such host"), ErrorTypeEndpoint, 0, true},
		{"transport timeout", errors.New("net/http: request canceled (Client.Timeout exceeded while awaiting headers) timeout"), ErrorTypeTimeout, 0, true},
		{"openai 503 format", errors.New("error, status code: 503, status: 503 Service Unavailable, message: upstream overloaded"), ErrorTypeRateLimited, 503, true},
		{"500", errors.New("HTTP 500 Internal Server Error"), ErrorTypeEndpoint, 500, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantRetryable, got.Retryable)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClassifyError_Nil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}

func TestClassifyError_PreservesExistingError(t *testing.T) {
	original := NewErrorWithContext(ErrorTypeModel, "no choices in response", false, nil, "m", "", 0)

	got := ClassifyError(fmt.Errorf("translate: %w", original))
	assert.Same(t, original, got)
}

// A stage deadline must not be retried inside the same stage budget.
func TestClassifyError_DeadlineExceeded(t *testing.T) {
	got := ClassifyError(fmt.Errorf("post chat completion: %w", context.DeadlineExceeded))

	assert.Equal(t, ErrorTypeTimeout, got.Type)
	assert.False(t, got.Retryable)
	assert.True(t, IsTimeout(got))
	assert.ErrorIs(t, got, context.DeadlineExceeded)
}

func TestClassifyError_Canceled(t *testing.T) {
	for _, err := range []error{
		context.Canceled,
		errors.New("Post \"https://api.openai.com/v1/chat/completions\": context canceled"),
	} {
		got := ClassifyError(err)
		assert.Equal(t, ErrorTypeTimeout, got.Type)
		assert.Equal(t, "request cancelled", got.Message)
		assert.False(t, got.Retryable)
	}
}

func TestExtractStatusCode(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"HTTP 503 Service Unavailable", 503},
		{"status 429 rate limited", 429},
		{"status: 500", 500},
		{"code: 504 timeout", 504},
		{"Status: 404 Not Found", 404},
		{"status code: 502", 502},
		// Counts, ports and non-error statuses are not status codes.
		{"processed 503 records", 0},
		{"port 5432 connection failed", 0},
		{"error after 429 seconds", 0},
		{"status 200", 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, extractStatusCode(tt.in))
		})
	}
}
