package tools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ekaya-inc/herdwise/pkg/models"
)

// ErrorResponse represents a structured error in tool results.
// Pipeline failures are returned as tool results rather than protocol errors
// so the calling model can read the category and suggestion and react.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (bad arguments, blocked question).
// System failures should still return Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// pipelineErrorDetails is attached to failed ask results.
type pipelineErrorDetails struct {
	RequestID  string               `json:"request_id"`
	State      models.PipelineState `json:"state"`
	Suggestion string               `json:"suggestion,omitempty"`
	SQL        string               `json:"sql,omitempty"`
	Safety     *models.SafetyReport `json:"safety,omitempty"`
}

// NewPipelineErrorResult converts a failed pipeline result into a tool error
// whose code is the error category.
func NewPipelineErrorResult(result *models.PipelineResult) *mcp.CallToolResult {
	if result.Error == nil {
		return NewErrorResult("internal_error", "pipeline failed without an error")
	}
	return NewErrorResultWithDetails(string(result.Error.Category), result.Error.Message, pipelineErrorDetails{
		RequestID:  result.RequestID,
		State:      result.State,
		Suggestion: result.Error.Suggestion,
		SQL:        result.Error.SQL,
		Safety:     result.Safety,
	})
}
