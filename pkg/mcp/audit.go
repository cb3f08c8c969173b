package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/audit"
	"github.com/ekaya-inc/herdwise/pkg/logging"
)

// CallAuditor writes one structured log line per MCP tool call: which tool,
// a hash and preview of the question, the outcome and how long it took.
type CallAuditor struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewCallAuditor creates a CallAuditor.
func NewCallAuditor(logger *zap.Logger) *CallAuditor {
	return &CallAuditor{
		logger: logger.Named("mcp-audit"),
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *CallAuditor) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *CallAuditor) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *CallAuditor) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	fields := append(a.requestFields(id, req), summarizeResult(result)...)
	a.logger.Info("MCP tool call", fields...)
}

func (a *CallAuditor) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	fields := append(a.requestFields(id, req), zap.String("error", logging.SanitizeError(err)))
	a.logger.Warn("MCP tool call failed", fields...)
}

func (a *CallAuditor) requestFields(id any, req *mcplib.CallToolRequest) []zap.Field {
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", time.Since(a.loadAndDeleteStart(id))),
	}
	if question := req.GetString("question", ""); question != "" {
		fields = append(fields,
			zap.String("question_hash", audit.QuestionHash(question)),
			zap.String("question", logging.Preview(question)))
	}
	if backend := req.GetString("backend", ""); backend != "" {
		fields = append(fields, zap.String("backend", backend))
	}
	return fields
}

func (a *CallAuditor) loadAndDeleteStart(id any) time.Time {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}

// summarizeResult reports whether the tool returned an error result and, if
// so, its error code.
func summarizeResult(result *mcplib.CallToolResult) []zap.Field {
	if result == nil {
		return nil
	}
	fields := []zap.Field{zap.Bool("is_error", result.IsError)}
	if !result.IsError || len(result.Content) == 0 {
		return fields
	}
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		return fields
	}
	var body struct {
		Code string `json:"code"`
	}
	if json.Unmarshal([]byte(text.Text), &body) == nil && body.Code != "" {
		fields = append(fields, zap.String("error_code", body.Code))
	}
	return fields
}
