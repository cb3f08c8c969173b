package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/herdwise/pkg/models"
	"github.com/ekaya-inc/herdwise/pkg/services"
)

// askResult is the successful ask payload. Rows are returned as-is so the
// caller can quote figures; the chart spec is for the caller's renderer.
type askResult struct {
	RequestID string            `json:"request_id"`
	Intent    models.IntentKind `json:"intent"`
	Backend   string            `json:"backend"`
	SQL       string            `json:"sql"`
	Columns   []string          `json:"columns"`
	Rows      []map[string]any  `json:"rows"`
	RowCount  int               `json:"row_count"`
	Narrative string            `json:"narrative,omitempty"`
	Chart     *models.ChartSpec `json:"chart,omitempty"`
}

// RegisterAskTool adds the ask tool, which runs one question through the
// full pipeline.
func RegisterAskTool(s *server.MCPServer, pipeline services.Pipeline) {
	tool := mcp.NewTool(
		"ask",
		mcp.WithDescription(
			"Answer a natural-language question about swine farm health data. "+
				"The question is screened, translated to a read-only SQL query, executed, "+
				"and answered either as an analytical narrative or as a chart specification. "+
				"Example: ask(question='Which farm had the highest average DC last week?')",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question, in plain language"),
		),
		mcp.WithString(
			"force_intent",
			mcp.Description("Skip intent classification and answer as 'chart' or 'text'"),
			mcp.Enum(string(models.ForceChart), string(models.ForceText)),
		),
		mcp.WithString(
			"backend",
			mcp.Description("Configured store to query; omit for the default"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return NewErrorResult("invalid_parameters", "parameter 'question' cannot be empty"), nil
		}

		force := models.ForceIntent(strings.ToLower(strings.TrimSpace(req.GetString("force_intent", ""))))
		switch force {
		case models.ForceNone, models.ForceChart, models.ForceText:
		default:
			return NewErrorResult("invalid_parameters",
				fmt.Sprintf("force_intent %q must be 'chart' or 'text'", force)), nil
		}

		result := pipeline.Run(ctx, &models.AskRequest{
			Question: question,
			Force:    force,
			Backend:  strings.TrimSpace(req.GetString("backend", "")),
		})
		if !result.Success {
			return NewPipelineErrorResult(result), nil
		}

		response := askResult{
			RequestID: result.RequestID,
			Backend:   result.Backend,
			SQL:       result.SQL,
			RowCount:  result.Results.RowCount(),
			Narrative: result.Narrative,
			Chart:     result.Chart,
		}
		if result.Intent != nil {
			response.Intent = result.Intent.Kind
		}
		if result.Results != nil {
			response.Columns = result.Results.Columns
			response.Rows = result.Results.Rows
		}

		jsonResult, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ask result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
