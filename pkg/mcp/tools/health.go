package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/herdwise/pkg/adapters/datasource"
)

// StatsProvider reports store connection statistics.
type StatsProvider interface {
	GetStats() datasource.ConnectionStats
}

type healthResult struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	DefaultBackend string `json:"default_backend,omitempty"`
	Backends       int    `json:"backends,omitempty"`
	OpenBackends   int    `json:"open_backends"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and store summary. stats may be nil.
func RegisterHealthTool(s *server.MCPServer, version string, stats StatsProvider) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		health := healthResult{Status: "ok", Version: version}
		if stats != nil {
			st := stats.GetStats()
			health.DefaultBackend = st.DefaultBackend
			health.Backends = st.Configured
			health.OpenBackends = st.Initialized
		}

		result, err := json.Marshal(health)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
