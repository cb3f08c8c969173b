package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/herdwise/pkg/mcp/tools"
	"github.com/ekaya-inc/herdwise/pkg/services"
)

// Server wraps the mcp-go MCPServer with the herdwise tool set.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance. Tool calls are audited to logger.
func NewServer(name, version string, logger *zap.Logger) *Server {
	auditor := NewCallAuditor(logger)
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(auditor.Hooks()),
		server.WithRecovery(),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// RegisterPipelineTools registers the ask and health tools. stats may be nil.
func (s *Server) RegisterPipelineTools(pipeline services.Pipeline, version string, stats tools.StatsProvider) {
	tools.RegisterAskTool(s.mcp, pipeline)
	tools.RegisterHealthTool(s.mcp, version, stats)
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
