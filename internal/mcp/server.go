// Package mcp exposes the scoring rules as Model Context Protocol tools so
// assistants can score a questionnaire or explain a routing decision without
// touching stored assessments.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pashuvlogs/home-app/internal/service"
)

const (
	serverName    = "home-app-scoring"
	serverVersion = "v0.1.0"
)

// Server is the stateless MCP scoring server.
type Server struct {
	mcpServer    *mcp.Server
	table        *service.CategoryScoreTable
	engine       *service.ScoringEngine
	completeness *service.CompletenessValidator
	overrides    *service.OverrideResolver
	pathways     *service.ApprovalPathwayResolver
	logger       *logrus.Logger
}

// NewServer creates the server and registers its tools.
func NewServer(logger *logrus.Logger) *Server {
	table := service.NewCategoryScoreTable()
	s := &Server{
		table:        table,
		engine:       service.NewScoringEngine(table, logger),
		completeness: service.NewCompletenessValidator(table),
		overrides:    service.NewOverrideResolver(),
		pathways:     service.NewApprovalPathwayResolver(),
		logger:       logger,
	}

	s.mcpServer = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	s.registerTools()

	logger.WithField("tool_count", len(toolNames)).Info("Scoring server initialized")
	return s
}

// Run serves on transport until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// RunStdio serves over stdin/stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("Serving MCP over stdio")
	return s.Run(ctx, &mcp.StdioTransport{})
}
