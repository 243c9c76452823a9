// Package main runs the scoring tools as an MCP server over stdio. It needs
// no database: every tool is a pure computation over the form data it is
// given.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pashuvlogs/home-app/internal/config"
	"github.com/pashuvlogs/home-app/internal/mcp"
)

func main() {
	cfg := config.LoadLiteConfig()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting housing scoring MCP server on stdio")

	server := mcp.NewServer(logger)
	if err := server.RunStdio(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Fatal("MCP server failed")
	}

	logger.Info("MCP server stopped")
}
