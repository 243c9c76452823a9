// Package config provides configuration management for the housing
// assessment server. This file contains the env-only configuration of the
// standalone MCP scoring server.
package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// LiteConfig configures the standalone MCP server. The scoring tools are
// stateless so only logging is configurable.
type LiteConfig struct {
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	return &LiteConfig{
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("HOUSING_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HOUSING_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// NewLogger builds a logrus logger for the given level and format. Unknown
// levels fall back to info. stdout belongs to the MCP stdio transport, so
// logs go to stderr.
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
