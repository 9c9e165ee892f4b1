package app

import (
	"fmt"
	"slices"
	"strings"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Config holds what one invocation asks for.
type Config struct {
	// Directory is where the workspace is detected and where targets
	// without a path are looked up.
	Directory string
	// Targets are task references of the form "name" or "name:path".
	Targets []string

	LogFormat string
	LogLevel  string
	// Workers overrides the workspace setting when positive.
	Workers int
	DryRun  bool
	Force   bool
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Directory == "" {
		cfg.Directory = "."
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if !slices.Contains(logLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log level %q: must be one of %s", cfg.LogLevel, strings.Join(logLevels, ", "))
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if !slices.Contains(logFormats, cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log format %q: must be text or json", cfg.LogFormat)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	return &cfg, nil
}
