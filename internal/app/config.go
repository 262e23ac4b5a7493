package app

import (
	"io"

	"svcctl/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of the configured level
	Debug bool

	// Silent suppresses all log output
	Silent bool

	// ConfigPath is the directory holding config.yaml
	ConfigPath string

	// FlowPath overrides the flow definition named in config.yaml
	FlowPath string

	// LogOutput receives log lines; nil means stderr
	LogOutput io.Writer

	// Settings is loaded from ConfigPath when nil
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug, silent bool, configPath, flowPath string) *Config {
	return &Config{
		Debug:      debug,
		Silent:     silent,
		ConfigPath: configPath,
		FlowPath:   flowPath,
	}
}

// ResolvedFlowPath returns the flow definition file to load.
func (c *Config) ResolvedFlowPath() string {
	if c.FlowPath != "" {
		return c.FlowPath
	}
	settings := config.GetDefaultConfig()
	if c.Settings != nil {
		settings = *c.Settings
	}
	return config.FlowPath(c.ConfigPath, settings)
}
