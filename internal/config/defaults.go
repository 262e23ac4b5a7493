package config

import "time"

const (
	// DefaultShutdownTimeout bounds how long svcctl waits for a deactivation
	// cascade on shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultFlowFile is the flow definition read when config.yaml names none.
	DefaultFlowFile = "flow.yaml"

	// DefaultDebounceInterval is how long the watcher waits for further
	// writes before reloading a changed file.
	DefaultDebounceInterval = 500 * time.Millisecond
)

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		ShutdownTimeout: DefaultShutdownTimeout,
		Flow:            DefaultFlowFile,
	}
}
