package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"svcctl/internal/config"
	"svcctl/pkg/logging"
)

// Application bootstraps svcctl: it loads the configuration, sets up
// logging and wires the provider to the flow.
//
// Example usage:
//
//	cfg := app.NewConfig(false, false, "/etc/svcctl", "")
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	def, err := application.LoadFlow()
//	...
//	result, err := application.Apply(ctx, def)
type Application struct {
	config   *Config
	services *Services

	// applyMu serialises Apply and Shutdown
	applyMu sync.Mutex
}

// NewApplication creates and initializes a new application instance.
//
//  1. Loads config.yaml from cfg.ConfigPath unless cfg.Settings is set
//  2. Configures logging from the settings, cfg.Debug and cfg.Silent
//  3. Initializes the catalog, the flow and the provider
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.Settings == nil {
		settings, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load svcctl configuration from path %s: %w", cfg.ConfigPath, err)
		}
		cfg.Settings = &settings
	}

	level, err := logging.ParseLevel(cfg.Settings.LogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}

	var logOutput io.Writer = os.Stderr
	if cfg.LogOutput != nil {
		logOutput = cfg.LogOutput
	}
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(level, logOutput)

	return &Application{
		config:   cfg,
		services: InitializeServices(*cfg.Settings),
	}, nil
}

// Services returns the wired components.
func (a *Application) Services() *Services {
	return a.services
}

// Config returns the application configuration.
func (a *Application) Config() *Config {
	return a.config
}

// LoadFlow reads and validates the flow definition file.
func (a *Application) LoadFlow() (*config.FlowDefinition, error) {
	path := a.config.ResolvedFlowPath()
	def, err := config.LoadFlow(path)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateFlow(def, path, a.services.Catalog.Has); err != nil {
		return nil, err
	}
	return def, nil
}

// Watch applies the flow definition every time its file changes, until ctx
// is done. Load and apply errors are passed to onApplied and do not stop
// the watch.
func (a *Application) Watch(ctx context.Context, onApplied func(*ApplyResult, error)) error {
	path := a.config.ResolvedFlowPath()
	watcher := config.NewWatcher(path, config.DefaultDebounceInterval)
	if onApplied == nil {
		onApplied = func(*ApplyResult, error) {}
	}

	return watcher.Watch(ctx, func() {
		if ctx.Err() != nil {
			// the watch is over; a late timer must not undo Shutdown
			return
		}
		def, err := a.LoadFlow()
		if err != nil {
			logging.Error("Bootstrap", err, "Ignoring invalid flow definition %s", path)
			onApplied(nil, err)
			return
		}
		result, err := a.Apply(ctx, def)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to apply %s", path)
		}
		onApplied(result, err)
	})
}
