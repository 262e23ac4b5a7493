package config

import (
	"time"

	"svcctl/internal/api"
)

// Config is the top-level configuration structure for svcctl, read from
// config.yaml in the configuration directory.
type Config struct {
	LogLevel string `yaml:"logLevel,omitempty"` // debug, info, warn or error (default: info)
	// EnableParallelism bounds concurrent enables within one prerequisite
	// level. Zero means unbounded.
	EnableParallelism int           `yaml:"enableParallelism,omitempty"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout,omitempty"` // default: 30s
	// Flow is the flow definition file, relative to the configuration
	// directory unless absolute.
	Flow string `yaml:"flow,omitempty"`
}

// FlowDefinition describes the controller services and components of a flow.
type FlowDefinition struct {
	Services   []ServiceDefinition   `yaml:"services"`
	Components []ComponentDefinition `yaml:"components"`
}

// ServiceDefinition declares one controller service.
type ServiceDefinition struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	// References maps property names to the ids of referenced services.
	References map[string]string `yaml:"references,omitempty"`
	Enabled    bool              `yaml:"enabled,omitempty"`
}

// ComponentDefinition declares one processor or reporting task.
type ComponentDefinition struct {
	ID         string            `yaml:"id"`
	Kind       api.ComponentKind `yaml:"kind"`
	References map[string]string `yaml:"references,omitempty"`
	AutoStart  bool              `yaml:"autoStart,omitempty"`
	Running    bool              `yaml:"running,omitempty"`
}

// Service returns the definition with the given id.
func (d *FlowDefinition) Service(id string) (ServiceDefinition, bool) {
	for _, s := range d.Services {
		if s.ID == id {
			return s, true
		}
	}
	return ServiceDefinition{}, false
}

// Component returns the definition with the given id.
func (d *FlowDefinition) Component(id string) (ComponentDefinition, bool) {
	for _, c := range d.Components {
		if c.ID == id {
			return c, true
		}
	}
	return ComponentDefinition{}, false
}
