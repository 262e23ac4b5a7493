package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"svcctl/pkg/logging"
)

const (
	userConfigDir  = ".config/svcctl"
	configFileName = "config.yaml"
)

// GetDefaultConfigPath returns the per-user configuration directory.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath. A missing file yields the
// defaults.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return config, nil
		}
		logging.Info("ConfigLoader", "Error loading config.yaml from %s: %s", configFilePath, err)
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, ConfigurationError{
			FilePath:  configFilePath,
			FileName:  configFileName,
			Category:  CategorySettings,
			ErrorType: ErrorTypeParse,
			Message:   "malformed YAML",
			Details:   err.Error(),
		}
	}
	if err := ValidateConfig(config, configFilePath); err != nil {
		return Config{}, err
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// FlowPath resolves the flow definition file named by cfg.
func FlowPath(configPath string, cfg Config) string {
	flow := cfg.Flow
	if flow == "" {
		flow = DefaultFlowFile
	}
	if filepath.IsAbs(flow) {
		return flow
	}
	return filepath.Join(configPath, flow)
}

// LoadFlow reads and parses a flow definition file. The definition is not
// validated against a service type catalog; see ValidateFlow.
func LoadFlow(path string) (*FlowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow definition %s: %w", path, err)
	}
	return ParseFlow(data, path)
}

// ParseFlow parses a flow definition. Entries without an id get a random
// one. path is only used in error messages.
func ParseFlow(data []byte, path string) (*FlowDefinition, error) {
	var def FlowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, ConfigurationError{
			FilePath:  path,
			FileName:  filepath.Base(path),
			Category:  CategoryServices,
			ErrorType: ErrorTypeParse,
			Message:   "malformed YAML",
			Details:   err.Error(),
		}
	}

	for i := range def.Services {
		if def.Services[i].ID == "" {
			def.Services[i].ID = uuid.NewString()
			logging.Warn("ConfigLoader", "Service %d of type %s in %s has no id, generated %s",
				i, def.Services[i].Type, path, def.Services[i].ID)
		}
	}
	for i := range def.Components {
		if def.Components[i].ID == "" {
			def.Components[i].ID = uuid.NewString()
			logging.Warn("ConfigLoader", "Component %d in %s has no id, generated %s", i, path, def.Components[i].ID)
		}
	}

	logging.Debug("ConfigLoader", "Parsed flow definition %s: %d services, %d components",
		path, len(def.Services), len(def.Components))
	return &def, nil
}
