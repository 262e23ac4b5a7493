package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"svcctl/internal/api"
	"svcctl/internal/dependency"
	"svcctl/pkg/logging"
)

// TypeChecker reports whether a service type name is known.
type TypeChecker func(typeName string) bool

// ValidateConfig checks the settings in config.yaml.
func ValidateConfig(cfg Config, path string) error {
	errs := NewConfigurationErrorCollection()
	add := func(message string, suggestions ...string) {
		errs.Add(ConfigurationError{
			FilePath:    path,
			FileName:    filepath.Base(path),
			Category:    CategorySettings,
			ErrorType:   ErrorTypeValidation,
			Message:     message,
			Suggestions: suggestions,
		})
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		add(err.Error(), "use one of: debug, info, warn, error")
	}
	if cfg.EnableParallelism < 0 {
		add(fmt.Sprintf("enableParallelism must not be negative, got %d", cfg.EnableParallelism),
			"use 0 for unbounded parallelism")
	}
	if cfg.ShutdownTimeout < 0 {
		add(fmt.Sprintf("shutdownTimeout must not be negative, got %s", cfg.ShutdownTimeout))
	}

	if errs.HasErrors() {
		return *errs
	}
	return nil
}

// ValidateFlow checks a flow definition: ids are unique across services
// and components, kinds and types are known, every reference names a
// declared service, enabled services and running components only reference
// enabled services, and services do not reference each other in a cycle.
// knownType may be nil to skip the type check. The returned error is a
// ConfigurationErrorCollection.
func ValidateFlow(def *FlowDefinition, path string, knownType TypeChecker) error {
	errs := NewConfigurationErrorCollection()
	add := func(category, subject, message string, suggestions ...string) {
		errs.Add(ConfigurationError{
			FilePath:    path,
			FileName:    filepath.Base(path),
			Category:    category,
			ErrorType:   ErrorTypeValidation,
			Subject:     subject,
			Message:     message,
			Suggestions: suggestions,
		})
	}

	seen := make(map[string]string)
	serviceIDs := make(map[string]bool)
	enabledIDs := make(map[string]bool)

	for _, s := range def.Services {
		if other, dup := seen[s.ID]; dup {
			add(CategoryServices, s.ID, fmt.Sprintf("duplicate id, already used by a %s", other))
			continue
		}
		seen[s.ID] = "service"
		serviceIDs[s.ID] = true
		enabledIDs[s.ID] = s.Enabled

		switch {
		case strings.TrimSpace(s.Type) == "":
			add(CategoryServices, s.ID, "type is required")
		case knownType != nil && !knownType(s.Type):
			add(CategoryServices, s.ID, fmt.Sprintf("unknown service type %q", s.Type))
		}
	}

	for _, c := range def.Components {
		if other, dup := seen[c.ID]; dup {
			add(CategoryComponents, c.ID, fmt.Sprintf("duplicate id, already used by a %s", other))
			continue
		}
		seen[c.ID] = "component"

		if c.Kind != api.KindProcessor && c.Kind != api.KindReportingTask {
			add(CategoryComponents, c.ID, fmt.Sprintf("unsupported kind %q", c.Kind),
				fmt.Sprintf("use %s or %s", api.KindProcessor, api.KindReportingTask))
		}
		if c.Running && !c.AutoStart {
			logging.Debug("ConfigLoader", "Component %s is running but not marked autoStart", c.ID)
		}
	}

	checkRefs := func(category, owner string, refs map[string]string) {
		for _, prop := range sortedKeys(refs) {
			target := refs[prop]
			if target == "" || serviceIDs[target] {
				continue
			}
			if seen[target] == "component" {
				add(category, owner, fmt.Sprintf("property %s references component %s, only controller services can be referenced", prop, target))
				continue
			}
			add(category, owner, fmt.Sprintf("property %s references unknown controller service %s", prop, target),
				"declare the service under services or fix the id")
		}
	}
	// checkEnabledRefs reports references from an active owner to declared
	// services that stay disabled.
	checkEnabledRefs := func(category, owner, state string, refs map[string]string) {
		for _, prop := range sortedKeys(refs) {
			target := refs[prop]
			if !serviceIDs[target] || enabledIDs[target] {
				continue
			}
			add(category, owner, fmt.Sprintf("%s but property %s references controller service %s which is not enabled", state, prop, target),
				fmt.Sprintf("set enabled: true on %s", target))
		}
	}

	for _, s := range def.Services {
		checkRefs(CategoryServices, s.ID, s.References)
		if s.Enabled {
			checkEnabledRefs(CategoryServices, s.ID, "enabled", s.References)
		}
	}
	for _, c := range def.Components {
		checkRefs(CategoryComponents, c.ID, c.References)
		if c.Running {
			checkEnabledRefs(CategoryComponents, c.ID, "running", c.References)
		}
	}

	for _, w := range serviceCycles(def) {
		add(CategoryServices, w.From, fmt.Sprintf("reference cycle: %s references %s which leads back to %s", w.From, w.To, w.From),
			"break the cycle by removing one of the references")
	}

	if errs.HasErrors() {
		return *errs
	}
	return nil
}

// serviceCycles returns one warning per cycle-closing edge between services.
func serviceCycles(def *FlowDefinition) []api.CyclicReferenceWarning {
	g := dependency.New()
	for _, s := range def.Services {
		deps := make([]dependency.NodeID, 0, len(s.References))
		for _, id := range s.References {
			deps = append(deps, dependency.NodeID(id))
		}
		g.AddNode(dependency.Node{ID: dependency.NodeID(s.ID), Kind: api.KindControllerService, DependsOn: deps})
	}

	ids := make([]string, 0, len(def.Services))
	for _, s := range def.Services {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)

	// a service already part of a reported cycle is not reported again
	var out []api.CyclicReferenceWarning
	seen := make(map[api.CyclicReferenceWarning]bool)
	reported := make(map[string]bool)
	for _, id := range ids {
		for _, w := range g.Prerequisites(dependency.NodeID(id)).Warnings {
			if seen[w] || reported[w.From] || reported[w.To] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
		for _, w := range out {
			reported[w.From] = true
			reported[w.To] = true
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
