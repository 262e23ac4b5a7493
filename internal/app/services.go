package app

import (
	"svcctl/internal/config"
	"svcctl/internal/extension"
	"svcctl/internal/flow"
	"svcctl/internal/orchestrator"
	"svcctl/pkg/logging"
)

// Services holds the components wired together at startup.
type Services struct {
	// Catalog resolves controller service type names.
	Catalog *extension.Catalog

	// Provider owns the controller services and runs the cascades.
	Provider *orchestrator.Provider

	// Flow holds the processors and reporting tasks. The provider uses it as
	// its component source and controller; it consults the provider before
	// starting a component.
	Flow *flow.Flow
}

// InitializeServices creates the catalog, the flow and the provider and
// wires them to each other.
func InitializeServices(settings config.Config) *Services {
	catalog := extension.Builtin()
	f := flow.New(flow.Options{})

	provider := orchestrator.New(orchestrator.Config{
		Factory:           catalog,
		Components:        f,
		Controller:        f,
		EnableParallelism: settings.EnableParallelism,
	})
	f.SetServiceLookup(provider)

	logging.Debug("Services", "Initialized provider with %d service types", len(catalog.Types()))
	return &Services{
		Catalog:  catalog,
		Provider: provider,
		Flow:     f,
	}
}
