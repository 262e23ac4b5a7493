package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"svcctl/internal/api"
	"svcctl/internal/orchestrator"
)

func newCascadeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cascade",
		Short: "Run an activation or deactivation cascade for a controller service",
		Long: `Applies the flow definition, then runs a cascade over everything that
references the given controller service, directly or through other services.

The first component that fails ends the cascade. Components already changed
stay changed and are listed in the output.`,
	}
	cmd.AddCommand(newCascadeOpCmd(api.OperationDeactivate,
		"Stop or disable everything referencing a controller service, deepest dependents first"))
	cmd.AddCommand(newCascadeOpCmd(api.OperationActivate,
		"Enable a controller service and re-activate everything referencing it"))
	return cmd
}

func newCascadeOpCmd(op api.CascadeOperation, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(op) + " SERVICE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCascade(cmd, op, args[0])
		},
	}
}

func runCascade(cmd *cobra.Command, op api.CascadeOperation, serviceID string) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	application, _, err := loadAndApply(cmd)
	if application == nil {
		return err
	}
	defer shutdown(application)
	if err != nil {
		return fmt.Errorf("failed to apply flow definition: %w", err)
	}

	provider := application.Services().Provider
	node, ok := provider.GetControllerServiceNode(serviceID)
	if !ok {
		return api.NewNotFoundError("controller service", serviceID)
	}

	var result *orchestrator.CascadeResult
	switch op {
	case api.OperationActivate:
		result, err = provider.ActivateReferencingComponents(cmd.Context(), node)
	default:
		result, err = provider.DeactivateReferencingComponents(cmd.Context(), node)
	}

	if result != nil {
		if ferr := formatter.FormatCascade(result); ferr != nil && err == nil {
			err = ferr
		}
		if ferr := formatter.FormatServices(provider.Snapshot()); ferr != nil && err == nil {
			err = ferr
		}
		if ferr := formatter.FormatComponents(application.Services().Flow.Components()); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}
