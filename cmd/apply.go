package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"svcctl/internal/app"
	"svcctl/internal/formatting"
	"svcctl/pkg/logging"
)

var applyKeep bool

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Enable the services and start the components of a flow definition",
		Long: `Loads and validates the flow definition, creates its controller services,
enables them in dependency order and starts the components marked running.
The resulting state of every service and component is printed.

Unless --keep is given, everything is stopped and disabled again, dependents
first, before svcctl exits.`,
		Args: cobra.NoArgs,
		RunE: runApply,
	}
	cmd.Flags().BoolVar(&applyKeep, "keep", false, "Do not shut services and components down before exiting")
	return cmd
}

func runApply(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	application, result, err := loadAndApply(cmd)
	if application == nil {
		return err
	}
	if !applyKeep {
		defer shutdown(application)
	}

	if result != nil {
		if ferr := printApplied(formatter, application, result); ferr != nil && err == nil {
			err = ferr
		}
	}
	return err
}

// printApplied renders an apply result followed by the current state of
// every service and component.
func printApplied(formatter formatting.Formatter, application *app.Application, result *app.ApplyResult) error {
	if err := formatter.FormatApplyResult(result); err != nil {
		return err
	}
	for _, cascade := range result.Cascades {
		if err := formatter.FormatCascade(cascade); err != nil {
			return err
		}
	}
	if err := formatter.FormatServices(application.Services().Provider.Snapshot()); err != nil {
		return err
	}
	return formatter.FormatComponents(application.Services().Flow.Components())
}

func shutdown(application *app.Application) {
	if err := application.Shutdown(context.Background()); err != nil {
		logging.Error("CLI", err, "Shutdown did not complete cleanly")
	}
}
