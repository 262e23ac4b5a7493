package cmd

import (
	"github.com/spf13/cobra"

	"svcctl/internal/app"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the order in which a flow definition would be brought up",
		Long: `Validates the flow definition and prints the levels in which its enabled
controller services would be enabled, followed by the components that would
be started. Nothing is enabled or started.`,
		Args: cobra.NoArgs,
		RunE: runPlan,
	}
}

func runPlan(cmd *cobra.Command, args []string) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	application, err := newApplication()
	if err != nil {
		return err
	}
	def, err := application.LoadFlow()
	if err != nil {
		return err
	}
	return formatter.FormatPlan(app.BuildPlan(def))
}
