package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"svcctl/internal/app"
	"svcctl/pkg/logging"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Apply a flow definition and keep it applied while the file changes",
		Long: `Applies the flow definition, then watches the file and applies it again
every time it is written. Invalid edits are reported and ignored; the last
valid definition stays in effect.

On SIGINT or SIGTERM every component is stopped and every controller
service disabled, dependents first, before svcctl exits.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return watchFlow(ctx, cmd)
}

// watchFlow runs until ctx is done.
func watchFlow(ctx context.Context, cmd *cobra.Command) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	cmd.SetContext(ctx)
	application, result, err := loadAndApply(cmd)
	if application == nil {
		return err
	}
	defer shutdown(application)

	if err != nil {
		logging.Error("CLI", err, "Initial apply failed, waiting for the flow definition to change")
	}
	if result != nil {
		if err := printApplied(formatter, application, result); err != nil {
			return err
		}
	}

	err = application.Watch(ctx, func(result *app.ApplyResult, err error) {
		if err != nil {
			return
		}
		if result.Changed() {
			if ferr := printApplied(formatter, application, result); ferr != nil {
				logging.Error("CLI", ferr, "Failed to print apply result")
			}
		}
	})
	if err != nil && ctx.Err() == nil {
		return err
	}
	if !quiet {
		cmd.PrintErrln("Shutting down")
	}
	return nil
}
