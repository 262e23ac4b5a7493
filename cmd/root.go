package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"svcctl/internal/api"
	"svcctl/internal/config"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeInvalidConfig indicates config.yaml or the flow definition is invalid.
	ExitCodeInvalidConfig = 2
	// ExitCodeCascadeFailed indicates an activation or deactivation cascade stopped at a component.
	ExitCodeCascadeFailed = 3
	// ExitCodeNotFound indicates a controller service or component does not exist.
	ExitCodeNotFound = 4
)

// Persistent flags shared by every subcommand.
var (
	configDir    string
	flowFile     string
	debug        bool
	quiet        bool
	outputFormat string
	noColor      bool
)

// rootCmd represents the base command for the svcctl application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "svcctl",
	Short: "Coordinate the lifecycle of controller services and the components referencing them",
	Long: `svcctl loads a flow definition of controller services, processors and
reporting tasks, and brings it up in dependency order: every service a
service references is enabled first, and a component is started only once
the services it references are enabled.

Disabling a service first stops or disables everything that references it,
deepest dependents first.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "svcctl version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		writeConfigReport(os.Stderr, err)
		os.Exit(getExitCode(err))
	}
}

// writeConfigReport writes every problem of an invalid flow definition. The
// error line printed by cobra only names the first one.
func writeConfigReport(w io.Writer, err error) {
	var configErrs config.ConfigurationErrorCollection
	if !errors.As(err, &configErrs) || configErrs.Count() < 2 {
		return
	}

	fmt.Fprintln(w, configErrs.GetDetailedReport())
	fmt.Fprintln(w)
	for _, category := range []string{config.CategorySettings, config.CategoryServices, config.CategoryComponents} {
		if n := len(configErrs.GetErrorsByCategory(category)); n > 0 {
			fmt.Fprintf(w, "%d %s errors\n", n, category)
		}
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var configErr config.ConfigurationError
	if errors.As(err, &configErr) {
		return ExitCodeInvalidConfig
	}

	var configErrs config.ConfigurationErrorCollection
	if errors.As(err, &configErrs) {
		return ExitCodeInvalidConfig
	}

	var cascadeErr *api.CascadeError
	if errors.As(err, &cascadeErr) {
		return ExitCodeCascadeFailed
	}

	if api.IsNotFound(err) {
		return ExitCodeNotFound
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newCascadeCmd())
	rootCmd.AddCommand(newWatchCmd())

	defaultConfigDir, err := config.GetDefaultConfigPath()
	if err != nil {
		defaultConfigDir = "."
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configDir, "config-path", defaultConfigDir, "Directory holding config.yaml")
	flags.StringVarP(&flowFile, "flow", "f", "", "Flow definition file (default is the flow named in config.yaml)")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output and logs")
	flags.StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
}
