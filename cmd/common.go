package cmd

import (
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"svcctl/internal/app"
	"svcctl/internal/formatting"
)

// newApplication builds the application from the persistent flags.
func newApplication() (*app.Application, error) {
	return app.NewApplication(app.NewConfig(debug, quiet, configDir, flowFile))
}

// loadAndApply creates the application and applies the flow definition once.
func loadAndApply(cmd *cobra.Command) (*app.Application, *app.ApplyResult, error) {
	application, err := newApplication()
	if err != nil {
		return nil, nil, err
	}
	def, err := application.LoadFlow()
	if err != nil {
		return nil, nil, err
	}

	s := startSpinner(" Applying " + application.Config().ResolvedFlowPath() + "...")
	result, err := application.Apply(cmd.Context(), def)
	if s != nil {
		if err != nil {
			s.FinalMSG = text.FgRed.Sprint("Failed to apply flow definition") + "\n"
		}
		s.Stop()
	}
	return application, result, err
}

func newFormatter(cmd *cobra.Command) (formatting.Formatter, error) {
	format, err := formatting.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	out := cmd.OutOrStdout()
	return formatting.New(formatting.Options{
		Format: format,
		Color:  !noColor && isTerminal(out),
		Output: out,
	}), nil
}

// startSpinner shows progress on an interactive stderr. It returns nil when
// there is nothing to show, so callers must check before stopping it.
func startSpinner(suffix string) *spinner.Spinner {
	if format, _ := formatting.ParseFormat(outputFormat); quiet || format != formatting.FormatTable || !isTerminal(os.Stderr) {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	s.Start()
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
