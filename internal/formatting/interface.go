// Package formatting renders controller service state, flow components,
// plans and cascade results for the command line, as tables or as JSON or
// YAML documents.
package formatting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"svcctl/internal/app"
	"svcctl/internal/flow"
	"svcctl/internal/orchestrator"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates a format name. An empty name means table.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", FormatTable:
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML:
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool      // Enable colored output
	Output io.Writer // Defaults to stdout
}

// Formatter renders svcctl data
type Formatter interface {
	FormatServices(statuses []orchestrator.ServiceStatus) error
	FormatComponents(components []flow.ComponentStatus) error
	FormatPlan(plan *app.Plan) error
	FormatApplyResult(result *app.ApplyResult) error
	FormatCascade(result *orchestrator.CascadeResult) error
}

// New creates the formatter for options.Format.
func New(options Options) Formatter {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	switch options.Format {
	case FormatJSON, FormatYAML:
		return &structuredFormatter{options: options}
	default:
		return &TableFormatter{options: options}
	}
}
