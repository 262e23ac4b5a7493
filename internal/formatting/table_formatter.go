package formatting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"svcctl/internal/api"
	"svcctl/internal/app"
	"svcctl/internal/flow"
	"svcctl/internal/orchestrator"
	pkgstrings "svcctl/pkg/strings"
)

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) *TableFormatter {
	return &TableFormatter{options: options}
}

// FormatServices renders one row per controller service.
func (f *TableFormatter) FormatServices(statuses []orchestrator.ServiceStatus) error {
	if len(statuses) == 0 {
		f.printEmpty("No controller services")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("ID", "TYPE", "STATE", "REFERENCES", "LAST ERROR"))
	for _, s := range statuses {
		lastErr := ""
		if s.LastError != nil {
			lastErr = pkgstrings.TruncateLine(s.LastError.Error(), pkgstrings.DefaultErrorMaxLen)
		}
		t.AppendRow(table.Row{
			s.ID,
			s.Type,
			f.colorState(s.State),
			joinOrDash(s.References),
			lastErr,
		})
	}
	t.Render()
	return nil
}

// FormatComponents renders one row per processor or reporting task.
func (f *TableFormatter) FormatComponents(components []flow.ComponentStatus) error {
	if len(components) == 0 {
		f.printEmpty("No components")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("ID", "KIND", "AUTO-START", "STATUS", "REFERENCES"))
	for _, c := range components {
		status := "Stopped"
		if c.Running {
			status = f.color(text.FgGreen, "Running")
		}
		t.AppendRow(table.Row{
			c.ID,
			string(c.Kind),
			yesNo(c.AutoStart),
			status,
			formatReferences(c.References),
		})
	}
	t.Render()
	return nil
}

// FormatPlan renders the enable levels and the components to start.
func (f *TableFormatter) FormatPlan(plan *app.Plan) error {
	t := f.createTable()
	t.AppendHeader(f.header("STEP", "ACTION", "TARGETS"))

	step := 1
	for i, level := range plan.EnableLevels {
		t.AppendRow(table.Row{step, fmt.Sprintf("enable (level %d)", i), strings.Join(level, ", ")})
		step++
	}
	if len(plan.Start) > 0 {
		t.AppendRow(table.Row{step, "start", strings.Join(plan.Start, ", ")})
	}
	if step == 1 && len(plan.Start) == 0 {
		f.printEmpty("Nothing to do")
		return nil
	}
	t.Render()
	f.printWarnings(plan.Warnings)
	return nil
}

// FormatApplyResult renders what an apply changed.
func (f *TableFormatter) FormatApplyResult(result *app.ApplyResult) error {
	if !result.Changed() {
		f.printEmpty("No changes")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("CHANGE", "COUNT", "TARGETS"))
	for _, row := range []struct {
		name string
		ids  []string
	}{
		{"created", result.Created},
		{"updated", result.Updated},
		{"removed", result.Removed},
		{"enabled", result.Enabled},
		{"disabled", result.Disabled},
		{"started", result.Started},
		{"stopped", result.Stopped},
	} {
		if len(row.ids) == 0 {
			continue
		}
		t.AppendRow(table.Row{row.name, len(row.ids), strings.Join(row.ids, ", ")})
	}
	t.Render()
	return nil
}

// FormatCascade renders the components a cascade touched, in order.
func (f *TableFormatter) FormatCascade(result *orchestrator.CascadeResult) error {
	fmt.Fprintf(f.options.Output, "%s %s of components referencing %s\n",
		f.color(text.FgHiBlue, "Cascade:"), result.Operation, f.color(text.Bold, result.Service))

	if len(result.Applied)+len(result.Skipped) == 0 {
		f.printEmpty("No referencing components")
		return nil
	}

	t := f.createTable()
	t.AppendHeader(f.header("#", "COMPONENT", "KIND", "RESULT"))
	n := 1
	for _, ref := range result.Applied {
		t.AppendRow(table.Row{n, ref.ID, string(ref.Kind), f.color(text.FgGreen, "applied")})
		n++
	}
	for _, ref := range sortedRefs(result.Skipped) {
		t.AppendRow(table.Row{n, ref.ID, string(ref.Kind), "skipped"})
		n++
	}
	t.Render()
	f.printWarnings(result.Warnings)
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.options.Output)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(names ...string) table.Row {
	row := make(table.Row, len(names))
	for i, name := range names {
		row[i] = f.color(text.FgHiCyan, name)
	}
	return row
}

func (f *TableFormatter) color(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

func (f *TableFormatter) colorState(state api.ServiceState) string {
	switch state {
	case api.StateEnabled:
		return f.color(text.FgGreen, state.String())
	case api.StateEnabling, api.StateDisabling:
		return f.color(text.FgYellow, state.String())
	default:
		return state.String()
	}
}

func (f *TableFormatter) printEmpty(message string) {
	fmt.Fprintf(f.options.Output, "%s\n", f.color(text.FgYellow, message))
}

func (f *TableFormatter) printWarnings(warnings []api.CyclicReferenceWarning) {
	for _, w := range warnings {
		fmt.Fprintf(f.options.Output, "%s %s\n", f.color(text.FgYellow, "Warning:"), w)
	}
}

func formatReferences(refs map[string]string) string {
	if len(refs) == 0 {
		return "-"
	}
	props := make([]string, 0, len(refs))
	for prop := range refs {
		props = append(props, prop)
	}
	sort.Strings(props)

	parts := make([]string, len(props))
	for i, prop := range props {
		parts[i] = prop + "=" + refs[prop]
	}
	return strings.Join(parts, ", ")
}

func sortedRefs(refs []api.ComponentRef) []api.ComponentRef {
	out := append([]api.ComponentRef(nil), refs...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
