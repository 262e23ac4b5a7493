package formatting

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"svcctl/internal/app"
	"svcctl/internal/flow"
	"svcctl/internal/orchestrator"
)

// structuredFormatter writes JSON or YAML documents
type structuredFormatter struct {
	options Options
}

func (f *structuredFormatter) FormatServices(statuses []orchestrator.ServiceStatus) error {
	return f.write(map[string]interface{}{"services": toServiceViews(statuses)})
}

func (f *structuredFormatter) FormatComponents(components []flow.ComponentStatus) error {
	return f.write(map[string]interface{}{"components": toComponentViews(components)})
}

func (f *structuredFormatter) FormatPlan(plan *app.Plan) error {
	return f.write(toPlanView(plan))
}

func (f *structuredFormatter) FormatApplyResult(result *app.ApplyResult) error {
	return f.write(toApplyView(result))
}

func (f *structuredFormatter) FormatCascade(result *orchestrator.CascadeResult) error {
	return f.write(toCascadeView(result))
}

func (f *structuredFormatter) write(v interface{}) error {
	if f.options.Format == FormatYAML {
		enc := yaml.NewEncoder(f.options.Output)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	}
	_, err := fmt.Fprintln(f.options.Output, PrettyJSON(v))
	return err
}

// PrettyJSON formats any value as indented JSON for human-readable display.
// It falls back to fmt.Sprintf when the value cannot be marshaled.
func PrettyJSON(v interface{}) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
