package formatting

import (
	"time"

	"svcctl/internal/api"
	"svcctl/internal/app"
	"svcctl/internal/flow"
	"svcctl/internal/orchestrator"
)

// The view types are the JSON and YAML shape of what the formatters render.

type serviceView struct {
	ID         string   `json:"id" yaml:"id"`
	Type       string   `json:"type" yaml:"type"`
	State      string   `json:"state" yaml:"state"`
	References []string `json:"references,omitempty" yaml:"references,omitempty"`
	LastError  string   `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

type componentView struct {
	ID         string            `json:"id" yaml:"id"`
	Kind       string            `json:"kind" yaml:"kind"`
	AutoStart  bool              `json:"autoStart" yaml:"autoStart"`
	Running    bool              `json:"running" yaml:"running"`
	References map[string]string `json:"references,omitempty" yaml:"references,omitempty"`
	StartedAt  *time.Time        `json:"startedAt,omitempty" yaml:"startedAt,omitempty"`
}

type planView struct {
	EnableLevels [][]string `json:"enableLevels" yaml:"enableLevels"`
	Start        []string   `json:"start" yaml:"start"`
	Warnings     []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type applyView struct {
	Created  []string `json:"created,omitempty" yaml:"created,omitempty"`
	Updated  []string `json:"updated,omitempty" yaml:"updated,omitempty"`
	Removed  []string `json:"removed,omitempty" yaml:"removed,omitempty"`
	Enabled  []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Disabled []string `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Started  []string `json:"started,omitempty" yaml:"started,omitempty"`
	Stopped  []string `json:"stopped,omitempty" yaml:"stopped,omitempty"`
}

type cascadeView struct {
	Operation string   `json:"operation" yaml:"operation"`
	Service   string   `json:"service" yaml:"service"`
	Applied   []string `json:"applied" yaml:"applied"`
	Skipped   []string `json:"skipped" yaml:"skipped"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func toServiceViews(statuses []orchestrator.ServiceStatus) []serviceView {
	out := make([]serviceView, 0, len(statuses))
	for _, s := range statuses {
		v := serviceView{
			ID:         s.ID,
			Type:       s.Type,
			State:      s.State.String(),
			References: s.References,
		}
		if s.LastError != nil {
			v.LastError = s.LastError.Error()
		}
		out = append(out, v)
	}
	return out
}

func toComponentViews(components []flow.ComponentStatus) []componentView {
	out := make([]componentView, 0, len(components))
	for _, c := range components {
		v := componentView{
			ID:         c.ID,
			Kind:       string(c.Kind),
			AutoStart:  c.AutoStart,
			Running:    c.Running,
			References: c.References,
		}
		if !c.StartedAt.IsZero() {
			startedAt := c.StartedAt
			v.StartedAt = &startedAt
		}
		out = append(out, v)
	}
	return out
}

func toPlanView(plan *app.Plan) planView {
	return planView{
		EnableLevels: plan.EnableLevels,
		Start:        plan.Start,
		Warnings:     warningStrings(plan.Warnings),
	}
}

func toApplyView(result *app.ApplyResult) applyView {
	return applyView{
		Created:  result.Created,
		Updated:  result.Updated,
		Removed:  result.Removed,
		Enabled:  result.Enabled,
		Disabled: result.Disabled,
		Started:  result.Started,
		Stopped:  result.Stopped,
	}
}

func toCascadeView(result *orchestrator.CascadeResult) cascadeView {
	return cascadeView{
		Operation: string(result.Operation),
		Service:   result.Service,
		Applied:   refStrings(result.Applied),
		Skipped:   refStrings(result.Skipped),
		Warnings:  warningStrings(result.Warnings),
	}
}

func refStrings(refs []api.ComponentRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.String()
	}
	return out
}

func warningStrings(warnings []api.CyclicReferenceWarning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}
