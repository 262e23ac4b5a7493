package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"svcctl/internal/api"
	"svcctl/internal/config"
	"svcctl/internal/dependency"
	"svcctl/internal/orchestrator"
	"svcctl/internal/services"
	"svcctl/pkg/logging"
)

// Plan is what applying a flow definition to an empty provider does.
type Plan struct {
	// EnableLevels groups the services to enable; a level only references
	// services of earlier levels.
	EnableLevels [][]string
	// Start lists the components to start once every level is enabled.
	Start    []string
	Warnings []api.CyclicReferenceWarning
}

// BuildPlan computes the plan for def without touching any state.
func BuildPlan(def *config.FlowDefinition) *Plan {
	g := dependency.New()
	var enabled []dependency.NodeID
	for _, s := range def.Services {
		g.AddNode(dependency.Node{
			ID:        dependency.NodeID(s.ID),
			Kind:      api.KindControllerService,
			DependsOn: referenceIDs(s.References),
		})
		if s.Enabled {
			enabled = append(enabled, dependency.NodeID(s.ID))
		}
	}

	levels, warnings := g.Levels(enabled)
	plan := &Plan{Warnings: warnings}
	for _, level := range levels {
		ids := make([]string, len(level))
		for i, id := range level {
			ids[i] = string(id)
		}
		plan.EnableLevels = append(plan.EnableLevels, ids)
	}
	for _, c := range def.Components {
		if c.Running {
			plan.Start = append(plan.Start, c.ID)
		}
	}
	sort.Strings(plan.Start)
	return plan
}

func referenceIDs(refs map[string]string) []dependency.NodeID {
	ids := make([]dependency.NodeID, 0, len(refs))
	for _, id := range refs {
		ids = append(ids, dependency.NodeID(id))
	}
	return ids
}

// ApplyResult lists what Apply changed. Every list is sorted.
type ApplyResult struct {
	Created  []string
	Updated  []string
	Removed  []string
	Enabled  []string
	Disabled []string
	Started  []string
	Stopped  []string
	// Cascades holds the deactivation cascades run before disabling or
	// removing services.
	Cascades []*orchestrator.CascadeResult
}

// Changed reports whether Apply changed anything.
func (r *ApplyResult) Changed() bool {
	return len(r.Created)+len(r.Updated)+len(r.Removed)+len(r.Enabled)+
		len(r.Disabled)+len(r.Started)+len(r.Stopped) > 0
}

func (r *ApplyResult) sort() {
	for _, list := range [][]string{r.Created, r.Updated, r.Removed, r.Enabled, r.Disabled, r.Started, r.Stopped} {
		sort.Strings(list)
	}
}

// Apply brings the provider and the flow in line with def. It is
// idempotent: applying the same definition twice changes nothing the
// second time. Services and components missing from def are stopped,
// disabled and removed; services whose state must change are handled with
// the provider's cascades. The first failure stops Apply; the result holds
// what was changed up to that point. A ctx that is already done changes
// nothing.
func (a *Application) Apply(ctx context.Context, def *config.FlowDefinition) (*ApplyResult, error) {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	if err := ctx.Err(); err != nil {
		return &ApplyResult{}, err
	}

	result := &ApplyResult{}
	defer result.sort()

	p := a.services.Provider
	f := a.services.Flow

	// 1. components that are gone
	for _, c := range f.Components() {
		if _, keep := def.Component(c.ID); keep {
			continue
		}
		if c.Running {
			if err := f.StopComponent(ctx, c.ID); err != nil {
				return result, err
			}
			result.Stopped = append(result.Stopped, c.ID)
		}
		if err := f.Remove(c.ID); err != nil {
			return result, err
		}
		result.Removed = append(result.Removed, c.ID)
	}

	// 2. services that are gone or must be disabled
	for _, node := range p.GetAllControllerServices() {
		desired, keep := def.Service(node.ID())
		if keep && desired.Enabled {
			continue
		}
		if node.State() != services.StateDisabled {
			if err := a.deactivate(ctx, node, result); err != nil {
				return result, err
			}
		}
		if keep {
			continue
		}
		if err := p.RemoveControllerService(node); err != nil {
			return result, err
		}
		result.Removed = append(result.Removed, node.ID())
	}

	// 3. create and reconfigure
	for _, s := range def.Services {
		node, exists := p.GetControllerServiceNode(s.ID)
		if exists && node.TypeName() != s.Type {
			return result, fmt.Errorf("controller service %s cannot change type from %s to %s", s.ID, node.TypeName(), s.Type)
		}
		if !exists {
			var err error
			if node, err = p.CreateControllerService(s.Type, s.ID, true); err != nil {
				return result, err
			}
			result.Created = append(result.Created, s.ID)
		}
		if syncServiceReferences(node, s.References) && exists {
			result.Updated = append(result.Updated, s.ID)
		}
	}

	for _, c := range def.Components {
		updated, created, err := a.syncComponent(c)
		if err != nil {
			return result, err
		}
		switch {
		case created:
			result.Created = append(result.Created, c.ID)
		case updated:
			result.Updated = append(result.Updated, c.ID)
		}
	}

	// 4. components that must stop
	for _, c := range def.Components {
		if c.Running || !f.IsRunning(c.ID) {
			continue
		}
		if err := f.StopComponent(ctx, c.ID); err != nil {
			return result, err
		}
		result.Stopped = append(result.Stopped, c.ID)
	}

	// 5. enable in prerequisite order; referenced services come along
	var toEnable []*services.ServiceNode
	for _, s := range def.Services {
		if node, ok := p.GetControllerServiceNode(s.ID); ok && s.Enabled && !node.IsEnabled() {
			toEnable = append(toEnable, node)
		}
	}
	if len(toEnable) > 0 {
		wasEnabled := make(map[string]bool)
		for _, node := range p.GetAllControllerServices() {
			wasEnabled[node.ID()] = node.IsEnabled()
		}
		err := p.EnableControllerServices(ctx, toEnable)
		for _, node := range p.GetAllControllerServices() {
			if node.IsEnabled() && !wasEnabled[node.ID()] {
				result.Enabled = append(result.Enabled, node.ID())
			}
		}
		if err != nil {
			return result, err
		}
	}

	// 6. start
	for _, id := range BuildPlan(def).Start {
		if f.IsRunning(id) {
			continue
		}
		if err := f.StartComponent(ctx, id); err != nil {
			return result, err
		}
		result.Started = append(result.Started, id)
	}

	if result.Changed() {
		logging.Info("Bootstrap", "Applied flow definition: %d created, %d updated, %d removed, %d enabled, %d disabled, %d started, %d stopped",
			len(result.Created), len(result.Updated), len(result.Removed), len(result.Enabled),
			len(result.Disabled), len(result.Started), len(result.Stopped))
	} else {
		logging.Debug("Bootstrap", "Flow definition already applied")
	}
	return result, nil
}

// deactivate stops everything referencing node, then disables it.
func (a *Application) deactivate(ctx context.Context, node *services.ServiceNode, result *ApplyResult) error {
	p := a.services.Provider

	cascade, err := p.DeactivateReferencingComponents(ctx, node)
	if cascade != nil {
		result.Cascades = append(result.Cascades, cascade)
		for _, ref := range cascade.Applied {
			if ref.Kind == api.KindControllerService {
				result.Disabled = append(result.Disabled, ref.ID)
			} else {
				result.Stopped = append(result.Stopped, ref.ID)
			}
		}
	}
	if err != nil {
		return err
	}

	if err := p.DisableControllerService(ctx, node); err != nil {
		return err
	}
	result.Disabled = append(result.Disabled, node.ID())
	return nil
}

// syncServiceReferences makes node's references equal desired. It reports
// whether anything changed.
func syncServiceReferences(node *services.ServiceNode, desired map[string]string) bool {
	changed := false
	for prop := range node.ServiceReferences() {
		if _, keep := desired[prop]; !keep {
			node.RemoveServiceReference(prop)
			changed = true
		}
	}
	current := node.ServiceReferences()
	for prop, id := range desired {
		if current[prop] != id {
			node.SetServiceReference(prop, id)
			changed = true
		}
	}
	return changed
}

func (a *Application) syncComponent(def config.ComponentDefinition) (updated, created bool, err error) {
	f := a.services.Flow

	status, exists := f.Get(def.ID)
	if exists && status.Kind != def.Kind {
		return false, false, fmt.Errorf("component %s cannot change kind from %s to %s", def.ID, status.Kind, def.Kind)
	}
	if !exists {
		if err := f.Add(def.ID, def.Kind, def.AutoStart); err != nil {
			return false, false, err
		}
		created = true
	} else if status.AutoStart != def.AutoStart {
		if err := f.SetAutoStart(def.ID, def.AutoStart); err != nil {
			return false, false, err
		}
		updated = true
	}

	for prop := range status.References {
		if _, keep := def.References[prop]; !keep {
			if err := f.RemoveServiceReference(def.ID, prop); err != nil {
				return false, false, err
			}
			updated = true
		}
	}
	for prop, id := range def.References {
		if status.References[prop] != id {
			if err := f.SetServiceReference(def.ID, prop, id); err != nil {
				return false, false, err
			}
			updated = true
		}
	}
	return updated && !created, created, nil
}

// Shutdown stops every component and disables every service, dependents
// first, within the configured shutdown timeout. It keeps going after a
// failure and returns all errors joined.
func (a *Application) Shutdown(ctx context.Context) error {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	timeout := config.DefaultShutdownTimeout
	if a.config.Settings != nil && a.config.Settings.ShutdownTimeout > 0 {
		timeout = a.config.Settings.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := a.services.Provider
	f := a.services.Flow
	var errs []error

	for _, c := range f.Components() {
		if !c.Running {
			continue
		}
		if err := f.StopComponent(ctx, c.ID); err != nil {
			logging.Error("Bootstrap", err, "Failed to stop %s %s during shutdown", c.Kind, c.ID)
			errs = append(errs, err)
		}
	}

	nodes := p.GetAllControllerServices()
	ids := make([]dependency.NodeID, len(nodes))
	for i, node := range nodes {
		ids[i] = dependency.NodeID(node.ID())
	}
	levels, _ := p.Graph().Levels(ids)
	for i := len(levels) - 1; i >= 0; i-- {
		for _, id := range levels[i] {
			node, ok := p.GetControllerServiceNode(string(id))
			if !ok || node.State() == services.StateDisabled {
				continue
			}
			if err := p.DisableControllerService(ctx, node); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	logging.Info("Bootstrap", "Shut down %d controller services", len(nodes))
	return nil
}
