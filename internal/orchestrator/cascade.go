package orchestrator

import (
	"context"
	"fmt"

	"svcctl/internal/api"
	"svcctl/internal/dependency"
	"svcctl/internal/services"
	"svcctl/pkg/logging"
)

// CascadeResult describes what a cascade did. On failure it is returned
// together with an *api.CascadeError and holds the already-applied prefix.
type CascadeResult struct {
	Operation api.CascadeOperation
	Service   string
	// Applied lists components whose state the cascade changed, in order.
	Applied []api.ComponentRef
	// Skipped lists components that were already in the desired state or,
	// for activation, not marked to auto-start.
	Skipped  []api.ComponentRef
	Warnings []api.CyclicReferenceWarning
}

// cascadeView is the consistent picture of the reference graph one cascade
// works from.
type cascadeView struct {
	graph     *dependency.Graph
	autoStart map[dependency.NodeID]bool
}

func (v *cascadeView) ref(id dependency.NodeID) api.ComponentRef {
	return api.ComponentRef{ID: string(id), Kind: v.graph.Kind(id)}
}

// snapshotView reads every service's and component's references once.
func (p *Provider) snapshotView() *cascadeView {
	view := &cascadeView{
		graph:     dependency.New(),
		autoStart: make(map[dependency.NodeID]bool),
	}

	for _, node := range p.registry.ListAll() {
		view.graph.AddNode(dependency.Node{
			ID:        dependency.NodeID(node.ID()),
			Kind:      api.KindControllerService,
			DependsOn: toNodeIDs(node.ReferencedServiceIDs()),
		})
	}

	if p.components != nil {
		for _, c := range p.components.ReferencingComponents() {
			id := dependency.NodeID(c.ID)
			if existing := view.graph.Get(id); existing != nil && existing.Kind == api.KindControllerService {
				logging.Warn("Cascade", "Component %s shadows a controller service id, ignoring it", c.ID)
				continue
			}
			view.graph.AddNode(dependency.Node{
				ID:        id,
				Kind:      c.Kind,
				DependsOn: toNodeIDs(c.References),
			})
			view.autoStart[id] = c.AutoStart
		}
	}
	return view
}

func toNodeIDs(ids []string) []dependency.NodeID {
	out := make([]dependency.NodeID, len(ids))
	for i, id := range ids {
		out[i] = dependency.NodeID(id)
	}
	return out
}

func logWarnings(subsystem string, warnings []api.CyclicReferenceWarning) {
	for _, w := range warnings {
		logging.Warn(subsystem, "Detected %s; traversal continues without re-entering it", w)
	}
}

// cascadeRun carries the state of one cascade call.
type cascadeRun struct {
	p       *Provider
	view    *cascadeView
	result  *CascadeResult
	handled map[dependency.NodeID]bool
	cycles  map[api.CyclicReferenceWarning]bool
}

func (p *Provider) newRun(op api.CascadeOperation, node *services.ServiceNode) *cascadeRun {
	return &cascadeRun{
		p:    p,
		view: p.snapshotView(),
		result: &CascadeResult{
			Operation: op,
			Service:   node.ID(),
		},
		handled: make(map[dependency.NodeID]bool),
		cycles:  make(map[api.CyclicReferenceWarning]bool),
	}
}

// warn records each distinct cycle edge once per cascade.
func (r *cascadeRun) warn(warnings []api.CyclicReferenceWarning) {
	var fresh []api.CyclicReferenceWarning
	for _, w := range warnings {
		if r.cycles[w] {
			continue
		}
		r.cycles[w] = true
		fresh = append(fresh, w)
	}
	logWarnings("Cascade", fresh)
	r.result.Warnings = append(r.result.Warnings, fresh...)
}

func (r *cascadeRun) record(ref api.ComponentRef, applied bool) {
	if applied {
		r.result.Applied = append(r.result.Applied, ref)
	} else {
		r.result.Skipped = append(r.result.Skipped, ref)
	}
}

func (r *cascadeRun) fail(ref api.ComponentRef, err error) error {
	applied := make([]api.ComponentRef, len(r.result.Applied))
	copy(applied, r.result.Applied)
	logging.Error("Cascade", err, "%s of components referencing %s stopped at %s (%d already applied)",
		r.result.Operation, r.result.Service, ref, len(applied))
	return &api.CascadeError{
		Operation: r.result.Operation,
		Service:   r.result.Service,
		Failed:    ref,
		Applied:   applied,
		Err:       err,
	}
}

// DeactivateReferencingComponents stops every running processor and
// reporting task and disables every enabled service that references node,
// directly or transitively. Deepest dependents go first. Components already
// stopped or disabled are skipped, so a second call is a no-op. The first
// failure ends the cascade; nothing is rolled back. node itself is never
// changed.
func (p *Provider) DeactivateReferencingComponents(ctx context.Context, node *services.ServiceNode) (*CascadeResult, error) {
	if err := p.checkMember(node); err != nil {
		return nil, err
	}

	p.cascadeMu.Lock()
	defer p.cascadeMu.Unlock()

	run := p.newRun(api.OperationDeactivate, node)
	order := run.view.graph.TransitiveDependents(dependency.NodeID(node.ID()))
	run.warn(order.Warnings)

	logging.Info("Cascade", "Deactivating %d components referencing %s", len(order.Order), node.ID())
	for _, id := range order.Order {
		ref := run.view.ref(id)
		applied, err := run.deactivate(ctx, ref)
		if err != nil {
			return run.result, run.fail(ref, err)
		}
		run.record(ref, applied)
	}

	logging.Info("Cascade", "Deactivated components referencing %s (applied %d, skipped %d)",
		node.ID(), len(run.result.Applied), len(run.result.Skipped))
	return run.result, nil
}

// deactivate stops or disables one component. It reports whether anything
// changed.
func (r *cascadeRun) deactivate(ctx context.Context, ref api.ComponentRef) (bool, error) {
	switch ref.Kind {
	case api.KindControllerService:
		node, ok := r.p.registry.Get(ref.ID)
		if !ok {
			// removed since the snapshot; nothing to disable
			return false, nil
		}
		if node.State() == services.StateDisabled {
			return false, nil
		}
		err := node.Disable(ctx)
		if api.IsInvalidState(err) && node.State() == services.StateDisabled {
			// a concurrent disable finished first
			return false, nil
		}
		if err != nil {
			return false, err
		}
		logging.Debug("Cascade", "Disabled controller service %s", ref.ID)
		return true, nil

	default:
		if r.p.controller == nil {
			return false, ErrNoComponentController
		}
		if !r.p.controller.IsRunning(ref.ID) {
			return false, nil
		}
		if err := r.p.controller.StopComponent(ctx, ref.ID); err != nil {
			return false, fmt.Errorf("failed to stop %s: %w", ref, err)
		}
		logging.Debug("Cascade", "Stopped %s", ref)
		return true, nil
	}
}

// ActivateReferencingComponents enables node's prerequisites and node
// itself if needed, then walks node's dependents in reverse deactivation
// order: disabled services are enabled after their own prerequisites, and
// stopped processors and reporting tasks marked auto-start are started once
// every service they reference is enabled. The first failure ends the
// cascade; nothing is rolled back.
func (p *Provider) ActivateReferencingComponents(ctx context.Context, node *services.ServiceNode) (*CascadeResult, error) {
	if err := p.checkMember(node); err != nil {
		return nil, err
	}

	p.cascadeMu.Lock()
	defer p.cascadeMu.Unlock()

	run := p.newRun(api.OperationActivate, node)
	start := dependency.NodeID(node.ID())

	if ref, err := run.ensureEnabled(ctx, start); err != nil {
		return run.result, run.fail(ref, err)
	}

	order := run.view.graph.TransitiveDependents(start)
	run.warn(order.Warnings)

	logging.Info("Cascade", "Activating %d components referencing %s", len(order.Order), node.ID())
	for i := len(order.Order) - 1; i >= 0; i-- {
		id := order.Order[i]
		ref := run.view.ref(id)

		if ref.Kind == api.KindControllerService {
			if failed, err := run.ensureEnabled(ctx, id); err != nil {
				return run.result, run.fail(failed, err)
			}
			continue
		}

		if failed, err := run.activateComponent(ctx, id); err != nil {
			return run.result, run.fail(failed, err)
		}
	}

	logging.Info("Cascade", "Activated components referencing %s (applied %d, skipped %d)",
		node.ID(), len(run.result.Applied), len(run.result.Skipped))
	return run.result, nil
}

// ensureEnabled enables id's prerequisites, deepest first, then id. It
// returns the component that failed.
func (r *cascadeRun) ensureEnabled(ctx context.Context, id dependency.NodeID) (api.ComponentRef, error) {
	prereqs := r.view.graph.Prerequisites(id)
	r.warn(prereqs.Warnings)

	for _, svc := range append(prereqs.Order, id) {
		ref := api.ComponentRef{ID: string(svc), Kind: api.KindControllerService}
		if err := r.enableService(ctx, svc); err != nil {
			return ref, err
		}
	}
	return api.ComponentRef{}, nil
}

func (r *cascadeRun) enableService(ctx context.Context, id dependency.NodeID) error {
	if r.handled[id] {
		return nil
	}

	ref := api.ComponentRef{ID: string(id), Kind: api.KindControllerService}
	node, ok := r.p.registry.Get(string(id))
	if !ok {
		return api.NewServiceNotFoundError(string(id))
	}

	if node.IsEnabled() {
		r.handled[id] = true
		r.record(ref, false)
		return nil
	}

	err := node.Enable(ctx)
	if api.IsInvalidState(err) && node.IsEnabled() {
		// a concurrent enable finished first
		r.handled[id] = true
		r.record(ref, false)
		return nil
	}
	if err != nil {
		return err
	}

	r.handled[id] = true
	r.record(ref, true)
	logging.Debug("Cascade", "Enabled controller service %s", id)
	return nil
}

// activateComponent starts a stopped auto-start processor or reporting
// task after enabling the services it references.
func (r *cascadeRun) activateComponent(ctx context.Context, id dependency.NodeID) (api.ComponentRef, error) {
	ref := r.view.ref(id)
	if r.p.controller == nil {
		return ref, ErrNoComponentController
	}
	if r.p.controller.IsRunning(ref.ID) || !r.view.autoStart[id] {
		r.record(ref, false)
		return api.ComponentRef{}, nil
	}

	for _, svc := range r.view.graph.References(id) {
		if failed, err := r.ensureEnabled(ctx, svc); err != nil {
			return failed, err
		}
	}

	if err := r.p.controller.StartComponent(ctx, ref.ID); err != nil {
		return ref, fmt.Errorf("failed to start %s: %w", ref, err)
	}
	r.record(ref, true)
	logging.Debug("Cascade", "Started %s", ref)
	return api.ComponentRef{}, nil
}
