package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"svcctl/internal/api"
	"svcctl/internal/dependency"
	"svcctl/internal/services"
	"svcctl/pkg/logging"
)

// ErrNoComponentController is returned when a cascade has to start or stop
// a processor or reporting task but no ComponentController was configured.
var ErrNoComponentController = errors.New("no component controller configured")

// ReferencingComponent is a processor or reporting task as seen at the
// moment a cascade starts.
type ReferencingComponent struct {
	ID   string
	Kind api.ComponentKind
	// References lists the controller service ids from the component's
	// current configuration.
	References []string
	// AutoStart marks components an activation cascade may start.
	AutoStart bool
}

// ComponentSource exposes the live configuration of every non-service
// component that may reference a controller service.
type ComponentSource interface {
	ReferencingComponents() []ReferencingComponent
}

// ComponentController starts and stops processors and reporting tasks.
// Implementations must return a definite result; timeouts are theirs.
type ComponentController interface {
	StartComponent(ctx context.Context, id string) error
	StopComponent(ctx context.Context, id string) error
	IsRunning(id string) bool
}

// Config holds the configuration for the provider.
type Config struct {
	// Factory resolves service type names. Required.
	Factory services.Factory
	// Hooks overrides the lifecycle callbacks; nil means services.DefaultHooks().
	Hooks *services.Hooks
	// Components and Controller are optional; without them the graph only
	// contains controller services.
	Components ComponentSource
	Controller ComponentController
	// EnableParallelism bounds concurrent enables within one level of
	// EnableControllerServices. Zero or less means unbounded.
	EnableParallelism int
}

// Provider is the controller service provider: the single mutation entry
// point over the registry, the state machine and the cascades.
type Provider struct {
	registry   *services.Registry
	components ComponentSource
	controller ComponentController

	enableParallelism int

	// cascadeMu serialises graph-wide operations. Per-node enable and
	// disable do not take it.
	cascadeMu sync.Mutex

	mu                     sync.RWMutex
	stateChangeSubscribers []chan<- ServiceStateChangedEvent
}

// New creates a new provider.
func New(cfg Config) *Provider {
	hooks := services.DefaultHooks()
	if cfg.Hooks != nil {
		hooks = *cfg.Hooks
	}

	p := &Provider{
		registry:               services.NewRegistry(cfg.Factory, hooks),
		components:             cfg.Components,
		controller:             cfg.Controller,
		enableParallelism:      cfg.EnableParallelism,
		stateChangeSubscribers: make([]chan<- ServiceStateChangedEvent, 0),
	}
	p.registry.SetStateChangeCallback(p.publishStateChangeEvent)
	return p
}

// CreateControllerService creates a new service of typeName with the given
// id. The added hook runs only when firstTimeAdded is true.
func (p *Provider) CreateControllerService(typeName, id string, firstTimeAdded bool) (*services.ServiceNode, error) {
	node, err := p.registry.Create(typeName, id, firstTimeAdded)
	if err != nil {
		return nil, err
	}
	logging.Info("Provider", "Created controller service %s (type %s)", id, typeName)
	return node, nil
}

// GetControllerServiceNode returns the node for id, or false if unknown.
func (p *Provider) GetControllerServiceNode(id string) (*services.ServiceNode, bool) {
	return p.registry.Get(id)
}

// GetControllerService returns the service instance for id.
func (p *Provider) GetControllerService(id string) (services.Instance, bool) {
	node, ok := p.registry.Get(id)
	if !ok {
		return nil, false
	}
	return node.Instance(), true
}

// IsControllerServiceEnabled reports whether id names an ENABLED service.
func (p *Provider) IsControllerServiceEnabled(id string) bool {
	node, ok := p.registry.Get(id)
	return ok && node.IsEnabled()
}

// GetControllerServiceIdentifiers returns the ids of services of typeName.
func (p *Provider) GetControllerServiceIdentifiers(typeName string) []string {
	return p.registry.IdentifiersOfType(typeName)
}

// GetAllControllerServices returns every registered service, sorted by id.
func (p *Provider) GetAllControllerServices() []*services.ServiceNode {
	return p.registry.ListAll()
}

// RemoveControllerService removes a DISABLED service.
func (p *Provider) RemoveControllerService(node *services.ServiceNode) error {
	if err := p.registry.Remove(node); err != nil {
		return err
	}
	logging.Info("Provider", "Removed controller service %s", node.ID())
	return nil
}

// EnableControllerService enables a single service. It returns once the
// node's own transition completes; dependents are not touched.
func (p *Provider) EnableControllerService(ctx context.Context, node *services.ServiceNode) error {
	if err := p.checkMember(node); err != nil {
		return err
	}
	if err := node.Enable(ctx); err != nil {
		logging.Error("Provider", err, "Failed to enable controller service %s", node.ID())
		return err
	}
	logging.Info("Provider", "Enabled controller service %s", node.ID())
	return nil
}

// DisableControllerService disables a single service. Dependents are not
// touched; call DeactivateReferencingComponents first.
func (p *Provider) DisableControllerService(ctx context.Context, node *services.ServiceNode) error {
	if err := p.checkMember(node); err != nil {
		return err
	}
	if err := node.Disable(ctx); err != nil {
		logging.Error("Provider", err, "Error while disabling controller service %s", node.ID())
		return err
	}
	logging.Info("Provider", "Disabled controller service %s", node.ID())
	return nil
}

// EnableControllerServiceByID looks up id and enables it.
func (p *Provider) EnableControllerServiceByID(ctx context.Context, id string) error {
	node, ok := p.registry.Get(id)
	if !ok {
		return api.NewServiceNotFoundError(id)
	}
	return p.EnableControllerService(ctx, node)
}

// DisableControllerServiceByID looks up id and disables it.
func (p *Provider) DisableControllerServiceByID(ctx context.Context, id string) error {
	node, ok := p.registry.Get(id)
	if !ok {
		return api.NewServiceNotFoundError(id)
	}
	return p.DisableControllerService(ctx, node)
}

// RemoveControllerServiceByID looks up id and removes it.
func (p *Provider) RemoveControllerServiceByID(id string) error {
	node, ok := p.registry.Get(id)
	if !ok {
		return api.NewServiceNotFoundError(id)
	}
	return p.RemoveControllerService(node)
}

func (p *Provider) checkMember(node *services.ServiceNode) error {
	if node == nil {
		return fmt.Errorf("controller service node cannot be nil")
	}
	if !p.registry.Contains(node) {
		return &api.NotMemberError{ID: node.ID()}
	}
	return nil
}

// VerifyCanDisable fails with an *api.ActiveReferencesError when a direct
// dependent of node is a running component or a service that is not
// DISABLED.
func (p *Provider) VerifyCanDisable(node *services.ServiceNode) error {
	if err := p.checkMember(node); err != nil {
		return err
	}

	view := p.snapshotView()
	var active []api.ComponentRef
	for _, id := range view.graph.Dependents(dependency.NodeID(node.ID())) {
		ref := view.ref(id)
		if p.isActive(ref) {
			active = append(active, ref)
		}
	}
	if len(active) > 0 {
		return &api.ActiveReferencesError{ID: node.ID(), Active: active}
	}
	return nil
}

func (p *Provider) isActive(ref api.ComponentRef) bool {
	if ref.Kind == api.KindControllerService {
		n, ok := p.registry.Get(ref.ID)
		return ok && n.State() != services.StateDisabled
	}
	return p.controller != nil && p.controller.IsRunning(ref.ID)
}

// EnableControllerServices enables nodes in prerequisite order. Referenced
// services that are not enabled yet are enabled first, even when they are
// not among nodes. Nodes of one level do not reference each other and are
// enabled concurrently. The first failing level stops the operation;
// already enabled nodes stay enabled.
func (p *Provider) EnableControllerServices(ctx context.Context, nodes []*services.ServiceNode) error {
	for _, node := range nodes {
		if err := p.checkMember(node); err != nil {
			return err
		}
	}

	p.cascadeMu.Lock()
	defer p.cascadeMu.Unlock()

	view := p.snapshotView()
	levels, warnings := view.graph.Levels(p.withPrerequisites(view.graph, nodes))
	logWarnings("Provider", warnings)

	for i, level := range levels {
		pending := make([]*services.ServiceNode, 0, len(level))
		for _, id := range level {
			node, ok := p.registry.Get(string(id))
			if !ok {
				return fmt.Errorf("failed to enable controller services at level %d: %w", i, api.NewServiceNotFoundError(string(id)))
			}
			if !node.IsEnabled() {
				pending = append(pending, node)
			}
		}

		g, gctx := errgroup.WithContext(ctx)
		if p.enableParallelism > 0 {
			g.SetLimit(p.enableParallelism)
		}
		for _, node := range pending {
			node := node
			g.Go(func() error {
				return node.Enable(gctx)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("failed to enable controller services at level %d: %w", i, err)
		}
		logging.Debug("Provider", "Enabled level %d: %v", i, level)
	}
	return nil
}

// withPrerequisites returns the ids of nodes plus every service they
// reference, directly or transitively. Enabled prerequisites stay in the set
// so the levels keep the order through them.
func (p *Provider) withPrerequisites(g *dependency.Graph, nodes []*services.ServiceNode) []dependency.NodeID {
	seen := make(map[dependency.NodeID]bool)
	var ids []dependency.NodeID
	add := func(id dependency.NodeID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, node := range nodes {
		id := dependency.NodeID(node.ID())
		add(id)
		for _, ref := range g.Prerequisites(id).Order {
			add(ref)
		}
	}
	return ids
}

// ServiceStatus is a point-in-time view of one controller service.
type ServiceStatus struct {
	ID         string
	Type       string
	State      services.ServiceState
	References []string
	LastError  error
}

// Snapshot returns the status of every service with no transition in
// flight. It acquires all transition locks in ascending id order, so it
// must not be called from inside a lifecycle hook.
func (p *Provider) Snapshot() []ServiceStatus {
	nodes := p.registry.ListAll() // sorted by id

	for _, node := range nodes {
		node.LockTransitions()
	}
	defer func() {
		for i := len(nodes) - 1; i >= 0; i-- {
			nodes[i].UnlockTransitions()
		}
	}()

	statuses := make([]ServiceStatus, 0, len(nodes))
	for _, node := range nodes {
		statuses = append(statuses, ServiceStatus{
			ID:         node.ID(),
			Type:       node.TypeName(),
			State:      node.State(),
			References: node.ReferencedServiceIDs(),
			LastError:  node.LastError(),
		})
	}
	return statuses
}

// Graph returns a snapshot of the current reference graph.
func (p *Provider) Graph() *dependency.Graph {
	return p.snapshotView().graph
}
