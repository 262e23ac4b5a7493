package flow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"svcctl/internal/api"
	"svcctl/internal/orchestrator"
	"svcctl/pkg/logging"
)

// ServiceLookup reports whether a controller service is enabled.
// *orchestrator.Provider implements it.
type ServiceLookup interface {
	IsControllerServiceEnabled(id string) bool
}

// Options configures a Flow.
type Options struct {
	// Services, when set, is consulted before a component starts: every
	// service it references must be enabled.
	Services ServiceLookup
	// OnStart and OnStop run while the component's state changes. An error
	// leaves the component in its previous state.
	OnStart func(ctx context.Context, id string) error
	OnStop  func(ctx context.Context, id string) error
}

// ComponentStatus is a point-in-time view of a processor or reporting task.
type ComponentStatus struct {
	ID         string
	Kind       api.ComponentKind
	AutoStart  bool
	Running    bool
	References map[string]string
	StartedAt  time.Time
}

type component struct {
	id         string
	kind       api.ComponentKind
	autoStart  bool
	running    bool
	references map[string]string
	startedAt  time.Time
}

func (c *component) status() ComponentStatus {
	refs := make(map[string]string, len(c.references))
	for k, v := range c.references {
		refs[k] = v
	}
	return ComponentStatus{
		ID:         c.id,
		Kind:       c.kind,
		AutoStart:  c.autoStart,
		Running:    c.running,
		References: refs,
		StartedAt:  c.startedAt,
	}
}

func (c *component) referencedServiceIDs() []string {
	seen := make(map[string]bool, len(c.references))
	ids := make([]string, 0, len(c.references))
	for _, id := range c.references {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Flow holds the processors and reporting tasks of a data flow. It
// implements orchestrator.ComponentSource and orchestrator.ComponentController.
type Flow struct {
	mu         sync.RWMutex
	components map[string]*component
	opts       Options
}

var (
	_ orchestrator.ComponentSource     = (*Flow)(nil)
	_ orchestrator.ComponentController = (*Flow)(nil)
)

// New creates an empty flow.
func New(opts Options) *Flow {
	return &Flow{
		components: make(map[string]*component),
		opts:       opts,
	}
}

// SetServiceLookup replaces the lookup used before starting components.
func (f *Flow) SetServiceLookup(lookup ServiceLookup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts.Services = lookup
}

// Add registers a stopped component.
func (f *Flow) Add(id string, kind api.ComponentKind, autoStart bool) error {
	if id == "" {
		return fmt.Errorf("component id cannot be empty")
	}
	if kind != api.KindProcessor && kind != api.KindReportingTask {
		return fmt.Errorf("component %s: unsupported kind %q", id, kind)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.components[id]; exists {
		return &api.DuplicateIDError{ID: id}
	}
	f.components[id] = &component{
		id:         id,
		kind:       kind,
		autoStart:  autoStart,
		references: make(map[string]string),
	}
	logging.Debug("Flow", "Added %s %s", kind, id)
	return nil
}

// Remove deletes a stopped component.
func (f *Flow) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.components[id]
	if !ok {
		return api.NewComponentNotFoundError(id)
	}
	if c.running {
		return fmt.Errorf("component %s must be stopped before it is removed", id)
	}
	delete(f.components, id)
	logging.Debug("Flow", "Removed %s %s", c.kind, id)
	return nil
}

// SetServiceReference points property at serviceID. An empty serviceID
// clears the property.
func (f *Flow) SetServiceReference(id, property, serviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.components[id]
	if !ok {
		return api.NewComponentNotFoundError(id)
	}
	if serviceID == "" {
		delete(c.references, property)
		return nil
	}
	c.references[property] = serviceID
	return nil
}

// RemoveServiceReference clears property.
func (f *Flow) RemoveServiceReference(id, property string) error {
	return f.SetServiceReference(id, property, "")
}

// SetAutoStart changes whether activation cascades may start the component.
func (f *Flow) SetAutoStart(id string, autoStart bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.components[id]
	if !ok {
		return api.NewComponentNotFoundError(id)
	}
	c.autoStart = autoStart
	return nil
}

// Get returns the status of id.
func (f *Flow) Get(id string) (ComponentStatus, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c, ok := f.components[id]
	if !ok {
		return ComponentStatus{}, false
	}
	return c.status(), true
}

// Components returns the status of every component, sorted by id.
func (f *Flow) Components() []ComponentStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]ComponentStatus, 0, len(f.components))
	for _, c := range f.components {
		out = append(out, c.status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReferencingComponents implements orchestrator.ComponentSource.
func (f *Flow) ReferencingComponents() []orchestrator.ReferencingComponent {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]orchestrator.ReferencingComponent, 0, len(f.components))
	for _, c := range f.components {
		out = append(out, orchestrator.ReferencingComponent{
			ID:         c.id,
			Kind:       c.kind,
			References: c.referencedServiceIDs(),
			AutoStart:  c.autoStart,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StartComponent implements orchestrator.ComponentController. Starting a
// running component is a no-op.
func (f *Flow) StartComponent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.components[id]
	if !ok {
		return api.NewComponentNotFoundError(id)
	}
	if c.running {
		return nil
	}

	if f.opts.Services != nil {
		for _, svc := range c.referencedServiceIDs() {
			if !f.opts.Services.IsControllerServiceEnabled(svc) {
				return fmt.Errorf("%s %s references controller service %s which is not enabled", c.kind, id, svc)
			}
		}
	}

	if f.opts.OnStart != nil {
		if err := f.opts.OnStart(ctx, id); err != nil {
			return err
		}
	}

	c.running = true
	c.startedAt = time.Now()
	logging.Info("Flow", "Started %s %s", c.kind, id)
	return nil
}

// StopComponent implements orchestrator.ComponentController. Stopping a
// stopped component is a no-op.
func (f *Flow) StopComponent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.components[id]
	if !ok {
		return api.NewComponentNotFoundError(id)
	}
	if !c.running {
		return nil
	}

	if f.opts.OnStop != nil {
		if err := f.opts.OnStop(ctx, id); err != nil {
			return err
		}
	}

	c.running = false
	c.startedAt = time.Time{}
	logging.Info("Flow", "Stopped %s %s", c.kind, id)
	return nil
}

// IsRunning implements orchestrator.ComponentController.
func (f *Flow) IsRunning(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	c, ok := f.components[id]
	return ok && c.running
}
