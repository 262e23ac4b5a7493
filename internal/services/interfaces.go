package services

import (
	"context"

	"svcctl/internal/api"
)

// Use API package types instead of duplicating them
type ServiceState = api.ServiceState

const (
	StateDisabled  = api.StateDisabled
	StateEnabling  = api.StateEnabling
	StateEnabled   = api.StateEnabled
	StateDisabling = api.StateDisabling
)

// Instance is the constructed business logic behind a controller service.
// The core never inspects it beyond the optional interfaces below.
type Instance interface{}

// Factory constructs service instances from a type name. Implementations
// return an *api.UnknownTypeError when the type cannot be resolved.
type Factory interface {
	Construct(typeName string) (Instance, error)
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(typeName string) (Instance, error)

// Construct calls f(typeName).
func (f FactoryFunc) Construct(typeName string) (Instance, error) {
	return f(typeName)
}

// Enabler is an optional interface for instances that need to set up
// operational state when their service is enabled.
type Enabler interface {
	Enable(ctx context.Context) error
}

// Disabler is an optional interface for instances that release resources
// when their service is disabled.
type Disabler interface {
	Disable(ctx context.Context) error
}

// AddedNotifier is an optional interface called when a service is added to
// the flow for the first time.
type AddedNotifier interface {
	OnAdded()
}

// RemovedNotifier is an optional interface called when a service is removed.
type RemovedNotifier interface {
	OnRemoved()
}

// Hooks are the lifecycle callbacks invoked by the registry and the state
// machine. Nil fields are no-ops.
type Hooks struct {
	OnAdded    func(id string, instance Instance)
	OnRemoved  func(id string, instance Instance)
	OnEnabled  func(ctx context.Context, id string, instance Instance) error
	OnDisabled func(ctx context.Context, id string, instance Instance) error
}

// DefaultHooks returns hooks that delegate to the optional instance
// interfaces (Enabler, Disabler, AddedNotifier, RemovedNotifier).
func DefaultHooks() Hooks {
	return Hooks{
		OnAdded: func(_ string, instance Instance) {
			if n, ok := instance.(AddedNotifier); ok {
				n.OnAdded()
			}
		},
		OnRemoved: func(_ string, instance Instance) {
			if n, ok := instance.(RemovedNotifier); ok {
				n.OnRemoved()
			}
		},
		OnEnabled: func(ctx context.Context, _ string, instance Instance) error {
			if e, ok := instance.(Enabler); ok {
				return e.Enable(ctx)
			}
			return nil
		},
		OnDisabled: func(ctx context.Context, _ string, instance Instance) error {
			if d, ok := instance.(Disabler); ok {
				return d.Disable(ctx)
			}
			return nil
		},
	}
}

func (h Hooks) added(id string, instance Instance) {
	if h.OnAdded != nil {
		h.OnAdded(id, instance)
	}
}

func (h Hooks) removed(id string, instance Instance) {
	if h.OnRemoved != nil {
		h.OnRemoved(id, instance)
	}
}

func (h Hooks) enabled(ctx context.Context, id string, instance Instance) error {
	if h.OnEnabled == nil {
		return nil
	}
	return h.OnEnabled(ctx, id, instance)
}

func (h Hooks) disabled(ctx context.Context, id string, instance Instance) error {
	if h.OnDisabled == nil {
		return nil
	}
	return h.OnDisabled(ctx, id, instance)
}

// StateChangeCallback is called after every state change of a node
type StateChangeCallback func(id string, oldState, newState ServiceState, err error)
