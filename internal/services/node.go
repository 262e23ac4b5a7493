package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"svcctl/internal/api"
	"svcctl/pkg/logging"
)

// ServiceNode is a controller service owned by a Registry. Its id, type and
// instance never change; its state only changes through Enable and Disable.
type ServiceNode struct {
	id       string
	typeName string
	instance Instance
	hooks    Hooks
	owner    *Registry

	// transitionMu is held for the whole ENABLING/DISABLING window and
	// during removal, so transitions on one node are serialised.
	transitionMu sync.Mutex

	mu            sync.RWMutex
	state         ServiceState
	lastError     error
	removed       bool
	references    map[string]string // property name -> referenced service id
	createdAt     time.Time
	updatedAt     time.Time
	stateChangeCb StateChangeCallback
}

func newServiceNode(owner *Registry, id, typeName string, instance Instance, hooks Hooks) *ServiceNode {
	now := time.Now()
	return &ServiceNode{
		id:         id,
		typeName:   typeName,
		instance:   instance,
		hooks:      hooks,
		owner:      owner,
		state:      StateDisabled,
		references: make(map[string]string),
		createdAt:  now,
		updatedAt:  now,
	}
}

// ID returns the service identifier
func (n *ServiceNode) ID() string {
	return n.id
}

// TypeName returns the implementation type the service was created from
func (n *ServiceNode) TypeName() string {
	return n.typeName
}

// Instance returns the constructed service implementation
func (n *ServiceNode) Instance() Instance {
	return n.instance
}

// State returns the current lifecycle state. It never blocks on a
// transition in progress.
func (n *ServiceNode) State() ServiceState {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

// IsEnabled reports whether the service is ENABLED.
func (n *ServiceNode) IsEnabled() bool {
	return n.State() == StateEnabled
}

// LastError returns the error of the most recent failed transition, if any.
func (n *ServiceNode) LastError() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastError
}

// CreatedAt returns when the node was created
func (n *ServiceNode) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node last changed state or configuration
func (n *ServiceNode) UpdatedAt() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.updatedAt
}

// SetStateChangeCallback sets the state change callback
func (n *ServiceNode) SetStateChangeCallback(callback StateChangeCallback) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stateChangeCb = callback
}

// SetServiceReference records that property points at the service serviceID.
// Edges in the reference graph are derived from these values.
func (n *ServiceNode) SetServiceReference(property, serviceID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if serviceID == "" {
		delete(n.references, property)
	} else {
		n.references[property] = serviceID
	}
	n.updatedAt = time.Now()
}

// RemoveServiceReference clears a service reference property
func (n *ServiceNode) RemoveServiceReference(property string) {
	n.SetServiceReference(property, "")
}

// ServiceReferences returns a copy of the property -> service id map.
func (n *ServiceNode) ServiceReferences() map[string]string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(map[string]string, len(n.references))
	for k, v := range n.references {
		out[k] = v
	}
	return out
}

// ReferencedServiceIDs returns the distinct services this node references,
// sorted by id.
func (n *ServiceNode) ReferencedServiceIDs() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return distinctValues(n.references)
}

func distinctValues(m map[string]string) []string {
	seen := make(map[string]struct{}, len(m))
	ids := make([]string, 0, len(m))
	for _, id := range m {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Enable moves the node DISABLED → ENABLING → ENABLED. When the enabled
// hook fails the node returns to DISABLED and the hook error is returned.
// A concurrent Enable on the same node waits for this one to finish and
// then fails with an *api.InvalidStateError.
func (n *ServiceNode) Enable(ctx context.Context) error {
	n.transitionMu.Lock()
	defer n.transitionMu.Unlock()

	if err := n.begin(api.TransitionEnable, StateEnabling); err != nil {
		return err
	}

	logging.Debug("ServiceNode", "Enabling controller service %s (%s)", n.id, n.typeName)
	if err := n.hooks.enabled(ctx, n.id, n.instance); err != nil {
		err = fmt.Errorf("failed to enable controller service %s: %w", n.id, err)
		n.updateState(StateDisabled, err)
		return err
	}

	n.updateState(StateEnabled, nil)
	return nil
}

// Disable moves the node ENABLED → DISABLING → DISABLED. The node always
// ends DISABLED; a failing disabled hook is still reported to the caller.
func (n *ServiceNode) Disable(ctx context.Context) error {
	n.transitionMu.Lock()
	defer n.transitionMu.Unlock()

	if err := n.begin(api.TransitionDisable, StateDisabling); err != nil {
		return err
	}

	logging.Debug("ServiceNode", "Disabling controller service %s (%s)", n.id, n.typeName)
	if err := n.hooks.disabled(ctx, n.id, n.instance); err != nil {
		err = fmt.Errorf("failed to disable controller service %s: %w", n.id, err)
		n.updateState(StateDisabled, err)
		return err
	}

	n.updateState(StateDisabled, nil)
	return nil
}

// begin validates op against the current state and enters the intermediate
// state. Callers hold transitionMu.
func (n *ServiceNode) begin(op api.Transition, intermediate ServiceState) error {
	n.mu.RLock()
	state, removed := n.state, n.removed
	n.mu.RUnlock()

	if removed {
		return &api.NotMemberError{ID: n.id}
	}
	if !CanTransition(state, op) {
		return &api.InvalidStateError{ID: n.id, State: state, Transition: op}
	}

	n.updateState(intermediate, nil)
	return nil
}

// updateState records the new state and notifies the callback outside of
// the lock.
func (n *ServiceNode) updateState(newState ServiceState, err error) {
	n.mu.Lock()
	oldState := n.state
	if !ValidTransition(oldState, newState) {
		n.mu.Unlock()
		logging.Error("ServiceNode", fmt.Errorf("illegal transition"), "Refusing %s -> %s for %s", oldState, newState, n.id)
		return
	}
	n.state = newState
	n.lastError = err
	n.updatedAt = time.Now()
	callback := n.stateChangeCb
	n.mu.Unlock()

	if callback != nil {
		callback(n.id, oldState, newState, err)
	}
}

// belongsTo reports whether n is still a live member of r.
func (n *ServiceNode) belongsTo(r *Registry) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.owner == r && !n.removed
}

func (n *ServiceNode) markRemoved() {
	n.mu.Lock()
	n.removed = true
	n.updatedAt = time.Now()
	n.mu.Unlock()
}

// LockTransitions acquires the node's transition lock. While held, no
// enable, disable or removal can run on the node. Callers locking several
// nodes must do so in ascending id order.
func (n *ServiceNode) LockTransitions() {
	n.transitionMu.Lock()
}

// UnlockTransitions releases the lock taken by LockTransitions.
func (n *ServiceNode) UnlockTransitions() {
	n.transitionMu.Unlock()
}
