package services

import (
	"fmt"
	"sort"
	"sync"

	"svcctl/internal/api"
	"svcctl/pkg/logging"
)

// Registry owns every controller service node, keyed by id.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*ServiceNode

	factory       Factory
	hooks         Hooks
	stateChangeCb StateChangeCallback
}

// NewRegistry creates a new service registry. factory resolves type names;
// hooks are invoked at the documented lifecycle points.
func NewRegistry(factory Factory, hooks Hooks) *Registry {
	return &Registry{
		nodes:   make(map[string]*ServiceNode),
		factory: factory,
		hooks:   hooks,
	}
}

// SetStateChangeCallback sets the callback handed to every node created
// after this call.
func (r *Registry) SetStateChangeCallback(callback StateChangeCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateChangeCb = callback
}

// Create constructs a service of typeName under id. The added hook runs
// only when firstTimeAdded is true. The node starts DISABLED.
func (r *Registry) Create(typeName, id string, firstTimeAdded bool) (*ServiceNode, error) {
	if id == "" {
		return nil, fmt.Errorf("controller service id cannot be empty")
	}
	if r.factory == nil {
		return nil, &api.UnknownTypeError{TypeName: typeName}
	}

	r.mu.RLock()
	_, exists := r.nodes[id]
	r.mu.RUnlock()
	if exists {
		return nil, &api.DuplicateIDError{ID: id}
	}

	// Construct outside the lock; the membership check is repeated below.
	instance, err := r.factory.Construct(typeName)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.nodes[id]; exists {
		r.mu.Unlock()
		return nil, &api.DuplicateIDError{ID: id}
	}
	node := newServiceNode(r, id, typeName, instance, r.hooks)
	node.stateChangeCb = r.stateChangeCb
	r.nodes[id] = node
	r.mu.Unlock()

	if firstTimeAdded {
		r.hooks.added(id, instance)
	}

	logging.Debug("Registry", "Created controller service %s of type %s", id, typeName)
	return node, nil
}

// Get returns the node for id and whether it exists.
func (r *Registry) Get(id string) (*ServiceNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, exists := r.nodes[id]
	return node, exists
}

// Contains reports whether node is a live member of this registry.
func (r *Registry) Contains(node *ServiceNode) bool {
	if node == nil {
		return false
	}
	r.mu.RLock()
	current, ok := r.nodes[node.id]
	r.mu.RUnlock()
	return ok && current == node && node.belongsTo(r)
}

// Remove erases a DISABLED node and calls the removed hook. The node's
// transition lock is held while checking its state, so a concurrent
// Enable cannot slip in between.
func (r *Registry) Remove(node *ServiceNode) error {
	if node == nil {
		return fmt.Errorf("cannot remove nil controller service")
	}

	node.transitionMu.Lock()
	defer node.transitionMu.Unlock()

	r.mu.Lock()
	current, ok := r.nodes[node.id]
	if !ok || current != node {
		r.mu.Unlock()
		return &api.NotMemberError{ID: node.id}
	}
	if state := node.State(); !CanTransition(state, api.TransitionRemove) {
		r.mu.Unlock()
		return &api.InvalidStateError{ID: node.id, State: state, Transition: api.TransitionRemove}
	}
	delete(r.nodes, node.id)
	r.mu.Unlock()

	node.markRemoved()
	r.hooks.removed(node.id, node.instance)

	logging.Debug("Registry", "Removed controller service %s", node.id)
	return nil
}

// ListAll returns a snapshot of all nodes sorted by id.
func (r *Registry) ListAll() []*ServiceNode {
	r.mu.RLock()
	nodes := make([]*ServiceNode, 0, len(r.nodes))
	for _, node := range r.nodes {
		nodes = append(nodes, node)
	}
	r.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	return nodes
}

// IdentifiersOfType returns the ids of all services created from typeName,
// sorted.
func (r *Registry) IdentifiersOfType(typeName string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, node := range r.nodes {
		if node.typeName == typeName {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered services
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
