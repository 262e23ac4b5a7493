// internal/dependency/graph.go
package dependency

import (
	"sort"

	"svcctl/internal/api"
)

// NodeID is the unique identifier for a node inside a dependency graph.
// Processors, reporting tasks and controller services share one id space.
type NodeID string

// Node represents a component together with the services it references.
// DependsOn may name services that are not part of the graph (dangling
// references); queries still report them.
type Node struct {
	ID        NodeID
	Kind      api.ComponentKind
	DependsOn []NodeID
}

// Graph is an immutable-by-convention snapshot of the reference relation.
// It is *not* thread-safe by itself; a cascade builds one, then only reads
// it.
type Graph struct {
	nodes map[NodeID]*Node

	// reverse index, rebuilt on first query after a mutation
	dependents map[NodeID][]NodeID
	dirty      bool
}

// Traversal is the result of a guarded depth-first walk.
type Traversal struct {
	// Order lists the visited nodes, excluding the start node.
	Order []NodeID
	// Warnings holds one entry per edge that pointed back into the
	// current path.
	Warnings []api.CyclicReferenceWarning
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[NodeID]*Node)}
}

// AddNode adds (or replaces) a node in the graph.
func (g *Graph) AddNode(n Node) {
	if g.nodes == nil {
		g.nodes = make(map[NodeID]*Node)
	}
	// Copy to avoid external mutations
	copied := n
	copied.DependsOn = normalise(n.DependsOn)
	g.nodes[n.ID] = &copied
	g.dirty = true
}

// normalise sorts and de-duplicates ids so traversals are deterministic.
func normalise(ids []NodeID) []NodeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]NodeID, 0, len(ids))
	seen := make(map[NodeID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Get returns a pointer to the stored node or nil if it does not exist.
func (g *Graph) Get(id NodeID) *Node {
	return g.nodes[id]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Kind returns the kind of a node, or "" for unknown ids.
func (g *Graph) Kind(id NodeID) api.ComponentKind {
	if n, ok := g.nodes[id]; ok {
		return n.Kind
	}
	return ""
}

// References returns the services a node references directly.
func (g *Graph) References(id NodeID) []NodeID {
	if n, ok := g.nodes[id]; ok {
		// Return a copy to avoid callers modifying internal slice.
		depsCopy := make([]NodeID, len(n.DependsOn))
		copy(depsCopy, n.DependsOn)
		return depsCopy
	}
	return nil
}

// Dependents returns all node IDs that have a direct reference to the given
// node, sorted.
func (g *Graph) Dependents(id NodeID) []NodeID {
	g.index()
	deps := g.dependents[id]
	out := make([]NodeID, len(deps))
	copy(out, deps)
	return out
}

func (g *Graph) index() {
	if !g.dirty && g.dependents != nil {
		return
	}
	g.dependents = make(map[NodeID][]NodeID)
	for _, n := range g.nodes {
		for _, dep := range n.DependsOn {
			g.dependents[dep] = append(g.dependents[dep], n.ID)
		}
	}
	for id := range g.dependents {
		list := g.dependents[id]
		sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	}
	g.dirty = false
}

// TransitiveDependents walks "depends on me" edges from id. A node appears
// in Order only after every node depending on it, so stopping in Order is
// deepest-dependent-first. Reversing Order gives an activation order.
func (g *Graph) TransitiveDependents(id NodeID) Traversal {
	return g.walk(id, g.Dependents)
}

// Prerequisites walks reference edges from id. Order lists the deepest
// prerequisite first, so enabling in Order never enables a service before
// something it references.
func (g *Graph) Prerequisites(id NodeID) Traversal {
	return g.walk(id, g.References)
}

type visitMark int

const (
	unvisited visitMark = iota
	inProgress
	visited
)

// walk is a post-order depth-first traversal. A node already visited is not
// revisited; an edge into a node that is still in progress is a cycle and
// is recorded instead of followed.
func (g *Graph) walk(start NodeID, next func(NodeID) []NodeID) Traversal {
	var t Traversal
	marks := make(map[NodeID]visitMark)

	var visit func(id NodeID)
	visit = func(id NodeID) {
		marks[id] = inProgress
		for _, n := range next(id) {
			switch marks[n] {
			case inProgress:
				t.Warnings = append(t.Warnings, api.CyclicReferenceWarning{From: string(id), To: string(n)})
			case visited:
			default:
				visit(n)
			}
		}
		marks[id] = visited
		if id != start {
			t.Order = append(t.Order, id)
		}
	}
	visit(start)

	return t
}

// Levels groups ids so that every node's references inside the set sit in
// an earlier level. Nodes within one level do not reference each other and
// can be processed concurrently. Cycle edges are ignored and reported.
func (g *Graph) Levels(ids []NodeID) ([][]NodeID, []api.CyclicReferenceWarning) {
	members := make(map[NodeID]bool, len(ids))
	for _, id := range ids {
		members[id] = true
	}

	var warnings []api.CyclicReferenceWarning
	marks := make(map[NodeID]visitMark)
	depth := make(map[NodeID]int)

	var visit func(id NodeID) int
	visit = func(id NodeID) int {
		marks[id] = inProgress
		d := 0
		for _, ref := range g.References(id) {
			if !members[ref] {
				continue
			}
			switch marks[ref] {
			case inProgress:
				warnings = append(warnings, api.CyclicReferenceWarning{From: string(id), To: string(ref)})
				continue
			case unvisited:
				visit(ref)
			}
			if depth[ref]+1 > d {
				d = depth[ref] + 1
			}
		}
		marks[id] = visited
		depth[id] = d
		return d
	}

	sorted := normalise(ids)
	maxDepth := -1
	for _, id := range sorted {
		if marks[id] == unvisited {
			visit(id)
		}
		if depth[id] > maxDepth {
			maxDepth = depth[id]
		}
	}

	levels := make([][]NodeID, maxDepth+1)
	for _, id := range sorted {
		levels[depth[id]] = append(levels[depth[id]], id)
	}
	return levels, warnings
}
