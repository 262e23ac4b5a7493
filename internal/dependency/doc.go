// Package dependency models the reference graph between controller services
// and the processors and reporting tasks that use them.
//
// A Graph is a snapshot: it is built from the references that exist at one
// moment and never updated afterwards. Callers that need the current
// relation build a new one.
//
// # Edges
//
// Node.DependsOn lists the controller services a node references. The
// reverse edges, Dependents, are derived once and kept sorted so every
// traversal is deterministic:
//
//	db  <-  cache  <-  ingest (processor)
//	 ^
//	 +----  report (reporting task)
//
// Here Dependents("db") is [cache report] and Prerequisites("ingest")
// visits db before cache.
//
// # Traversals
//
// TransitiveDependents and Prerequisites walk the graph depth first and
// return nodes in post-order, deepest first, without the start node. That
// is the order in which dependents must be stopped, and reversed, the order
// in which they can be started again.
//
// Cycles are not an error. A walk keeps a visited set, so it always ends,
// and reports every edge that points back to a node still on the current
// path as an api.CyclicReferenceWarning.
//
// Levels groups nodes so that each level only references nodes of earlier
// levels; nodes of one level can be enabled concurrently.
package dependency
