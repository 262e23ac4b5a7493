// Package services holds controller service nodes and their lifecycle.
//
// A Registry creates nodes through a Factory and keeps them unique by id.
// Each ServiceNode moves through DISABLED, ENABLING, ENABLED and DISABLING;
// Enable and Disable run the injected Hooks between the intermediate and
// the final state. A node whose enable hook fails ends up DISABLED with the
// error recorded in LastError.
//
// A node is only removable while DISABLED, and a removed node no longer
// belongs to any registry.
//
// Transitions of one node are serialized by the node. Registry lookups can
// run at any time; the registry lock is always taken after a node's
// transition lock, never before.
package services
