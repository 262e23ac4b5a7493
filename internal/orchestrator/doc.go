// Package orchestrator is the provider facade: the single entry point
// through which controller services are created, looked up, enabled,
// disabled and removed.
//
// A Provider wires together a services.Registry, the components of the
// surrounding flow (through ComponentSource and ComponentController) and
// the cascade engine.
//
// # Cascades
//
// DeactivateReferencingComponents stops every running processor and
// reporting task and disables every enabled controller service that
// references a service, directly or through other services. It works
// deepest dependents first, so nothing is stopped while something it
// depends on is still running above it.
//
// ActivateReferencingComponents is the reverse: it makes sure the service
// and its own prerequisites are enabled, then walks the same dependents in
// reverse order, enabling services and starting auto-start components once
// every service they reference is enabled.
//
// Both are idempotent and both stop at the first failure. Nothing is rolled
// back; the returned CascadeResult lists what was applied and the
// *api.CascadeError names the component that failed.
//
// Each cascade works from a fresh dependency.Graph built when it starts, so
// reference changes made in between are always seen. Cascades are
// serialized with each other; enabling or disabling unrelated services
// proceeds concurrently.
//
// # Bulk enable
//
// EnableControllerServices enables a set of services level by level: the
// services of a level are enabled concurrently, bounded by
// Config.EnableParallelism, and the next level starts only once the whole
// level succeeded.
//
// # State changes
//
// Every state transition is published to SubscribeToStateChanges
// subscribers. A subscriber that does not keep up misses events instead of
// blocking the transition.
package orchestrator
