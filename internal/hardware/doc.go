// Package hardware orchestrates the room's device modules.
//
// The Manager holds the module registry and drives the shared lifecycle:
// register, initialize, monitor, shut down. Failures are tolerated per
// module: a room with one broken fixture must not refuse to serve the
// rest of its hardware, so initialization counts failures instead of
// propagating them and monitoring fan-outs log and absorb errors.
//
// Registry semantics: registration overwrites by name (last write wins),
// per-module shutdown removes the entry, full shutdown clears the registry
// and resets the initialized flag so the manager stays reusable for mode
// switches. Close is terminal.
package hardware
