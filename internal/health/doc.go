// Package health aggregates device and module health into view state.
//
// The Service tracks every known module name from construction onward,
// including modules that never register (shown as NotImplemented). Two
// paths feed it: health-change events pushed by modules, and a fixed
// five-second poll that re-reads each module's device snapshot. Both
// paths converge on backend truth, so last-write-wins per device is
// acceptable. Events land in a process-wide ring buffer (cap 100) and
// in the owning module's own recent list (cap 50), newest first.
//
// Module status is derived, never backend-reported: disabled wins over
// everything, then uninitialized, then the device health distribution.
// Diagnostics (restart, refresh, connection test, log export) return a
// uniform Result and never panic or propagate errors to the caller.
package health
