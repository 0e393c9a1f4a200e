// Package lighting exposes DMX fixtures as devices. The transmitter's
// continuous frame loop starts with the module and stops with it, and
// per-fixture health follows whether frames are reaching the adapter.
package lighting
