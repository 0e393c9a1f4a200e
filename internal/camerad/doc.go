// Package camerad supervises the camera controller child process and
// relays camera commands to its local HTTP API.
//
// The controller owns the vendor camera protocol; this core only keeps
// it alive and proxies requests. Supervision runs through the process
// manager with escalating restart backoff, and responses from the
// controller are relayed to callers verbatim so protocol changes on the
// controller side never require a core release.
//
// Camera identities exposed upstream are stable "camera-N" names mapped
// to the controller's own hardware IDs in SQLite, so a controller
// restart that re-enumerates hardware does not reshuffle the names.
package camerad
