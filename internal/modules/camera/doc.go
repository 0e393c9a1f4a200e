// Package camera exposes PTZ cameras through the supervised camera
// controller child process. Device identities are stable camera-N names
// backed by the persisted ID map, and per-camera commands relay to the
// controller verbatim. When the controller's restart budget is spent
// every camera reports offline until the core itself restarts.
package camera
