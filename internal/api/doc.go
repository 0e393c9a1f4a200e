// Package api provides the HTTP REST and WebSocket surface for the
// room core.
//
// The route table adapts to whichever modules are actually registered:
// a fixed system group (status, health, devices) always exists, then
// each registered module contributes its own endpoint group derived
// from the capabilities it implements. Registration of one module's
// group is panic-isolated so a buggy module never takes down the REST
// surface for its siblings. A navigation group is always present for
// the shell collaborator, and a media group only when media serving is
// enabled in configuration.
//
// All responses use one envelope: {"success":true,"data":...} or
// {"success":false,"error":{"code","message","details"?}} with the
// HTTP status mirroring the error code.
//
// On startup the server can evict a stale process still bound to its
// port, handling unclean exits of a previous instance.
package api
