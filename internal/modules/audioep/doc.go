// Package audioep implements mixer-endpoint modules. Microphones and
// speakers are the same machinery pointed at different mixer object
// classes, so one module type serves both, registered under its own
// name per family.
package audioep
