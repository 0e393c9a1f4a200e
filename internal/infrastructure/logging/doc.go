// Package logging provides structured logging for Roomwall Core.
//
// It wraps log/slog with level parsing, output format selection, and
// default service attributes. Components derive scoped loggers via With:
//
//	apiLogger := logger.With("component", "api")
//
// Thread Safety: all methods are safe for concurrent use.
package logging
