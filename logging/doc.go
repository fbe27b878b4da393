// Package logging provides a minimal logging interface and adapters for dialogmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, the dialogue processor and the stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - DialogLogger with conversation scoped helpers for turns, actions and resolver calls
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(store, processor, func(o *engine.Options) { o.Logger = logger })
package logging
