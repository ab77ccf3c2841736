// Package logging provides a minimal logging interface and adapters for the
// simulation runtime.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the runtime, pipeline, and maintenance workers use for
// observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - RunLogger with session/tick contextual helpers
//
// The design intentionally keeps the interface minimal so callers can plug
// in any structured logger while the default path stays on slog.
package logging
