// Package memory derives secondary session state from committed events
// without ever blocking the commit path: per-actor task tables, the shared
// tag index, rolling team-progress summaries, and re-scored citation
// weights.
//
// SessionMemory is the concurrent maintainer: a fixed pool of workers
// consumes committed events from a bounded queue, a weighted semaphore
// gates concurrent external scoring calls, and one mutex per shared file
// (tag index, team board, each actor's task table) serializes writers.
// Derived updates flow back into the event log through its dedicated
// derived-field path and are eventually consistent with the commit itself.
package memory
