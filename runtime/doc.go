// Package runtime assembles a running simulation from its parts: it opens
// the session store, builds the world and its observers, wires the
// maintenance subsystem, selects a scheduling strategy and a generative
// backend, and drives the synchronous turn loop. The loop is the single
// committer; everything asynchronous hangs off the world as an observer.
package runtime
