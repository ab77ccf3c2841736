// Package core contains the shared data model of the simulation: committed
// events, weighted references, the two intention phases (draft and final),
// admission decisions, and the per-session event id sequence. Types here are
// plain serializable values; behavior lives in the packages that own the
// respective lifecycle stage (eventlog, pipeline, router, memory).
package core
