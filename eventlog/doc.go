// Package eventlog persists the session's event history as an append-only
// file of one JSON record per line, with a sidecar index for point lookups
// and a query layer for recency, keyword, and reference-chain retrieval.
// The store is the single source of truth: every committed fact goes through
// Append, and the only mutation ever applied afterwards is the
// derived-field patch used by session maintenance (tags, reference weights),
// which supersedes the record through the index without rewriting the log.
package eventlog
