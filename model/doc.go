// Package model defines the provider-agnostic generative backend contract
// used to suggest draft content and score reference weights.
//
// Core goals:
//   - One small interface (Backend) with synchronous, one-shot-parallel and
//     incremental streaming variants
//   - An explicit timeout and retry-with-backoff contract applied uniformly
//     across providers
//   - Lightweight mocking for tests (MockBackend)
//
// The orchestration core must run correctly with no backend at all; every
// caller of this package carries a deterministic fallback path.
package model
