// Package pipeline implements the two-phase intention pipeline that turns a
// turn into a committable act: a Proposer drafts a social act from the
// actor's view of the session, a Resolver surfaces which prior events the
// draft may cite, and a Finalizer fuses draft and candidates into a
// FinalIntention.
//
// The draft/finalize split is a strict structural boundary: drafts cannot
// carry references, and a FinalIntention may only reference events that
// appeared in the resolver's candidate output for that draft. The router
// re-checks this containment before commit.
package pipeline
