package core

import (
	"github.com/google/uuid"
)

// IntentionDraft is the first, pre-citation phase of an intention. It is
// ephemeral: created and discarded within one turn. By construction a draft
// carries no references, only a retrieval plan, so nothing can be cited
// before the resolver runs.
type IntentionDraft struct {
	IntentionID       string   `json:"intention_id"`
	AgentID           string   `json:"agent_id"`
	Kind              string   `json:"kind"`
	DraftText         string   `json:"draft_text"`
	RetrievalTags     []string `json:"retrieval_tags,omitempty"`
	RetrievalKeywords []string `json:"retrieval_keywords,omitempty"`
	TargetScope       string   `json:"target_scope,omitempty"`
	Confidence        float64  `json:"confidence"`
	Motivation        float64  `json:"motivation"`
	Urgency           float64  `json:"urgency"`

	// ActorCount sizes the resolver's trailing recency window. Zero means
	// the resolver default.
	ActorCount int `json:"actor_count,omitempty"`
}

// NewDraft allocates a draft with a fresh intention id and clamped intent
// scores.
func NewDraft(agentID, kind, draftText string) IntentionDraft {
	return IntentionDraft{
		IntentionID: uuid.NewString(),
		AgentID:     agentID,
		Kind:        kind,
		DraftText:   draftText,
	}
}

// Clamp forces the intent scores into [0, 1]. Proposers call this before
// handing a draft to the pipeline so downstream thresholds see sane values.
func (d *IntentionDraft) Clamp() {
	d.Confidence = ClampUnit(d.Confidence)
	d.Motivation = ClampUnit(d.Motivation)
	d.Urgency = ClampUnit(d.Urgency)
}

// Interest is the aggregate intent score used by the finalizer's pass
// threshold: the maximum of the three axes.
func (d IntentionDraft) Interest() float64 {
	interest := d.Confidence
	if d.Motivation > interest {
		interest = d.Motivation
	}
	if d.Urgency > interest {
		interest = d.Urgency
	}
	return interest
}

// FinalIntention is the second, post-citation phase: a fully cited act ready
// to become an event. References are drawn exclusively from Candidates, the
// resolver's output for the originating draft; the router rejects any final
// intention that violates this before commit.
type FinalIntention struct {
	IntentionID string         `json:"intention_id"`
	AgentID     string         `json:"agent_id"`
	Kind        string         `json:"kind"`
	Payload     map[string]any `json:"payload"`
	References  []Reference    `json:"references"`
	Candidates  []Reference    `json:"candidates"`
	Tags        []string       `json:"tags,omitempty"`
	TargetScope string         `json:"target_scope,omitempty"`
	Confidence  float64        `json:"confidence"`
	Motivation  float64        `json:"motivation"`
	Urgency     float64        `json:"urgency"`
}

// CandidateSet returns the resolver candidates as a lookup set.
func (f FinalIntention) CandidateSet() map[int64]bool {
	set := make(map[int64]bool, len(f.Candidates))
	for _, ref := range f.Candidates {
		set[ref.EventID] = true
	}
	return set
}

// DecisionStatus is the outcome of policy evaluation.
type DecisionStatus string

const (
	// StatusApproved admits the intention for commit.
	StatusApproved DecisionStatus = "approved"
	// StatusSuppressed discards the intention; its violations are the only
	// trace left behind.
	StatusSuppressed DecisionStatus = "suppressed"
)

// Violation describes one failed admission rule.
type Violation struct {
	Kind   string `json:"kind"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

// Decision gates commit. It is produced by the policy interpreter and never
// stored.
type Decision struct {
	Status     DecisionStatus `json:"status"`
	Violations []Violation    `json:"violations"`
}

// Approved returns an admitting decision. Warnings (e.g. unknown act kinds
// under a permissive policy) may still be attached.
func Approved(warnings ...Violation) Decision {
	return Decision{Status: StatusApproved, Violations: warnings}
}

// Suppressed returns a rejecting decision carrying the violated rules.
func Suppressed(violations ...Violation) Decision {
	return Decision{Status: StatusSuppressed, Violations: violations}
}

// IsApproved reports whether the intention may become an event.
func (d Decision) IsApproved() bool { return d.Status == StatusApproved }
