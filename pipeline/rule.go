package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-sim/agora/core"
)

// RuleProposerOptions configures the deterministic fallback proposer.
type RuleProposerOptions struct {
	// MaxDrafts caps drafts per trigger.
	MaxDrafts int
}

// RuleProposer derives drafts from the trigger's act kind with no external
// dependency: an open request yields a submit draft, a submission yields an
// evaluation draft where the actor can evaluate, and a statement yields a
// discussion reply whose interest depends on whether the actor was
// addressed. It keeps the whole system runnable and testable without any
// generative backend.
type RuleProposer struct {
	maxDrafts int
}

var _ Proposer = (*RuleProposer)(nil)

// NewRuleProposer builds the fallback proposer.
func NewRuleProposer(optFns ...func(o *RuleProposerOptions)) *RuleProposer {
	opts := RuleProposerOptions{MaxDrafts: 1}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &RuleProposer{maxDrafts: opts.MaxDrafts}
}

// Propose implements Proposer. The output is a pure function of the context.
func (p *RuleProposer) Propose(ctx context.Context, pc ProposerContext) ([]core.IntentionDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pc.Trigger.Sender == pc.Self.ID || !pc.Trigger.Committed() {
		return nil, nil
	}
	kind, ok := replyKind(pc.Trigger, pc.Self)
	if !ok {
		return nil, nil
	}

	draft := core.NewDraft(pc.Self.ID, kind, p.draftText(kind, pc))
	draft.TargetScope = pc.Trigger.Scope
	draft.ActorCount = pc.ActorCount
	draft.RetrievalTags = append([]string(nil), pc.Trigger.Tags...)
	draft.RetrievalKeywords = keywordsFrom(pc.Trigger.Text(), 6)

	switch kind {
	case core.KindSubmit:
		draft.Confidence, draft.Motivation, draft.Urgency = 0.7, 0.8, 0.6
	case core.KindEvaluate:
		draft.Confidence, draft.Motivation, draft.Urgency = 0.6, 0.5, 0.4
	default:
		// A plain statement only earns a reply when the actor was addressed
		// by name; otherwise the low interest lets the finalizer turn the
		// draft into a pass.
		if addressed(pc.Trigger.Text(), pc.Self.Name) {
			draft.Confidence, draft.Motivation, draft.Urgency = 0.6, 0.6, 0.4
		} else {
			draft.Confidence, draft.Motivation, draft.Urgency = 0.2, 0.2, 0.1
		}
	}
	draft.Clamp()

	drafts := []core.IntentionDraft{draft}
	if p.maxDrafts > 0 && len(drafts) > p.maxDrafts {
		drafts = drafts[:p.maxDrafts]
	}
	return drafts, nil
}

func (p *RuleProposer) draftText(kind string, pc ProposerContext) string {
	trigger := pc.Trigger.Text()
	switch kind {
	case core.KindSubmit:
		return fmt.Sprintf("%s takes up the request: %s", pc.Self.Name, trigger)
	case core.KindEvaluate:
		return fmt.Sprintf("Reviewing the submission from %s.", pc.Trigger.SenderName)
	default:
		return fmt.Sprintf("%s responds to %s.", pc.Self.Name, pc.Trigger.SenderName)
	}
}

func addressed(text, name string) bool {
	if name == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(name))
}
