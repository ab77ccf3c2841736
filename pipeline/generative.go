package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/logging"
	"github.com/agora-sim/agora/model"
)

// passSentinel is what the backend is told to answer when the actor has
// nothing worth contributing.
const passSentinel = "PASS"

// ModelProposerOptions configures the generative proposer.
type ModelProposerOptions struct {
	// MaxDrafts caps drafts per trigger.
	MaxDrafts int

	// Fallback handles the turn when the backend fails after retries.
	// Defaults to NewRuleProposer().
	Fallback Proposer

	// Budget caps backend calls across the run; nil means no cap. An
	// exhausted budget routes the turn to the fallback.
	Budget *core.CallBudget

	Logger logging.Logger
}

// ModelProposer drafts acts by prompting a generative backend with the
// actor's persona and session view. Backend failure never fails the turn;
// the proposer degrades to its deterministic fallback.
type ModelProposer struct {
	backend   model.Backend
	maxDrafts int
	fallback  Proposer
	budget    *core.CallBudget
	logger    logging.Logger
}

var _ Proposer = (*ModelProposer)(nil)

// NewModelProposer builds a proposer over backend.
func NewModelProposer(backend model.Backend, optFns ...func(o *ModelProposerOptions)) *ModelProposer {
	opts := ModelProposerOptions{
		MaxDrafts: 1,
		Fallback:  NewRuleProposer(),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelProposer{
		backend:   backend,
		maxDrafts: opts.MaxDrafts,
		fallback:  opts.Fallback,
		budget:    opts.Budget,
		logger:    opts.Logger,
	}
}

// Propose implements Proposer.
func (p *ModelProposer) Propose(ctx context.Context, pc ProposerContext) ([]core.IntentionDraft, error) {
	if pc.Trigger.Sender == pc.Self.ID || !pc.Trigger.Committed() {
		return nil, nil
	}
	kind, ok := replyKind(pc.Trigger, pc.Self)
	if !ok {
		return nil, nil
	}

	if p.budget != nil && !p.budget.Try() {
		p.logger.Warn("backend call budget exhausted, using rule-based fallback",
			"actor", pc.Self.ID)
		return p.fallback.Propose(ctx, pc)
	}

	text, err := p.backend.Complete(ctx, p.prompt(pc))
	if err != nil {
		p.logger.Warn("generative proposer degrading to rule-based fallback",
			"actor", pc.Self.ID, "error", err)
		return p.fallback.Propose(ctx, pc)
	}

	text = strings.TrimSpace(text)
	if text == "" || strings.EqualFold(text, passSentinel) {
		return nil, nil
	}

	draft := core.NewDraft(pc.Self.ID, kind, text)
	draft.TargetScope = pc.Trigger.Scope
	draft.ActorCount = pc.ActorCount
	draft.RetrievalTags = append([]string(nil), pc.Trigger.Tags...)
	draft.RetrievalKeywords = keywordsFrom(text, 6)
	draft.Confidence, draft.Motivation, draft.Urgency = 0.7, 0.7, 0.5
	draft.Clamp()

	drafts := []core.IntentionDraft{draft}
	if p.maxDrafts > 0 && len(drafts) > p.maxDrafts {
		drafts = drafts[:p.maxDrafts]
	}
	return drafts, nil
}

func (p *ModelProposer) prompt(pc ProposerContext) []model.Message {
	var system strings.Builder
	fmt.Fprintf(&system, "You are %s, a %s in a working session.", pc.Self.Name, pc.Self.Role)
	if pc.Self.Expertise != "" {
		fmt.Fprintf(&system, " Your expertise: %s.", pc.Self.Expertise)
	}
	fmt.Fprintf(&system, " Reply with a single short contribution in plain text, or %s if you have nothing worth adding.", passSentinel)

	var user strings.Builder
	if pc.TeamSummary != "" {
		fmt.Fprintf(&user, "Team progress so far:\n%s\n\n", pc.TeamSummary)
	}
	if len(pc.Tasks) > 0 {
		fmt.Fprintf(&user, "Your task table:\n")
		for _, task := range pc.Tasks {
			fmt.Fprintf(&user, "- %s\n", task)
		}
		user.WriteString("\n")
	}
	if len(pc.Recent) > 0 {
		user.WriteString("Recent events, newest first:\n")
		for _, ev := range pc.Recent {
			fmt.Fprintf(&user, "[%d] %s (%s): %s\n", ev.EventID, ev.SenderName, ev.Type, ev.Text())
		}
		user.WriteString("\n")
	}
	fmt.Fprintf(&user, "Now respond to this %s from %s: %s",
		pc.Trigger.Type, pc.Trigger.SenderName, pc.Trigger.Text())

	return []model.Message{
		model.SystemMessage(system.String()),
		model.UserMessage(user.String()),
	}
}
