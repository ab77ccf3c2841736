package pipeline

import (
	"context"
	"strings"

	"github.com/agora-sim/agora/core"
)

// Identity describes the acting party a proposer drafts for.
type Identity struct {
	ID        string
	Name      string
	Role      string
	Expertise string
	// Kinds lists the act kinds the actor can produce. Empty means all.
	Kinds []string
}

// Supports reports whether the identity can produce acts of kind.
func (id Identity) Supports(kind string) bool {
	if len(id.Kinds) == 0 {
		return true
	}
	for _, k := range id.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// ProposerContext is everything a proposer may look at when drafting: the
// triggering event, the actor's recent view of the log, the cited-event
// chain behind the trigger, and the derived session memory.
type ProposerContext struct {
	Self    Identity
	Trigger core.Event

	// Recent holds recently committed events visible to the actor, newest
	// first.
	Recent []core.Event
	// Thread is the trigger's cited-event chain, nearest first.
	Thread []core.Event

	// Tasks are rendered lines from the actor's personal task table.
	Tasks []string
	// TagIndex is the shared tag vocabulary of the session.
	TagIndex []string
	// TeamSummary is the latest rolling team-progress summary.
	TeamSummary string

	ActorCount int
	Tick       int
}

// Proposer builds zero or more drafts for a turn. Implementations cap their
// own output; an empty slice is a legitimate "nothing to say".
type Proposer interface {
	Propose(ctx context.Context, pc ProposerContext) ([]core.IntentionDraft, error)
}

// Resolver surfaces the candidate events a draft may cite. Its output is
// the only source of citable events for the finalizer.
type Resolver interface {
	Resolve(ctx context.Context, draft core.IntentionDraft) ([]core.Reference, error)
}

// Finalizer fuses a draft and its resolver candidates into a FinalIntention.
type Finalizer interface {
	Finalize(ctx context.Context, draft core.IntentionDraft, candidates []core.Reference) (core.FinalIntention, error)
}

// replyKind maps a triggering event to the act kind a responding draft
// should carry, honoring the actor's supported kinds. ok is false when the
// trigger warrants no response at all.
func replyKind(trigger core.Event, self Identity) (string, bool) {
	switch {
	case trigger.IsRequest():
		if trigger.Type == core.KindRequestSpecific && !requestedOf(trigger, self.ID) {
			return "", false
		}
		if self.Supports(core.KindSubmit) {
			return core.KindSubmit, true
		}
		return core.KindSpeak, self.Supports(core.KindSpeak)
	case trigger.Type == core.KindSubmit:
		if self.Supports(core.KindEvaluate) {
			return core.KindEvaluate, true
		}
		return core.KindSpeak, self.Supports(core.KindSpeak)
	case trigger.Type == core.KindSpeak:
		return core.KindSpeak, self.Supports(core.KindSpeak)
	default:
		return "", false
	}
}

// requestedOf reports whether a request_specific event names the actor.
func requestedOf(trigger core.Event, actorID string) bool {
	switch recipients := trigger.Content["recipients"].(type) {
	case []string:
		for _, r := range recipients {
			if r == actorID {
				return true
			}
		}
	case []any:
		for _, r := range recipients {
			if s, ok := r.(string); ok && s == actorID {
				return true
			}
		}
	}
	return false
}

// keywordsFrom extracts up to max lowercase keywords from text, dropping
// stopwords and short tokens.
func keywordsFrom(text string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(token) < 3 || stopwords[token] || seen[token] {
			continue
		}
		seen[token] = true
		out = append(out, token)
		if len(out) == max {
			break
		}
	}
	return out
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"has": true, "have": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "that": true, "from": true, "they": true,
	"been": true, "what": true, "when": true, "where": true, "which": true,
	"their": true, "there": true, "about": true, "would": true, "could": true,
	"should": true, "into": true, "than": true, "then": true, "them": true,
	"some": true, "such": true, "also": true, "just": true, "more": true,
	"please": true, "need": true, "needs": true, "let": true, "lets": true,
}
