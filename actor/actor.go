// Package actor implements the actor contract: a stable identity with a
// visibility scope, an observation memory of event ids, and a constructor
// per act kind the actor is capable of producing. Actors never talk to the
// world directly; the runtime observes on their behalf and the pipeline
// turns their capabilities into intentions.
package actor

import (
	"sync"

	"github.com/agora-sim/agora/core"
)

// Options configure construction of an Actor.
type Options struct {
	// Scope is the actor's visibility partition. Defaults to public.
	Scope string
	// Expertise labels feed the proposer's retrieval hints.
	Expertise []string
	// Kinds restricts the act kinds the actor can produce. Empty means the
	// full shipped set.
	Kinds []string
}

// Actor is one participant of the simulation.
type Actor struct {
	id        string
	name      string
	role      string
	scope     string
	expertise []string
	kinds     map[string]bool

	mu     sync.Mutex
	memory []int64
}

// New creates an actor. The id is assigned by the caller (roster loading or
// bootstrap), not generated here, so sessions can be resumed with stable
// identities.
func New(id, name, role string, optFns ...func(o *Options)) *Actor {
	opts := Options{
		Scope: core.ScopePublic,
		Kinds: []string{
			core.KindSpeak,
			core.KindRequestAnyone,
			core.KindRequestSpecific,
			core.KindRequestAll,
			core.KindSubmit,
			core.KindEvaluate,
			core.KindPass,
		},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	kinds := make(map[string]bool, len(opts.Kinds))
	for _, kind := range opts.Kinds {
		kinds[kind] = true
	}
	return &Actor{
		id:        id,
		name:      name,
		role:      role,
		scope:     opts.Scope,
		expertise: opts.Expertise,
		kinds:     kinds,
	}
}

// ID returns the actor's stable identity.
func (a *Actor) ID() string { return a.id }

// Name returns the display name.
func (a *Actor) Name() string { return a.name }

// Role returns the persona role label.
func (a *Actor) Role() string { return a.role }

// Scope returns the actor's visibility partition.
func (a *Actor) Scope() string { return a.scope }

// Expertise returns the actor's expertise labels.
func (a *Actor) Expertise() []string {
	out := make([]string, len(a.expertise))
	copy(out, a.expertise)
	return out
}

// Supports reports whether the actor can produce the given act kind.
func (a *Actor) Supports(kind string) bool { return a.kinds[kind] }

// Observe records that the actor has seen a committed event. Observation is
// the only write path into actor memory; the actor stores ids, not events:
// it knows what it witnessed, the log knows what happened.
func (a *Actor) Observe(ev core.Event) {
	if !ev.Committed() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory = append(a.memory, ev.EventID)
}

// Memory returns the observed event ids in observation order.
func (a *Actor) Memory() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int64, len(a.memory))
	copy(out, a.memory)
	return out
}

// newAct stamps sender identity and scope onto an uncommitted event.
func (a *Actor) newAct(kind string, content map[string]any, refs ...core.Reference) core.Event {
	ev := core.NewEvent(a.id, kind, content)
	ev.SenderName = a.name
	ev.SenderRole = a.role
	ev.Scope = a.scope
	ev.References = core.NormalizeReferences(refs)
	return ev
}

// Speak produces a statement act.
func (a *Actor) Speak(text string, refs ...core.Reference) core.Event {
	return a.newAct(core.KindSpeak, map[string]any{"text": text}, refs...)
}

// RequestAnyone produces an open request any other actor may pick up.
func (a *Actor) RequestAnyone(request string, refs ...core.Reference) core.Event {
	return a.newAct(core.KindRequestAnyone, map[string]any{"request": request}, refs...)
}

// RequestSpecific produces a request addressed to named actors. Recipients
// live inside the content payload; visibility is still governed by scope.
func (a *Actor) RequestSpecific(request string, recipients []string, refs ...core.Reference) core.Event {
	return a.newAct(core.KindRequestSpecific, map[string]any{
		"request":    request,
		"recipients": recipients,
	}, refs...)
}

// RequestAll produces a request addressed to every other actor.
func (a *Actor) RequestAll(request string, refs ...core.Reference) core.Event {
	return a.newAct(core.KindRequestAll, map[string]any{"request": request}, refs...)
}

// Submit produces a work-result act, typically citing the request it
// fulfills.
func (a *Actor) Submit(result string, refs ...core.Reference) core.Event {
	return a.newAct(core.KindSubmit, map[string]any{"result": result}, refs...)
}

// Evaluate produces a judgement of a previous event.
func (a *Actor) Evaluate(verdict string, ref core.Reference) core.Event {
	return a.newAct(core.KindEvaluate, map[string]any{"verdict": verdict}, ref)
}

// Pass produces the neutral no-contribution act. It never carries
// references.
func (a *Actor) Pass() core.Event {
	return a.newAct(core.KindPass, map[string]any{"text": ""})
}
