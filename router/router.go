// Package router is the single gateway from intention to committed fact. It
// checks the resolver-containment invariant, runs policy admission, and on
// approval appends the event to the log and broadcasts it on the world bus.
package router

import (
	"errors"
	"fmt"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/eventlog"
	"github.com/agora-sim/agora/logging"
	"github.com/agora-sim/agora/policy"
	"github.com/agora-sim/agora/world"
)

// ErrCitationIntegrity marks a FinalIntention citing events outside its
// resolver candidate set. This is a pipeline bug, never a policy matter, so
// it is rejected outright rather than trimmed to whatever happens to be
// valid.
var ErrCitationIntegrity = errors.New("router: reference outside resolver candidate set")

// Options configure a Router.
type Options struct {
	Logger logging.Logger
}

// Router submits finalized acts for admission and commit.
type Router struct {
	interp *policy.Interpreter
	store  *eventlog.Store
	world  *world.World
	logger logging.Logger
}

// New builds a router over the policy interpreter, event log, and world bus.
func New(interp *policy.Interpreter, store *eventlog.Store, w *world.World, optFns ...func(o *Options)) *Router {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{
		interp: interp,
		store:  store,
		world:  w,
		logger: opts.Logger,
	}
}

// Route takes a finalized intention through admission and, when approved,
// commit and broadcast. A suppressed act is discarded; the returned
// Decision's violations are its only trace. The returned event is the
// committed value (id and timestamp assigned) and is only meaningful when
// the decision is approved and err is nil.
func (r *Router) Route(final core.FinalIntention, subject policy.Subject) (core.Event, core.Decision, error) {
	if err := checkContainment(final); err != nil {
		return core.Event{}, core.Decision{}, err
	}

	decision := r.interp.Evaluate(final, subject)
	if !decision.IsApproved() {
		r.logger.Info("act suppressed by policy",
			"actor", final.AgentID, "kind", final.Kind, "violations", len(decision.Violations))
		return core.Event{}, decision, nil
	}

	committed, err := r.store.Append(r.buildEvent(final, subject))
	if err != nil {
		return core.Event{}, decision, fmt.Errorf("commit %s act of %s: %w", final.Kind, final.AgentID, err)
	}

	r.world.Emit(committed)
	r.logger.Debug("act committed",
		"event_id", committed.EventID, "actor", committed.Sender, "kind", committed.Type)
	return committed, decision, nil
}

// buildEvent maps an approved intention onto the immutable event shape.
func (r *Router) buildEvent(final core.FinalIntention, subject policy.Subject) core.Event {
	payload := final.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	ev := core.NewEvent(subject.ID(), final.Kind, payload)
	ev.SenderName = subject.Name()
	ev.SenderRole = subject.Role()
	ev.References = core.NormalizeReferences(final.References)
	ev.Tags = append([]string(nil), final.Tags...)
	ev.Metadata = map[string]string{"intention_id": final.IntentionID}

	switch {
	case final.TargetScope != "":
		ev.Scope = final.TargetScope
	case subject.Scope() != "":
		ev.Scope = subject.Scope()
	}
	return ev
}

func checkContainment(final core.FinalIntention) error {
	if len(final.References) == 0 {
		return nil
	}
	allowed := final.CandidateSet()
	for _, ref := range final.References {
		if !allowed[ref.EventID] {
			return fmt.Errorf("%w: event %d cited by intention %s",
				ErrCitationIntegrity, ref.EventID, final.IntentionID)
		}
	}
	return nil
}
