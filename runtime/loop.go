package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/pipeline"
	"github.com/agora-sim/agora/scheduler"
)

// Step runs one scheduling tick: choose an actor, run its drafts through
// resolve, finalize and route, and record the turn. It returns the events
// committed this tick (often zero: a cooldown gap, an empty proposal, or a
// suppressed act all leave the log untouched). A failing turn is logged and
// absorbed; Step only errors when the context is done.
func (r *Runtime) Step(ctx context.Context) ([]core.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.tick++
	tick := r.tick
	trigger := r.trigger
	r.mu.Unlock()

	candidates := make([]scheduler.Candidate, 0, len(r.order))
	for _, id := range r.order {
		candidates = append(candidates, scheduler.Candidate{ID: id, Name: r.actors[id].Name()})
	}

	actorID, wait, ok := r.strategy.ChooseAgent(candidates, tick)
	if !ok {
		return nil, r.pause(ctx, wait)
	}
	a, found := r.actors[actorID]
	if !found {
		r.logger.Error("scheduler chose unknown actor", "actor_id", actorID, "tick", tick)
		return nil, nil
	}

	pc := r.proposerContext(actorID, trigger, tick)
	drafts, err := r.proposers[actorID].Propose(ctx, pc)
	if err != nil {
		// Proposal failure costs the actor its turn, nothing more.
		r.logger.Warn("proposal failed", "actor_id", actorID, "tick", tick, "error", err)
		r.strategy.RecordTurn(actorID, tick)
		return nil, nil
	}

	var committed []core.Event
	for _, draft := range drafts {
		refs, err := r.resolver.Resolve(ctx, draft)
		if err != nil {
			r.logger.Warn("candidate resolution failed", "actor_id", actorID, "error", err)
			continue
		}
		final, err := r.finalizer.Finalize(ctx, draft, refs)
		if err != nil {
			r.logger.Warn("finalization failed", "actor_id", actorID, "error", err)
			continue
		}
		ev, decision, err := r.router.Route(final, a)
		if err != nil {
			r.logger.Error("routing failed", "actor_id", actorID, "kind", final.Kind, "error", err)
			continue
		}
		if !decision.IsApproved() {
			continue
		}
		committed = append(committed, ev)
		if ev.Type != core.KindPass {
			r.mu.Lock()
			r.trigger = ev
			r.mu.Unlock()
		}
	}

	r.strategy.RecordTurn(actorID, tick)
	return committed, nil
}

// Run drives Step until maxTicks ticks have elapsed or the context is
// cancelled. maxTicks <= 0 runs until cancellation.
func (r *Runtime) Run(ctx context.Context, maxTicks int) error {
	for i := 0; maxTicks <= 0 || i < maxTicks; i++ {
		if _, err := r.Step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown waits for enqueued maintenance work to finish, stops the worker
// pool, and closes the session store. The context bounds the drain only;
// pool stop and store close always run.
func (r *Runtime) Shutdown(ctx context.Context) error {
	drainErr := r.memory.Drain(ctx)
	r.memory.Stop()
	closeErr := r.store.Close()
	if drainErr != nil {
		return fmt.Errorf("runtime: drain maintenance: %w", drainErr)
	}
	return closeErr
}

// proposerContext assembles the actor's view of the session for one turn.
func (r *Runtime) proposerContext(actorID string, trigger core.Event, tick int) pipeline.ProposerContext {
	a := r.actors[actorID]
	window := 2 * len(r.actors)
	if window < 6 {
		window = 6
	}

	var thread []core.Event
	if trigger.Committed() {
		thread = r.query.ThreadUp(trigger.EventID, 3)
	}

	return pipeline.ProposerContext{
		Self:        r.identities[actorID],
		Trigger:     trigger,
		Recent:      r.query.Recent(a.Scope(), window),
		Thread:      thread,
		Tasks:       r.memory.Tasks(actorID),
		TagIndex:    r.memory.TagIndex().Tags(),
		TeamSummary: r.memory.TeamSummary(),
		ActorCount:  len(r.actors),
		Tick:        tick,
	}
}

// pause sleeps out a scheduler wait hint, cutting it short on cancellation.
func (r *Runtime) pause(ctx context.Context, wait time.Duration) error {
	if wait <= 0 {
		wait = scheduler.DefaultWaitHint
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
