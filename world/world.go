// Package world is the pub/sub bus for committed events. Anything exposing
// an id, a visibility scope, and an OnEvent callback can attach; the world
// makes no assumption about what observers do with events.
package world

import (
	"sync"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/logging"
)

// Observer receives committed events that match its visibility scope.
type Observer interface {
	ID() string
	Scope() string
	OnEvent(ev core.Event)
}

// Options configure a World.
type Options struct {
	Logger logging.Logger
}

// World maintains the observer registry and its own timeline of everything
// emitted. Emit is called by the router only, in commit order; observers
// see events in that same order.
type World struct {
	mu        sync.RWMutex
	observers []Observer
	timeline  []core.Event
	logger    logging.Logger
}

// New creates an empty world.
func New(optFns ...func(o *Options)) *World {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &World{logger: opts.Logger}
}

// AddObserver registers an observer. Registration order is delivery order.
func (w *World) AddObserver(obs Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, obs)
	w.logger.Debug("observer registered", "observer_id", obs.ID(), "total", len(w.observers))
}

// Visible implements the world's single visibility rule: a public event is
// visible to all; a scoped event is visible to observers sharing that exact
// scope, or to any observer whose own scope is public (a public observer
// sees everything).
func Visible(eventScope, observerScope string) bool {
	if eventScope == core.ScopePublic || eventScope == "" {
		return true
	}
	if observerScope == core.ScopePublic || observerScope == "" {
		return true
	}
	return eventScope == observerScope
}

// Emit records the event on the world timeline and pushes it to every
// observer whose scope admits it.
func (w *World) Emit(ev core.Event) {
	w.mu.Lock()
	w.timeline = append(w.timeline, ev)
	observers := make([]Observer, len(w.observers))
	copy(observers, w.observers)
	w.mu.Unlock()

	for _, obs := range observers {
		if Visible(ev.Scope, obs.Scope()) {
			obs.OnEvent(ev)
		}
	}
}

// Timeline returns a copy of every event emitted so far, in order.
func (w *World) Timeline() []core.Event {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]core.Event, len(w.timeline))
	copy(out, w.timeline)
	return out
}

// ActorObserver lets an actor watch the world without being allowed to act
// on it directly: seeing an event only updates the actor's memory.
type ActorObserver struct {
	actor interface {
		ID() string
		Scope() string
		Observe(core.Event)
	}
}

// NewActorObserver wraps an actor for registration on the world bus.
func NewActorObserver(a interface {
	ID() string
	Scope() string
	Observe(core.Event)
}) *ActorObserver {
	return &ActorObserver{actor: a}
}

// ID implements Observer.
func (o *ActorObserver) ID() string { return o.actor.ID() }

// Scope implements Observer.
func (o *ActorObserver) Scope() string { return o.actor.Scope() }

// OnEvent implements Observer.
func (o *ActorObserver) OnEvent(ev core.Event) { o.actor.Observe(ev) }

// FuncObserver adapts a plain callback (e.g. a console viewer) to the
// Observer interface.
type FuncObserver struct {
	ObserverID    string
	ObserverScope string
	Fn            func(core.Event)
}

// ID implements Observer.
func (o *FuncObserver) ID() string { return o.ObserverID }

// Scope implements Observer; empty means public.
func (o *FuncObserver) Scope() string {
	if o.ObserverScope == "" {
		return core.ScopePublic
	}
	return o.ObserverScope
}

// OnEvent implements Observer.
func (o *FuncObserver) OnEvent(ev core.Event) { o.Fn(ev) }
