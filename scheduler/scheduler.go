// Package scheduler decides which actor takes the next turn. Strategies are
// pluggable and never block: when no actor is eligible they return a wait
// hint so the control loop can idle instead of busy-spinning.
package scheduler

import "time"

// DefaultWaitHint is returned when a strategy has no eligible actor and no
// better estimate of when one will become eligible.
const DefaultWaitHint = 250 * time.Millisecond

// Candidate is an actor as the scheduler sees it. Name is only used for
// stable tie-breaking.
type Candidate struct {
	ID   string
	Name string
}

// Strategy picks the next actor to act.
//
// ChooseAgent returns the chosen actor id, or ok=false with a wait hint when
// nobody is eligible this tick. It must not block and must not mutate
// strategy state; only RecordTurn and MarkSeedSpeakers advance state.
type Strategy interface {
	ChooseAgent(candidates []Candidate, tick int) (actorID string, wait time.Duration, ok bool)

	// RecordTurn notes that the actor acted at tick.
	RecordTurn(actorID string, tick int)

	// MarkSeedSpeakers records actors whose opening statements were injected
	// at bootstrap, so they are not immediately chosen again.
	MarkSeedSpeakers(actorIDs []string, tick int)
}
