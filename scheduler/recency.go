package scheduler

import (
	"sync"
	"time"
)

// RecencyOptions configures the recency strategy.
type RecencyOptions struct {
	// Cooldown is the minimum number of ticks between two turns of the same
	// actor. Zero disables cooldown.
	Cooldown int

	// WaitHint is returned when every candidate is cooling down.
	WaitHint time.Duration
}

// Recency picks the candidate whose last recorded turn is oldest, breaking
// ties by name and then by id. Over time this converges to round-robin
// fairness without a fixed schedule.
type Recency struct {
	mu       sync.Mutex
	lastTurn map[string]int
	cooldown int
	waitHint time.Duration
}

var _ Strategy = (*Recency)(nil)

// NewRecency builds a recency strategy.
func NewRecency(optFns ...func(o *RecencyOptions)) *Recency {
	opts := RecencyOptions{
		WaitHint: DefaultWaitHint,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Recency{
		lastTurn: make(map[string]int),
		cooldown: opts.Cooldown,
		waitHint: opts.WaitHint,
	}
}

// ChooseAgent implements Strategy. Candidates that have never acted sort
// before all that have.
func (r *Recency) ChooseAgent(candidates []Candidate, tick int) (string, time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		best     Candidate
		bestLast int
		found    bool
	)
	for _, c := range candidates {
		last, acted := r.lastTurn[c.ID]
		if !acted {
			last = -1
		}
		if r.cooldown > 0 && acted && tick-last < r.cooldown {
			continue
		}
		if !found || last < bestLast || (last == bestLast && before(c, best)) {
			best, bestLast, found = c, last, true
		}
	}
	if !found {
		return "", r.waitHint, false
	}
	return best.ID, 0, true
}

// RecordTurn implements Strategy.
func (r *Recency) RecordTurn(actorID string, tick int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastTurn[actorID] = tick
}

// MarkSeedSpeakers implements Strategy. Seed speakers count as having taken
// a turn at tick.
func (r *Recency) MarkSeedSpeakers(actorIDs []string, tick int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range actorIDs {
		r.lastTurn[id] = tick
	}
}

func before(a, b Candidate) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}
