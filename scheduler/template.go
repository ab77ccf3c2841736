package scheduler

import (
	"sync"
	"time"
)

// TemplateOrderOptions configures the template-order strategy.
type TemplateOrderOptions struct {
	// WaitHint is returned when no actor in the sequence is present.
	WaitHint time.Duration
}

// TemplateOrder cycles through a fixed sequence of actor ids, for example
// moderator, player-1, moderator, player-2. Slots whose actor is absent from
// the candidate set are skipped; the cursor only advances when a turn is
// actually recorded, so repeated ChooseAgent calls are stable.
type TemplateOrder struct {
	mu       sync.Mutex
	sequence []string
	cursor   int
	waitHint time.Duration
}

var _ Strategy = (*TemplateOrder)(nil)

// NewTemplateOrder builds a template-order strategy over sequence.
func NewTemplateOrder(sequence []string, optFns ...func(o *TemplateOrderOptions)) *TemplateOrder {
	opts := TemplateOrderOptions{
		WaitHint: DefaultWaitHint,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &TemplateOrder{
		sequence: append([]string(nil), sequence...),
		waitHint: opts.WaitHint,
	}
}

// ChooseAgent implements Strategy. It scans at most one full cycle from the
// cursor for a present actor.
func (t *TemplateOrder) ChooseAgent(candidates []Candidate, tick int) (string, time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.sequence) == 0 {
		return "", t.waitHint, false
	}
	present := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		present[c.ID] = true
	}
	for i := 0; i < len(t.sequence); i++ {
		id := t.sequence[(t.cursor+i)%len(t.sequence)]
		if present[id] {
			return id, 0, true
		}
	}
	return "", t.waitHint, false
}

// RecordTurn implements Strategy. It advances the cursor past the recorded
// actor's slot, skipping over any intermediate slots that were not chosen.
func (t *TemplateOrder) RecordTurn(actorID string, tick int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := 0; i < len(t.sequence); i++ {
		pos := (t.cursor + i) % len(t.sequence)
		if t.sequence[pos] == actorID {
			t.cursor = (pos + 1) % len(t.sequence)
			return
		}
	}
}

// MarkSeedSpeakers implements Strategy. Template order is scripted, so seed
// speakers do not shift the cursor.
func (t *TemplateOrder) MarkSeedSpeakers(actorIDs []string, tick int) {}
