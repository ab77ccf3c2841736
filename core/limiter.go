package core

import "sync"

// CallBudget caps how many generative backend calls one run may spend. An
// exhausted budget is not an error condition: a denied caller takes the
// deterministic path instead, so the protocol is a boolean gate rather than
// a counter that overruns and reports after the fact.
type CallBudget struct {
	mu   sync.Mutex
	max  int
	used int
}

// NewCallBudget creates a budget of max calls. A max of zero is unlimited.
func NewCallBudget(max int) *CallBudget {
	return &CallBudget{max: max}
}

// Try spends one call if any budget remains and reports whether the caller
// may proceed. A denied call spends nothing.
func (b *CallBudget) Try() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.used >= b.max {
		return false
	}
	b.used++

	return true
}

// Used reports how many calls have been spent.
func (b *CallBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.used
}

// Remaining reports how many calls are left. Unlimited budgets report -1.
func (b *CallBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max == 0 {
		return -1
	}

	return b.max - b.used
}
