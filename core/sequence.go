package core

import "sync"

// Sequence hands out strictly increasing event ids for one session. It is
// explicitly owned (by the session's event log) rather than process-global,
// so independent sessions stay independently testable and resumable.
type Sequence struct {
	mu   sync.Mutex
	next int64
}

// NewSequence starts a sequence at 1.
func NewSequence() *Sequence { return &Sequence{next: 1} }

// Next returns the next id and advances the sequence.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// Sync ensures the sequence will never hand out an id at or below seen.
// Used when resuming a session or after injecting seed events.
func (s *Sequence) Sync(seen int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seen >= s.next {
		s.next = seen + 1
	}
}

// Peek returns the id the next call to Next would produce.
func (s *Sequence) Peek() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
