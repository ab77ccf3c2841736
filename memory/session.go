package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/eventlog"
	"github.com/agora-sim/agora/logging"
)

// Options configure a SessionMemory.
type Options struct {
	// Workers is the fixed size of the maintenance pool.
	Workers int
	// QueueSize bounds the job queue. A full queue drops maintenance for
	// the event (with a warning) instead of blocking the commit path.
	QueueSize int
	// ScorerConcurrency gates how many external scoring calls run at once.
	ScorerConcurrency int64
	// Scorer re-weights committed references; nil disables re-scoring.
	Scorer Scorer
	// BoardWindow is the team board summarization window.
	BoardWindow int
	// PrivilegedRoles are quoted verbatim on the team board.
	PrivilegedRoles []string
	// SeedTags seeds the shared tag pool on first use.
	SeedTags []string

	Logger logging.Logger
}

// SessionMemory is the concurrent maintainer. Register it as a world
// observer; every committed event it sees is enqueued for asynchronous
// maintenance. It never blocks the caller.
type SessionMemory struct {
	store  *eventlog.Store
	tags   *TagPool
	board  *TeamBoard
	scorer Scorer
	logger logging.Logger

	tablesMu sync.Mutex
	tables   map[string]*TaskTable

	// stopMu orders Enqueue's send against Stop closing jobs; without it a
	// concurrent Stop could close the channel between the stopped check and
	// the send.
	stopMu  sync.Mutex
	jobs    chan core.Event
	workers sync.WaitGroup
	pending sync.WaitGroup
	sem     *semaphore.Weighted
	stopped atomic.Bool
	dropped atomic.Int64
}

// New builds and starts a session memory over store, loading any persisted
// derived state from the session directory.
func New(store *eventlog.Store, optFns ...func(o *Options)) (*SessionMemory, error) {
	opts := Options{
		Workers:           2,
		QueueSize:         64,
		ScorerConcurrency: 2,
		BoardWindow:       DefaultBoardWindow,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ScorerConcurrency < 1 {
		opts.ScorerConcurrency = 1
	}

	tags, err := LoadTagPool(store.Dir())
	if err != nil {
		return nil, err
	}
	if len(opts.SeedTags) > 0 {
		tags.Seed(opts.SeedTags)
	}
	board, err := LoadTeamBoard(store.Dir(), func(o *TeamBoardOptions) {
		o.Window = opts.BoardWindow
		o.PrivilegedRoles = opts.PrivilegedRoles
	})
	if err != nil {
		return nil, err
	}

	m := &SessionMemory{
		store:  store,
		tags:   tags,
		board:  board,
		scorer: opts.Scorer,
		logger: opts.Logger,
		tables: make(map[string]*TaskTable),
		jobs:   make(chan core.Event, opts.QueueSize),
		sem:    semaphore.NewWeighted(opts.ScorerConcurrency),
	}
	for i := 0; i < opts.Workers; i++ {
		m.workers.Add(1)
		go m.worker()
	}
	return m, nil
}

// ID implements world.Observer.
func (m *SessionMemory) ID() string { return "session-memory" }

// Scope implements world.Observer; the maintainer sees everything.
func (m *SessionMemory) Scope() string { return core.ScopePublic }

// OnEvent implements world.Observer by enqueueing maintenance.
func (m *SessionMemory) OnEvent(ev core.Event) { m.Enqueue(ev) }

// Enqueue schedules maintenance for a committed event without blocking.
// Events arriving after Stop, or while the queue is full, are dropped with
// a warning. Safe to call concurrently with Stop.
func (m *SessionMemory) Enqueue(ev core.Event) {
	if !ev.Committed() {
		return
	}
	m.stopMu.Lock()
	defer m.stopMu.Unlock()
	if m.stopped.Load() {
		return
	}
	m.pending.Add(1)
	select {
	case m.jobs <- ev:
	default:
		m.pending.Done()
		m.dropped.Add(1)
		m.logger.Warn("maintenance queue full, dropping event", "event_id", ev.EventID)
	}
}

// Drain blocks until every enqueued maintenance job has completed or ctx
// expires. It does not stop the pool; new events may still be enqueued.
func (m *SessionMemory) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain session memory: %w", ctx.Err())
	}
}

// Stop shuts the worker pool down after the current queue is fully
// processed. Call Drain first to wait for completion deterministically.
func (m *SessionMemory) Stop() {
	m.stopMu.Lock()
	if m.stopped.Swap(true) {
		m.stopMu.Unlock()
		return
	}
	close(m.jobs)
	m.stopMu.Unlock()
	m.workers.Wait()
}

// Dropped reports how many events lost their maintenance to a full queue.
func (m *SessionMemory) Dropped() int64 { return m.dropped.Load() }

// TagIndex exposes the shared tag pool.
func (m *SessionMemory) TagIndex() *TagPool { return m.tags }

// Board exposes the team board.
func (m *SessionMemory) Board() *TeamBoard { return m.board }

// EventsForTag implements the resolver's tag lookup.
func (m *SessionMemory) EventsForTag(tag string) []int64 { return m.tags.EventsForTag(tag) }

// Tasks returns the rendered task lines for an actor.
func (m *SessionMemory) Tasks(actorID string) []string {
	return m.table(actorID).Render()
}

// TeamSummary returns the latest team-progress summary.
func (m *SessionMemory) TeamSummary() string { return m.board.Latest() }

// table returns the actor's task table, loading it on first use.
func (m *SessionMemory) table(actorID string) *TaskTable {
	m.tablesMu.Lock()
	defer m.tablesMu.Unlock()
	if t, ok := m.tables[actorID]; ok {
		return t
	}
	t, err := LoadTaskTable(m.store.Dir(), actorID)
	if err != nil {
		m.logger.Warn("task table unreadable, starting empty", "actor", actorID, "error", err)
		t = newTaskTable(m.store.Dir(), actorID)
	}
	m.tables[actorID] = t
	return t
}

func (m *SessionMemory) worker() {
	defer m.workers.Done()
	for ev := range m.jobs {
		m.process(ev)
		m.pending.Done()
	}
}

// process runs all maintenance for one committed event. Every step is
// independent; a failing step is logged and the rest still run.
func (m *SessionMemory) process(ev core.Event) {
	m.updateTaskTables(ev)
	derivedTags := m.updateTags(ev)
	m.updateBoard(ev)

	refs := m.rescoreReferences(ev)
	if derivedTags != nil || refs != nil {
		if derivedTags == nil {
			derivedTags = ev.Tags
		}
		if refs == nil {
			refs = ev.References
		}
		if err := m.store.UpdateDerived(ev.EventID, derivedTags, refs); err != nil {
			m.logger.Warn("derived-field update failed", "event_id", ev.EventID, "error", err)
		}
	}
}

// updateTaskTables folds the event into every roster actor's table.
func (m *SessionMemory) updateTaskTables(ev core.Event) {
	for _, info := range m.store.Meta().Actors {
		t := m.table(info.ID)
		if !t.Observe(ev) {
			continue
		}
		if err := t.Save(); err != nil {
			m.logger.Warn("task table save failed", "actor", info.ID, "error", err)
		}
	}
}

// updateTags classifies the event in the shared pool and returns the tag
// list to write back, or nil when the event's tags already match.
func (m *SessionMemory) updateTags(ev core.Event) []string {
	applied := m.tags.Observe(ev)
	if err := m.tags.Save(); err != nil {
		m.logger.Warn("tag index save failed", "error", err)
	}
	if equalStrings(applied, ev.Tags) {
		return nil
	}
	return applied
}

func (m *SessionMemory) updateBoard(ev core.Event) {
	if !m.board.Observe(ev) {
		return
	}
	if err := m.board.Save(); err != nil {
		m.logger.Warn("team board save failed", "error", err)
	}
}

// rescoreReferences runs the external scorer under the concurrency gate and
// returns the re-weighted references, or nil when nothing changed.
func (m *SessionMemory) rescoreReferences(ev core.Event) []core.Reference {
	if m.scorer == nil || len(ev.References) == 0 {
		return nil
	}

	ctx := context.Background()
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	defer m.sem.Release(1)

	cited := make([]core.Event, 0, len(ev.References))
	for _, ref := range ev.References {
		if target, err := m.store.Get(ref.EventID); err == nil {
			cited = append(cited, target)
		}
	}

	refs, err := m.scorer.Score(ctx, ev, cited)
	if err != nil {
		m.logger.Warn("reference scoring failed, keeping committed weights",
			"event_id", ev.EventID, "error", err)
		return nil
	}
	if len(refs) != len(ev.References) {
		m.logger.Warn("scorer changed reference count, discarding result", "event_id", ev.EventID)
		return nil
	}
	return refs
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
