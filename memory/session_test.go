package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/eventlog"
)

func openMemoryStore(t *testing.T) *eventlog.Store {
	t.Helper()
	store, err := eventlog.Open(t.TempDir(), func(o *eventlog.Options) {
		o.SessionID = "memory-test"
		o.Meta = eventlog.SessionMeta{
			Actors: []eventlog.ActorInfo{
				{ID: "a1", Name: "Ada", Role: "engineer"},
				{ID: "a2", Name: "Bo", Role: "engineer"},
			},
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func drainAndStop(t *testing.T, m *SessionMemory) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Drain(ctx))
	m.Stop()
}

func TestSessionMemoryMaintainsTasksTagsAndBoard(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := openMemoryStore(t)

	// One worker keeps the request/answer maintenance order deterministic.
	m, err := New(store, func(o *Options) {
		o.Workers = 1
		o.BoardWindow = 2
	})
	require.NoError(t, err)

	request, err := store.Append(core.Event{
		Type:    core.KindRequestAnyone,
		Sender:  "a1",
		Scope:   core.ScopePublic,
		Content: map[string]any{"request": "settle the billing schema"},
	})
	require.NoError(t, err)
	m.Enqueue(request)

	answer, err := store.Append(core.Event{
		Type:       core.KindSubmit,
		Sender:     "a2",
		Scope:      core.ScopePublic,
		Content:    map[string]any{"result": "schema settled"},
		References: []core.Reference{core.Ref(request.EventID)},
	})
	require.NoError(t, err)
	m.Enqueue(answer)

	drainAndStop(t, m)

	// Bo picked the request up as a todo and closed it by citing it.
	assert.Empty(t, m.Tasks("a1"))
	assert.Equal(t, []string{"[done] settle the billing schema"}, m.Tasks("a2"))

	// Both events were classified in the shared tag pool.
	assert.Contains(t, m.TagIndex().Tags(), "billing")
	assert.NotEmpty(t, m.EventsForTag("schema"))

	// Two events filled the board window exactly once.
	assert.NotEmpty(t, m.TeamSummary())

	// Derived tags were patched back through the log.
	stored, err := store.Get(request.EventID)
	require.NoError(t, err)
	assert.Contains(t, stored.Tags, "billing")
}

type stanceScorer struct{}

func (stanceScorer) Score(_ context.Context, citing core.Event, _ []core.Event) ([]core.Reference, error) {
	refs := core.NormalizeReferences(citing.References)
	for i := range refs {
		refs[i].Weight = core.Weight{Stance: 1, Inspiration: 0.9, Dependency: 0.8}
	}
	return refs, nil
}

func TestSessionMemoryRescoresReferences(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := openMemoryStore(t)

	m, err := New(store, func(o *Options) {
		o.Scorer = stanceScorer{}
		o.ScorerConcurrency = 1
	})
	require.NoError(t, err)

	first, err := store.Append(core.Event{
		Type: core.KindSpeak, Sender: "a1", Scope: core.ScopePublic,
		Content: map[string]any{"text": "the plan"},
	})
	require.NoError(t, err)

	second, err := store.Append(core.Event{
		Type: core.KindSpeak, Sender: "a2", Scope: core.ScopePublic,
		Content:    map[string]any{"text": "agreed"},
		References: []core.Reference{core.Ref(first.EventID)},
	})
	require.NoError(t, err)
	m.Enqueue(second)

	drainAndStop(t, m)

	stored, err := store.Get(second.EventID)
	require.NoError(t, err)
	require.Len(t, stored.References, 1)
	assert.Equal(t, 1.0, stored.References[0].Weight.Stance)
	assert.Equal(t, 0.9, stored.References[0].Weight.Inspiration)
}

type blockingScorer struct{ gate chan struct{} }

func (s blockingScorer) Score(ctx context.Context, citing core.Event, _ []core.Event) ([]core.Reference, error) {
	<-s.gate
	return core.NormalizeReferences(citing.References), nil
}

func TestSessionMemoryNeverBlocksOnFullQueue(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := openMemoryStore(t)

	gate := make(chan struct{})
	m, err := New(store, func(o *Options) {
		o.Workers = 1
		o.QueueSize = 1
		o.Scorer = blockingScorer{gate: gate}
	})
	require.NoError(t, err)

	first, err := store.Append(core.Event{
		Type: core.KindSpeak, Sender: "a1", Scope: core.ScopePublic,
		Content: map[string]any{"text": "anchor"},
	})
	require.NoError(t, err)

	// With one worker stuck in the scorer and a queue of one, at least one
	// of these must be dropped, and none may block the committing caller.
	start := time.Now()
	for i := 0; i < 3; i++ {
		ev, err := store.Append(core.Event{
			Type: core.KindSpeak, Sender: "a2", Scope: core.ScopePublic,
			Content:    map[string]any{"text": "follow-up"},
			References: []core.Reference{core.Ref(first.EventID)},
		})
		require.NoError(t, err)
		m.Enqueue(ev)
	}
	assert.Less(t, time.Since(start), time.Second, "enqueue must not block the commit path")

	close(gate)
	drainAndStop(t, m)
	assert.Positive(t, m.Dropped())
}

func TestSessionMemoryDrainWaitsForInFlightWork(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := openMemoryStore(t)

	m, err := New(store, func(o *Options) { o.Workers = 4 })
	require.NoError(t, err)

	for i := 0; i < 30; i++ {
		ev, err := store.Append(core.Event{
			Type: core.KindSpeak, Sender: "a1", Scope: core.ScopePublic,
			Content: map[string]any{"text": "busy work item"},
		})
		require.NoError(t, err)
		m.Enqueue(ev)
	}

	drainAndStop(t, m)

	// After a clean drain every enqueued event was classified.
	total := 0
	for _, tag := range m.TagIndex().Tags() {
		total += len(m.EventsForTag(tag))
	}
	assert.GreaterOrEqual(t, total, 30-int(m.Dropped()))
}

func TestSessionMemoryStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := openMemoryStore(t)

	m, err := New(store)
	require.NoError(t, err)
	m.Stop()
	m.Stop()

	// Enqueue after stop is a quiet no-op.
	m.Enqueue(core.Event{EventID: 1, Type: core.KindSpeak, Content: map[string]any{}})
}

func TestSessionMemoryEnqueueRacesStopSafely(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := openMemoryStore(t)

	m, err := New(store, func(o *Options) { o.Workers = 1 })
	require.NoError(t, err)

	ev, err := store.Append(core.Event{
		Type: core.KindSpeak, Sender: "a1", Scope: core.ScopePublic,
		Content: map[string]any{"text": "racing"},
	})
	require.NoError(t, err)

	// Enqueuers hammering the queue while Stop closes it must never panic;
	// late arrivals are simply dropped.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Enqueue(ev)
			}
		}()
	}
	m.Stop()
	wg.Wait()
}
