package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/eventlog"
)

type mapTags map[string][]int64

func (m mapTags) EventsForTag(tag string) []int64 { return m[tag] }

var _ TagLookup = (mapTags)(nil)

func openPipelineStore(t *testing.T) *eventlog.Store {
	t.Helper()
	store, err := eventlog.Open(t.TempDir(), func(o *eventlog.Options) {
		o.SessionID = "pipeline-test"
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func appendText(t *testing.T, store *eventlog.Store, sender, text string) core.Event {
	t.Helper()
	committed, err := store.Append(core.NewEvent(sender, core.KindSpeak, map[string]any{"text": text}))
	require.NoError(t, err)
	return committed
}

func TestResolverCombinesSourcesAndDeduplicates(t *testing.T) {
	store := openPipelineStore(t)

	tagged := appendText(t, store, "a1", "settle the billing schema")
	keyworded := appendText(t, store, "a2", "migration is risky")
	recent := appendText(t, store, "a3", "lunch plans")

	r := NewLogResolver(store, func(o *LogResolverOptions) {
		o.Tags = mapTags{"billing": {tagged.EventID}}
		o.WindowFloor = 3
	})

	draft := core.NewDraft("a4", core.KindSpeak, "about billing migration")
	draft.TargetScope = core.ScopePublic
	draft.RetrievalTags = []string{"billing"}
	draft.RetrievalKeywords = []string{"migration"}

	candidates, err := r.Resolve(context.Background(), draft)
	require.NoError(t, err)

	// Tag hit first, then keyword hit, then remaining recency window; the
	// tagged event appears exactly once even though every source finds it.
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.EventID
	}
	assert.Equal(t, []int64{tagged.EventID, keyworded.EventID, recent.EventID}, ids)

	for _, c := range candidates {
		assert.Equal(t, core.NeutralWeight(), c.Weight)
	}
}

func TestResolverWindowScalesWithActorCount(t *testing.T) {
	store := openPipelineStore(t)
	for i := 0; i < 20; i++ {
		appendText(t, store, "a1", fmt.Sprintf("line %d", i))
	}

	r := NewLogResolver(store, func(o *LogResolverOptions) { o.WindowFloor = 6 })

	draft := core.NewDraft("a2", core.KindSpeak, "")
	draft.TargetScope = core.ScopePublic

	// Floor applies for small populations.
	draft.ActorCount = 2
	candidates, err := r.Resolve(context.Background(), draft)
	require.NoError(t, err)
	assert.Len(t, candidates, 6)

	// Larger populations widen the window to 2*N.
	draft.ActorCount = 5
	candidates, err = r.Resolve(context.Background(), draft)
	require.NoError(t, err)
	assert.Len(t, candidates, 10)
}

func TestResolverSkipsUnknownTaggedIDs(t *testing.T) {
	store := openPipelineStore(t)
	known := appendText(t, store, "a1", "real event")

	r := NewLogResolver(store, func(o *LogResolverOptions) {
		o.Tags = mapTags{"x": {known.EventID, 999, -1}}
	})

	draft := core.NewDraft("a2", core.KindSpeak, "")
	draft.TargetScope = core.ScopePublic
	draft.RetrievalTags = []string{"x"}

	candidates, err := r.Resolve(context.Background(), draft)
	require.NoError(t, err)
	for _, c := range candidates {
		assert.True(t, store.Has(c.EventID))
	}
}

// Containment property: for random tag pools and keyword sets, every
// resolved candidate exists in the log, no candidate repeats, and the
// finalizer never emits a reference outside the candidate set.
func TestResolverContainmentProperty(t *testing.T) {
	store := openPipelineStore(t)
	rng := rand.New(rand.NewSource(42))

	words := []string{"billing", "schema", "rollout", "migration", "review", "deadline", "budget", "risk"}
	var ids []int64
	for i := 0; i < 40; i++ {
		text := fmt.Sprintf("%s and %s in step %d",
			words[rng.Intn(len(words))], words[rng.Intn(len(words))], i)
		ids = append(ids, appendText(t, store, fmt.Sprintf("a%d", rng.Intn(4)), text).EventID)
	}

	tags := mapTags{}
	for _, w := range words {
		for _, id := range ids {
			if rng.Intn(4) == 0 {
				tags[w] = append(tags[w], id)
			}
		}
	}

	r := NewLogResolver(store, func(o *LogResolverOptions) { o.Tags = tags })
	f := NewStandardFinalizer()

	for trial := 0; trial < 50; trial++ {
		draft := core.NewDraft("a9", core.KindSpeak, "whatever comes to mind")
		draft.TargetScope = core.ScopePublic
		draft.ActorCount = rng.Intn(6)
		draft.Confidence, draft.Motivation, draft.Urgency = rng.Float64(), rng.Float64(), rng.Float64()
		for i := rng.Intn(3); i > 0; i-- {
			draft.RetrievalTags = append(draft.RetrievalTags, words[rng.Intn(len(words))])
		}
		for i := rng.Intn(3); i > 0; i-- {
			draft.RetrievalKeywords = append(draft.RetrievalKeywords, words[rng.Intn(len(words))])
		}

		candidates, err := r.Resolve(context.Background(), draft)
		require.NoError(t, err)

		seen := map[int64]bool{}
		for _, c := range candidates {
			assert.True(t, store.Has(c.EventID), "candidate %d must exist", c.EventID)
			assert.False(t, seen[c.EventID], "candidate %d duplicated", c.EventID)
			seen[c.EventID] = true
		}

		final, err := f.Finalize(context.Background(), draft, candidates)
		require.NoError(t, err)
		allowed := final.CandidateSet()
		for _, ref := range final.References {
			assert.True(t, allowed[ref.EventID], "reference %d outside candidate set", ref.EventID)
		}
	}
}
