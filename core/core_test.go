package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceStrictlyIncreasing(t *testing.T) {
	seq := NewSequence()
	prev := int64(0)
	for range 100 {
		id := seq.Next()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestSequenceSync(t *testing.T) {
	seq := NewSequence()
	seq.Sync(41)
	assert.Equal(t, int64(42), seq.Next())

	// Syncing backwards never rewinds.
	seq.Sync(3)
	assert.Equal(t, int64(43), seq.Next())
}

func TestSequenceConcurrentUnique(t *testing.T) {
	seq := NewSequence()
	var mu sync.Mutex
	seen := map[int64]bool{}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				id := seq.Next()
				mu.Lock()
				assert.False(t, seen[id])
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 400)
}

func TestDraftClampAndInterest(t *testing.T) {
	draft := NewDraft("a1", KindSpeak, "hello")
	draft.Confidence = 2
	draft.Motivation = -1
	draft.Urgency = 0.3
	draft.Clamp()

	assert.Equal(t, 1.0, draft.Confidence)
	assert.Equal(t, 0.0, draft.Motivation)
	assert.Equal(t, 1.0, draft.Interest())
	require.NotEmpty(t, draft.IntentionID)
}

func TestEventText(t *testing.T) {
	ev := NewEvent("a1", KindRequestAnyone, map[string]any{"request": "summarize the findings"})
	assert.Equal(t, "summarize the findings", ev.Text())
	assert.True(t, ev.IsRequest())
	assert.False(t, ev.Committed())
}

func TestEventCloneIsIndependent(t *testing.T) {
	ev := NewEvent("a1", KindSpeak, map[string]any{"text": "hi"})
	ev.References = []Reference{Ref(1)}
	ev.Tags = []string{"greeting"}

	clone := ev.Clone()
	clone.Content["text"] = "changed"
	clone.References[0].Weight.Stance = 1
	clone.Tags[0] = "other"

	assert.Equal(t, "hi", ev.Content["text"])
	assert.Equal(t, 0.0, ev.References[0].Weight.Stance)
	assert.Equal(t, "greeting", ev.Tags[0])
}

func TestCallBudget(t *testing.T) {
	budget := NewCallBudget(2)
	require.True(t, budget.Try())
	require.True(t, budget.Try())
	assert.False(t, budget.Try())

	// A denied call spends nothing.
	assert.Equal(t, 2, budget.Used())
	assert.Equal(t, 0, budget.Remaining())

	unlimited := NewCallBudget(0)
	for range 10 {
		require.True(t, unlimited.Try())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}
