package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/core"
)

func requestEvent(id int64, sender, text string) core.Event {
	ev := core.NewEvent(sender, core.KindRequestAnyone, map[string]any{"request": text})
	ev.EventID = id
	return ev
}

func submitCiting(id int64, sender string, refs ...int64) core.Event {
	ev := core.NewEvent(sender, core.KindSubmit, map[string]any{"result": "done"})
	ev.EventID = id
	for _, ref := range refs {
		ev.References = append(ev.References, core.Ref(ref))
	}
	return ev
}

func TestTaskTableOpensTodoOnRequest(t *testing.T) {
	table := newTaskTable(t.TempDir(), "a2")

	assert.True(t, table.Observe(requestEvent(1, "a1", "draft the plan")))
	assert.Equal(t, 1, table.OpenCount())
	assert.Equal(t, []string{"[todo] draft the plan"}, table.Render())

	// Same request again does not duplicate the todo.
	table.Observe(requestEvent(1, "a1", "draft the plan"))
	assert.Equal(t, 1, table.OpenCount())

	// The actor's own requests never land on their own table.
	assert.False(t, table.Observe(requestEvent(2, "a2", "someone else please")))
}

func TestTaskTableSpecificRequestChecksRecipients(t *testing.T) {
	table := newTaskTable(t.TempDir(), "a2")

	ev := core.NewEvent("a1", core.KindRequestSpecific, map[string]any{
		"request":    "check numbers",
		"recipients": []string{"a3"},
	})
	ev.EventID = 1
	assert.False(t, table.Observe(ev))

	ev.Content["recipients"] = []string{"a2", "a3"}
	ev.EventID = 2
	assert.True(t, table.Observe(ev))
}

func TestTaskTableClosesTodoOnCitingAct(t *testing.T) {
	table := newTaskTable(t.TempDir(), "a2")
	table.Observe(requestEvent(1, "a1", "draft the plan"))

	// A foreign submission citing the request changes nothing.
	assert.False(t, table.Observe(submitCiting(2, "a3", 1)))
	assert.Equal(t, 1, table.OpenCount())

	// The owner's own citing act moves the todo to done.
	assert.True(t, table.Observe(submitCiting(3, "a2", 1)))
	assert.Equal(t, 0, table.OpenCount())
	assert.Equal(t, []string{"[done] draft the plan"}, table.Render())
}

func TestTaskTableCompaction(t *testing.T) {
	table := newTaskTable(t.TempDir(), "a2")

	for i := int64(1); i <= CompactThreshold; i++ {
		table.Observe(requestEvent(i, "a1", fmt.Sprintf("task %d", i)))
		table.Observe(submitCiting(100+i, "a2", i))
	}

	entries := table.Snapshot()
	// The oldest batch collapsed into one merged summary entry.
	require.Len(t, entries, CompactThreshold-CompactBatch+1)
	assert.True(t, entries[0].Merged)
	assert.Contains(t, entries[0].Text, "task 1")
	assert.Contains(t, entries[0].Text, "task 3")
	for _, e := range entries[1:] {
		assert.False(t, e.Merged)
	}
	for _, e := range entries {
		assert.Equal(t, TaskDone, e.Status)
	}
}

func TestTaskTablePersistenceRoundtrip(t *testing.T) {
	dir := t.TempDir()
	table := newTaskTable(dir, "a2")
	table.Observe(requestEvent(1, "a1", "draft the plan"))
	table.Observe(requestEvent(2, "a1", "review the draft"))
	table.Observe(submitCiting(3, "a2", 1))
	require.NoError(t, table.Save())

	reloaded, err := LoadTaskTable(dir, "a2")
	require.NoError(t, err)
	assert.Equal(t, table.Snapshot(), reloaded.Snapshot())
	assert.Equal(t, 1, reloaded.OpenCount())
}
