package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agora-sim/agora/core"
)

// Done-list compaction bounds: once the done list holds CompactThreshold
// uncompacted entries, the oldest CompactBatch of them are merged into one
// summarized entry.
const (
	CompactThreshold = 9
	CompactBatch     = 3
)

// TaskStatus is the lifecycle state of a task entry.
type TaskStatus string

const (
	TaskTodo TaskStatus = "todo"
	TaskDone TaskStatus = "done"
)

// TaskEntry is one line of an actor's personal task table.
type TaskEntry struct {
	ID      string     `json:"id"`
	EventID int64      `json:"event_id,omitempty"`
	Text    string     `json:"text"`
	Status  TaskStatus `json:"status"`

	// Merged marks a compaction summary standing in for several completed
	// entries; merged entries are never compacted again.
	Merged    bool      `json:"merged,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	DoneAt    time.Time `json:"done_at,omitempty"`
}

// TaskTable is one actor's task list, persisted as a JSON file in the
// session directory. All methods are safe for concurrent use; the table's
// own mutex is the per-resource lock serializing maintenance writers.
type TaskTable struct {
	mu      sync.Mutex
	actorID string
	path    string
	entries []TaskEntry
}

func newTaskTable(dir, actorID string) *TaskTable {
	return &TaskTable{
		actorID: actorID,
		path:    filepath.Join(dir, fmt.Sprintf("tasks_%s.json", actorID)),
	}
}

// LoadTaskTable opens the task table for an actor, reading the persisted
// file when it exists.
func LoadTaskTable(dir, actorID string) (*TaskTable, error) {
	t := newTaskTable(dir, actorID)
	raw, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task table %s: %w", t.path, err)
	}
	if err := json.Unmarshal(raw, &t.entries); err != nil {
		return nil, fmt.Errorf("parse task table %s: %w", t.path, err)
	}
	return t, nil
}

// ActorID returns the owning actor.
func (t *TaskTable) ActorID() string { return t.actorID }

// AddTodo appends an open task originating from eventID.
func (t *TaskTable) AddTodo(eventID int64, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.EventID == eventID && e.Status == TaskTodo {
			return
		}
	}
	t.entries = append(t.entries, TaskEntry{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Text:      text,
		Status:    TaskTodo,
		CreatedAt: time.Now().UTC(),
	})
}

// Observe folds a committed event into the table and reports whether the
// table changed. A request aimed at the owning actor opens a todo; an act
// by the owner citing a todo's originating request closes it. Closing may
// trigger compaction.
func (t *TaskTable) Observe(ev core.Event) bool {
	changed := false

	if ev.IsRequest() && requestTargets(ev, t.actorID) {
		t.AddTodo(ev.EventID, ev.Text())
		changed = true
	}

	if ev.Sender == t.actorID && len(ev.References) > 0 {
		cited := make(map[int64]bool, len(ev.References))
		for _, ref := range ev.References {
			cited[ref.EventID] = true
		}
		t.mu.Lock()
		for i := range t.entries {
			e := &t.entries[i]
			if e.Status == TaskTodo && cited[e.EventID] {
				e.Status = TaskDone
				e.DoneAt = time.Now().UTC()
				changed = true
			}
		}
		t.compactLocked()
		t.mu.Unlock()
	}
	return changed
}

// compactLocked merges the oldest completed entries once their number
// reaches the threshold, batch by batch.
func (t *TaskTable) compactLocked() {
	for {
		var doneIdx []int
		for i, e := range t.entries {
			if e.Status == TaskDone && !e.Merged {
				doneIdx = append(doneIdx, i)
			}
		}
		if len(doneIdx) < CompactThreshold {
			return
		}

		batch := doneIdx[:CompactBatch]
		texts := make([]string, 0, CompactBatch)
		for _, i := range batch {
			texts = append(texts, t.entries[i].Text)
		}
		merged := TaskEntry{
			ID:        uuid.NewString(),
			Text:      fmt.Sprintf("completed: %s", strings.Join(texts, "; ")),
			Status:    TaskDone,
			Merged:    true,
			CreatedAt: t.entries[batch[0]].CreatedAt,
			DoneAt:    time.Now().UTC(),
		}

		drop := make(map[int]bool, CompactBatch)
		for _, i := range batch {
			drop[i] = true
		}
		kept := t.entries[:0]
		inserted := false
		for i, e := range t.entries {
			if drop[i] {
				if !inserted {
					kept = append(kept, merged)
					inserted = true
				}
				continue
			}
			kept = append(kept, e)
		}
		t.entries = kept
	}
}

// Render returns human-readable task lines, open items first.
func (t *TaskTable) Render() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var lines []string
	for _, e := range t.entries {
		if e.Status == TaskTodo {
			lines = append(lines, fmt.Sprintf("[todo] %s", e.Text))
		}
	}
	for _, e := range t.entries {
		if e.Status == TaskDone {
			lines = append(lines, fmt.Sprintf("[done] %s", e.Text))
		}
	}
	return lines
}

// Snapshot returns a copy of all entries.
func (t *TaskTable) Snapshot() []TaskEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TaskEntry(nil), t.entries...)
}

// OpenCount returns the number of open todos.
func (t *TaskTable) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.Status == TaskTodo {
			n++
		}
	}
	return n
}

// Save persists the table atomically.
func (t *TaskTable) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	raw, err := json.MarshalIndent(t.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode task table %s: %w", t.actorID, err)
	}
	return writeFileAtomic(t.path, raw)
}

// requestTargets reports whether a request event solicits work from actor.
// Broadcast requests target everyone but their sender.
func requestTargets(ev core.Event, actorID string) bool {
	if ev.Sender == actorID {
		return false
	}
	switch ev.Type {
	case core.KindRequestAnyone, core.KindRequestAll:
		return true
	case core.KindRequestSpecific:
		switch recipients := ev.Content["recipients"].(type) {
		case []string:
			for _, r := range recipients {
				if r == actorID {
					return true
				}
			}
		case []any:
			for _, r := range recipients {
				if s, ok := r.(string); ok && s == actorID {
					return true
				}
			}
		}
	}
	return false
}

// writeFileAtomic writes via a temp file and rename so a crash can never
// leave a half-written derived file behind.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
