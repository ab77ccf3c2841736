package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agora-sim/agora/core"
)

// DefaultBoardWindow is how many committed events accumulate before a new
// team-progress entry is appended, and how many entries the rendered board
// retains.
const DefaultBoardWindow = 6

// BoardEntry is one rolling team-progress summary.
type BoardEntry struct {
	FromID  int64     `json:"from_id"`
	ToID    int64     `json:"to_id"`
	Summary string    `json:"summary"`
	At      time.Time `json:"at"`
}

// TeamBoardOptions configures a TeamBoard.
type TeamBoardOptions struct {
	// Window is the number of events per summary. Defaults to
	// DefaultBoardWindow.
	Window int

	// PrivilegedRoles name sender roles whose statements are always quoted
	// verbatim in the summary, e.g. a moderator or boss persona.
	PrivilegedRoles []string
}

// TeamBoard maintains the session's rolling progress summaries, persisted
// as a JSON file. Its mutex is the per-resource lock for the board file.
type TeamBoard struct {
	mu         sync.Mutex
	path       string
	window     int
	privileged map[string]bool
	entries    []BoardEntry
	pending    []core.Event
}

type teamBoardFile struct {
	Entries []BoardEntry `json:"entries"`
}

// LoadTeamBoard opens the session's team board, reading the persisted file
// when it exists. Pending (not yet summarized) events are not persisted;
// after a restart the next window simply starts fresh.
func LoadTeamBoard(dir string, optFns ...func(o *TeamBoardOptions)) (*TeamBoard, error) {
	opts := TeamBoardOptions{
		Window: DefaultBoardWindow,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	b := &TeamBoard{
		path:       filepath.Join(dir, "team_board.json"),
		window:     opts.Window,
		privileged: make(map[string]bool, len(opts.PrivilegedRoles)),
	}
	for _, role := range opts.PrivilegedRoles {
		b.privileged[role] = true
	}

	raw, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read team board %s: %w", b.path, err)
	}
	var file teamBoardFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse team board %s: %w", b.path, err)
	}
	b.entries = file.Entries
	return b, nil
}

// Observe accumulates a committed event and reports whether a new summary
// entry was appended.
func (b *TeamBoard) Observe(ev core.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, ev)
	if len(b.pending) < b.window {
		return false
	}

	b.entries = append(b.entries, b.summarizeLocked())
	b.pending = b.pending[:0]
	return true
}

// summarizeLocked builds a deterministic summary of the pending window:
// act counts per kind, the contributing senders, and verbatim quotes from
// privileged senders.
func (b *TeamBoard) summarizeLocked() BoardEntry {
	kinds := make(map[string]int)
	senders := make(map[string]bool)
	var quotes []string
	for _, ev := range b.pending {
		kinds[ev.Type]++
		name := ev.SenderName
		if name == "" {
			name = ev.Sender
		}
		senders[name] = true
		if b.privileged[ev.SenderRole] && ev.Text() != "" {
			quotes = append(quotes, fmt.Sprintf("%s: %q", name, ev.Text()))
		}
	}

	var parts []string
	for _, kind := range sortedKeys(kinds) {
		parts = append(parts, fmt.Sprintf("%d %s", kinds[kind], kind))
	}
	summary := fmt.Sprintf("%s by %s", strings.Join(parts, ", "), strings.Join(sortedKeys(senders), ", "))
	if len(quotes) > 0 {
		summary += "; " + strings.Join(quotes, "; ")
	}

	return BoardEntry{
		FromID:  b.pending[0].EventID,
		ToID:    b.pending[len(b.pending)-1].EventID,
		Summary: summary,
		At:      time.Now().UTC(),
	}
}

// Latest returns the most recent summary, or empty when none exists yet.
func (b *TeamBoard) Latest() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == 0 {
		return ""
	}
	return b.entries[len(b.entries)-1].Summary
}

// Entries returns the trailing window of summaries.
func (b *TeamBoard) Entries() []BoardEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.entries
	if len(entries) > b.window {
		entries = entries[len(entries)-b.window:]
	}
	return append([]BoardEntry(nil), entries...)
}

// Save persists the board atomically.
func (b *TeamBoard) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, err := json.MarshalIndent(teamBoardFile{Entries: b.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode team board: %w", err)
	}
	return writeFileAtomic(b.path, raw)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
