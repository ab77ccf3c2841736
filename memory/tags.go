package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agora-sim/agora/core"
)

// Tag bounds: an event carries at most MaxEventTags tags, and the heuristic
// considers at most MaxTagCandidates candidate tags per event.
const (
	MaxEventTags     = 6
	MaxTagCandidates = 9
)

// TagPool is the session-wide shared tag index: a stable vocabulary plus a
// mapping from each tag to the events classified under it. It is seeded on
// first use and extended incrementally; its mutex is the per-resource lock
// for the shared tag file.
type TagPool struct {
	mu     sync.Mutex
	path   string
	order  []string
	events map[string][]int64
}

type tagPoolFile struct {
	Order  []string           `json:"order"`
	Events map[string][]int64 `json:"events"`
}

// LoadTagPool opens the session's tag pool, reading the persisted file when
// it exists.
func LoadTagPool(dir string) (*TagPool, error) {
	p := &TagPool{
		path:   filepath.Join(dir, "tag_index.json"),
		events: make(map[string][]int64),
	}
	raw, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tag index %s: %w", p.path, err)
	}
	var file tagPoolFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse tag index %s: %w", p.path, err)
	}
	p.order = file.Order
	if file.Events != nil {
		p.events = file.Events
	}
	return p, nil
}

// Seed installs an initial vocabulary. Only the first call on an empty pool
// has any effect.
func (p *TagPool) Seed(tags []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.order) > 0 {
		return
	}
	for _, tag := range tags {
		p.addTagLocked(normalizeTag(tag))
	}
}

// Observe classifies a committed event: tags the event already carries are
// honored first, then heuristic tags derived from its text, preferring
// vocabulary the pool already knows. The applied tags (at most MaxEventTags)
// are returned and the event is recorded under each.
func (p *TagPool) Observe(ev core.Event) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	applied := make([]string, 0, MaxEventTags)
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = normalizeTag(tag)
		if tag == "" || seen[tag] || len(applied) >= MaxEventTags {
			return
		}
		seen[tag] = true
		applied = append(applied, tag)
		p.addTagLocked(tag)
		p.events[tag] = append(p.events[tag], ev.EventID)
	}

	for _, tag := range ev.Tags {
		add(tag)
	}
	for _, tag := range p.deriveLocked(ev.Text()) {
		add(tag)
	}
	return applied
}

// deriveLocked proposes candidate tags for a text: known vocabulary that
// appears in it first, then fresh keywords.
func (p *TagPool) deriveLocked(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	var candidates []string
	for _, tag := range p.order {
		if len(candidates) >= MaxTagCandidates {
			return candidates
		}
		if strings.Contains(lower, tag) {
			candidates = append(candidates, tag)
		}
	}
	for _, kw := range keywords(text, MaxTagCandidates) {
		if len(candidates) >= MaxTagCandidates {
			break
		}
		candidates = append(candidates, kw)
	}
	return candidates
}

// EventsForTag returns the events classified under tag, oldest first. The
// returned slice is a copy.
func (p *TagPool) EventsForTag(tag string) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.events[normalizeTag(tag)]...)
}

// Tags returns the vocabulary in insertion order.
func (p *TagPool) Tags() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// Save persists the pool atomically.
func (p *TagPool) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, err := json.MarshalIndent(tagPoolFile{Order: p.order, Events: p.events}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tag index: %w", err)
	}
	return writeFileAtomic(p.path, raw)
}

func (p *TagPool) addTagLocked(tag string) {
	if tag == "" {
		return
	}
	if _, known := p.events[tag]; known {
		return
	}
	p.order = append(p.order, tag)
	p.events[tag] = nil
}

func normalizeTag(tag string) string {
	return strings.TrimSpace(strings.ToLower(tag))
}

// keywords extracts up to max lowercase keywords from text, dropping
// stopwords and tokens shorter than three characters.
func keywords(text string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, token := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(token) < 3 || tagStopwords[token] || seen[token] {
			continue
		}
		seen[token] = true
		out = append(out, token)
		if len(out) == max {
			break
		}
	}
	return out
}

var tagStopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"has": true, "have": true, "was": true, "were": true, "will": true,
	"with": true, "this": true, "that": true, "from": true, "they": true,
	"been": true, "what": true, "when": true, "where": true, "which": true,
	"their": true, "there": true, "about": true, "would": true, "could": true,
	"should": true, "into": true, "than": true, "then": true, "them": true,
	"some": true, "such": true, "also": true, "just": true, "more": true,
	"please": true, "need": true, "needs": true, "let": true, "lets": true,
	"takes": true, "responds": true,
}
