package eventlog

import (
	"sort"
	"strings"

	"github.com/agora-sim/agora/core"
)

// Query provides retrieval over a Store: point lookup, recency windows,
// keyword search, and reference-chain traversal. All results are ordered
// most recent first unless noted; event ids are monotonic, so commit order
// and id order coincide.
type Query struct {
	store *Store
}

// NewQuery wraps a store.
func NewQuery(store *Store) *Query { return &Query{store: store} }

// ByID returns a single event, reporting whether it exists.
func (q *Query) ByID(id int64) (core.Event, bool) {
	ev, err := q.store.Get(id)
	if err != nil {
		return core.Event{}, false
	}
	return ev, true
}

// LastN returns the trailing n events in commit order.
func (q *Query) LastN(n int) []core.Event {
	events, err := q.store.All()
	if err != nil || n <= 0 {
		return nil
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	return events
}

// Recent returns the most recent events in a scope, newest first.
func (q *Query) Recent(scope string, n int) []core.Event {
	events, err := q.store.All()
	if err != nil || n <= 0 {
		return nil
	}
	matched := make([]core.Event, 0, n)
	for i := len(events) - 1; i >= 0 && len(matched) < n; i-- {
		if events[i].Scope == scope {
			matched = append(matched, events[i])
		}
	}
	return matched
}

// SearchOptions narrows a keyword search.
type SearchOptions struct {
	Scope      string
	Keywords   []string
	EventTypes []string
	AfterID    int64
	Limit      int
}

// Search performs a naive substring keyword search over event content with
// optional type, scope, and after-id filters. An empty keyword list matches
// everything that passes the filters. Results are newest first.
func (q *Query) Search(opts SearchOptions) []core.Event {
	events, err := q.store.All()
	if err != nil {
		return nil
	}

	needles := make([]string, 0, len(opts.Keywords))
	for _, kw := range opts.Keywords {
		if kw != "" {
			needles = append(needles, strings.ToLower(kw))
		}
	}
	types := make(map[string]bool, len(opts.EventTypes))
	for _, t := range opts.EventTypes {
		types[t] = true
	}

	var matched []core.Event
	for _, ev := range events {
		if opts.Scope != "" && ev.Scope != opts.Scope {
			continue
		}
		if len(types) > 0 && !types[ev.Type] {
			continue
		}
		if opts.AfterID > 0 && ev.EventID <= opts.AfterID {
			continue
		}
		if len(needles) > 0 && !matchesAny(ev, needles) {
			continue
		}
		matched = append(matched, ev)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].EventID > matched[j].EventID })
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched
}

func matchesAny(ev core.Event, needles []string) bool {
	var b strings.Builder
	b.WriteString(ev.Type)
	b.WriteByte(' ')
	b.WriteString(ev.Text())
	for _, tag := range ev.Tags {
		b.WriteByte(' ')
		b.WriteString(tag)
	}
	for _, v := range ev.Metadata {
		b.WriteByte(' ')
		b.WriteString(v)
	}
	haystack := strings.ToLower(b.String())
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// ThreadUp follows reference chains upwards from an event for a limited
// depth, collecting the cited ancestors newest first. The starting event is
// not included.
func (q *Query) ThreadUp(id int64, depth int) []core.Event {
	seen := map[int64]bool{id: true}
	frontier := []int64{id}
	var collected []core.Event

	for range depth {
		var next []int64
		for _, current := range frontier {
			ev, ok := q.ByID(current)
			if !ok {
				continue
			}
			for _, ref := range ev.References {
				if seen[ref.EventID] {
					continue
				}
				seen[ref.EventID] = true
				ancestor, ok := q.ByID(ref.EventID)
				if !ok {
					continue
				}
				collected = append(collected, ancestor)
				next = append(next, ref.EventID)
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	sort.Slice(collected, func(i, j int) bool { return collected[i].EventID > collected[j].EventID })
	return collected
}
