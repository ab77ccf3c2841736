package pipeline

import (
	"context"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/eventlog"
)

// TagLookup maps a tag to the ids of events classified under it. The shared
// tag index of the session memory satisfies this.
type TagLookup interface {
	EventsForTag(tag string) []int64
}

// LogResolverOptions configures the log-backed resolver.
type LogResolverOptions struct {
	// Tags is the shared tag index; nil disables tag retrieval.
	Tags TagLookup

	// WindowFloor is the minimum size of the trailing recency window. The
	// effective window is max(WindowFloor, 2*draft.ActorCount).
	WindowFloor int
}

// LogResolver surfaces candidate citations for a draft from three sources,
// in priority order: the shared tag index, keyword search over recent
// content, and a trailing recency window sized to the actor population.
// Candidates are deduplicated by event id and normalized to neutral-weight
// references.
type LogResolver struct {
	store  *eventlog.Store
	query  *eventlog.Query
	tags   TagLookup
	window int
}

var _ Resolver = (*LogResolver)(nil)

// NewLogResolver builds a resolver over store.
func NewLogResolver(store *eventlog.Store, optFns ...func(o *LogResolverOptions)) *LogResolver {
	opts := LogResolverOptions{
		WindowFloor: 6,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &LogResolver{
		store:  store,
		query:  eventlog.NewQuery(store),
		tags:   opts.Tags,
		window: opts.WindowFloor,
	}
}

// Resolve implements Resolver.
func (r *LogResolver) Resolve(ctx context.Context, draft core.IntentionDraft) ([]core.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	window := r.window
	if w := 2 * draft.ActorCount; w > window {
		window = w
	}

	seen := make(map[int64]bool)
	var candidates []core.Reference
	add := func(id int64) {
		if id <= 0 || seen[id] || !r.store.Has(id) {
			return
		}
		seen[id] = true
		candidates = append(candidates, core.Ref(id))
	}

	if r.tags != nil {
		for _, tag := range draft.RetrievalTags {
			for _, id := range r.tags.EventsForTag(tag) {
				add(id)
			}
		}
	}

	if len(draft.RetrievalKeywords) > 0 {
		for _, ev := range r.query.Search(eventlog.SearchOptions{
			Scope:    draft.TargetScope,
			Keywords: draft.RetrievalKeywords,
			Limit:    window,
		}) {
			add(ev.EventID)
		}
	}

	for _, ev := range r.query.Recent(draft.TargetScope, window) {
		add(ev.EventID)
	}

	return candidates, nil
}
