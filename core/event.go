package core

import (
	"time"
)

// Act kinds understood by the reference pipeline and the shipped policies.
// The set is open: policies and actors may introduce further kinds, the core
// only requires that a kind is a non-empty string.
const (
	KindSpeak           = "speak"
	KindRequestAnyone   = "request_anyone"
	KindRequestSpecific = "request_specific"
	KindRequestAll      = "request_all"
	KindSubmit          = "submit"
	KindEvaluate        = "evaluate"
	KindPass            = "pass"
)

// ScopePublic is the visibility partition every observer can see.
const ScopePublic = "public"

// Event is an immutable, committed fact in the session log. The EventID is
// assigned by the event log's sequence on append, never by the producer, and
// is strictly increasing within a session. After commit only Tags and
// References may change, and only through the log's derived-field update
// path (see eventlog.Store.UpdateDerived).
type Event struct {
	EventID    int64             `json:"event_id"`
	Type       string            `json:"type"`
	Sender     string            `json:"sender"`
	SenderName string            `json:"sender_name,omitempty"`
	SenderRole string            `json:"sender_role,omitempty"`
	Scope      string            `json:"scope"`
	Content    map[string]any    `json:"content"`
	References []Reference       `json:"references"`
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewEvent builds an uncommitted event. EventID stays zero until the event
// log appends it; Scope defaults to public.
func NewEvent(sender, eventType string, content map[string]any) Event {
	return Event{
		Type:       eventType,
		Sender:     sender,
		Scope:      ScopePublic,
		Content:    content,
		References: []Reference{},
		Timestamp:  time.Now().UTC(),
	}
}

// Committed reports whether the event has been assigned an id by the log.
func (e Event) Committed() bool { return e.EventID > 0 }

// IsRequest reports whether the event solicits work from other actors.
func (e Event) IsRequest() bool {
	switch e.Type {
	case KindRequestAnyone, KindRequestSpecific, KindRequestAll:
		return true
	}
	return false
}

// Text returns the best-effort textual payload of the event. Content is an
// opaque map keyed by act kind, but every shipped kind carries one of these
// keys.
func (e Event) Text() string {
	for _, key := range []string{"text", "request", "result", "verdict"} {
		if v, ok := e.Content[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// ReferencedIDs returns the cited event ids preserving reference order.
func (e Event) ReferencedIDs() []int64 {
	ids := make([]int64, 0, len(e.References))
	for _, ref := range e.References {
		ids = append(ids, ref.EventID)
	}
	return ids
}

// Clone returns a deep copy safe for independent mutation. The maintenance
// workers patch tags and weights on copies before handing them back to the
// log, so the broadcast value is never written to.
func (e Event) Clone() Event {
	clone := e
	clone.Content = make(map[string]any, len(e.Content))
	for k, v := range e.Content {
		clone.Content[k] = v
	}
	clone.References = make([]Reference, len(e.References))
	copy(clone.References, e.References)
	clone.Tags = make([]string, len(e.Tags))
	copy(clone.Tags, e.Tags)
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}
