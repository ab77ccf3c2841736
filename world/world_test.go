package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/actor"
	"github.com/agora-sim/agora/core"
)

// Interface compliance (compile-time assertions)
var (
	_ Observer = (*ActorObserver)(nil)
	_ Observer = (*FuncObserver)(nil)
)

type recordingObserver struct {
	id    string
	scope string
	seen  []int64
}

func (r *recordingObserver) ID() string            { return r.id }
func (r *recordingObserver) Scope() string         { return r.scope }
func (r *recordingObserver) OnEvent(ev core.Event) { r.seen = append(r.seen, ev.EventID) }

func committedEvent(id int64, scope string) core.Event {
	ev := core.NewEvent("a1", core.KindSpeak, map[string]any{"text": "x"})
	ev.EventID = id
	ev.Scope = scope
	return ev
}

func TestVisible(t *testing.T) {
	tests := []struct {
		name          string
		eventScope    string
		observerScope string
		want          bool
	}{
		{"public event, public observer", core.ScopePublic, core.ScopePublic, true},
		{"public event, scoped observer", core.ScopePublic, "team-red", true},
		{"scoped event, same scope", "team-red", "team-red", true},
		{"scoped event, other scope", "team-red", "team-blue", false},
		{"scoped event, public observer sees everything", "team-red", core.ScopePublic, true},
		{"empty scopes default to public", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Visible(tt.eventScope, tt.observerScope))
		})
	}
}

func TestEmitDeliversByScope(t *testing.T) {
	w := New()
	pub := &recordingObserver{id: "viewer", scope: core.ScopePublic}
	red := &recordingObserver{id: "red", scope: "team-red"}
	blue := &recordingObserver{id: "blue", scope: "team-blue"}
	w.AddObserver(pub)
	w.AddObserver(red)
	w.AddObserver(blue)

	w.Emit(committedEvent(1, core.ScopePublic))
	w.Emit(committedEvent(2, "team-red"))

	assert.Equal(t, []int64{1, 2}, pub.seen)
	assert.Equal(t, []int64{1, 2}, red.seen)
	assert.Equal(t, []int64{1}, blue.seen)
	assert.Len(t, w.Timeline(), 2)
}

func TestActorObserverUpdatesMemory(t *testing.T) {
	a := actor.New("1", "Ada", "analyst")
	w := New()
	w.AddObserver(NewActorObserver(a))

	w.Emit(committedEvent(5, core.ScopePublic))
	w.Emit(committedEvent(6, core.ScopePublic))

	require.Equal(t, []int64{5, 6}, a.Memory())
}

func TestEmitPreservesOrder(t *testing.T) {
	w := New()
	obs := &recordingObserver{id: "o", scope: core.ScopePublic}
	w.AddObserver(obs)

	for i := int64(1); i <= 20; i++ {
		w.Emit(committedEvent(i, core.ScopePublic))
	}

	require.Len(t, obs.seen, 20)
	for i, id := range obs.seen {
		assert.Equal(t, int64(i+1), id)
	}
}
