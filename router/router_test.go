package router

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/actor"
	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/eventlog"
	"github.com/agora-sim/agora/policy"
	"github.com/agora-sim/agora/world"
)

const testPolicy = `
unknown_kinds: warn
kinds:
  speak:
    require:
      fields: [payload.text]
  evaluate:
    require:
      references:
        min: 1
  pass: {}
`

func newTestRouter(t *testing.T) (*Router, *eventlog.Store, *world.World) {
	t.Helper()

	store, err := eventlog.Open(t.TempDir(), func(o *eventlog.Options) {
		o.SessionID = "router-test"
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	policyPath := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(policyPath, []byte(testPolicy), 0o644))
	cfg, err := policy.Load(policyPath)
	require.NoError(t, err)

	interp := policy.NewInterpreter(cfg, func(o *policy.InterpreterOptions) {
		o.Store = store
	})
	w := world.New()
	return New(interp, store, w), store, w
}

func speakIntention(agentID, text string) core.FinalIntention {
	return core.FinalIntention{
		IntentionID: "int-1",
		AgentID:     agentID,
		Kind:        core.KindSpeak,
		Payload:     map[string]any{"text": text},
		TargetScope: core.ScopePublic,
		Confidence:  0.8,
	}
}

func TestRouteCommitsAndBroadcastsApprovedActs(t *testing.T) {
	r, store, w := newTestRouter(t)
	ada := actor.New("a1", "Ada", "engineer")

	var delivered []core.Event
	w.AddObserver(&world.FuncObserver{
		ObserverID: "viewer",
		Fn:         func(ev core.Event) { delivered = append(delivered, ev) },
	})

	committed, decision, err := r.Route(speakIntention("a1", "hello"), ada)
	require.NoError(t, err)
	assert.True(t, decision.IsApproved())
	assert.True(t, committed.Committed())
	assert.Equal(t, "Ada", committed.SenderName)
	assert.Equal(t, "engineer", committed.SenderRole)
	assert.Equal(t, "int-1", committed.Metadata["intention_id"])

	stored, err := store.Get(committed.EventID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Text())

	require.Len(t, delivered, 1)
	assert.Equal(t, committed.EventID, delivered[0].EventID)
}

func TestRouteSuppressedActLeavesNoTrace(t *testing.T) {
	r, store, w := newTestRouter(t)
	ada := actor.New("a1", "Ada", "engineer")

	final := speakIntention("a1", "") // missing required text
	committed, decision, err := r.Route(final, ada)
	require.NoError(t, err)
	assert.False(t, decision.IsApproved())
	assert.NotEmpty(t, decision.Violations)
	assert.False(t, committed.Committed())

	assert.Equal(t, 0, store.Len())
	assert.Empty(t, w.Timeline())
}

func TestRouteRejectsCitationsOutsideCandidates(t *testing.T) {
	r, store, _ := newTestRouter(t)
	ada := actor.New("a1", "Ada", "engineer")

	seed, _, err := r.Route(speakIntention("a1", "seed"), ada)
	require.NoError(t, err)

	final := speakIntention("a1", "cheating")
	final.Candidates = []core.Reference{core.Ref(seed.EventID)}
	final.References = []core.Reference{core.Ref(seed.EventID), core.Ref(999)}

	_, _, err = r.Route(final, ada)
	assert.ErrorIs(t, err, ErrCitationIntegrity)
	assert.Equal(t, 1, store.Len(), "nothing new may be committed")
}

func TestRouteReferenceMinimumScenario(t *testing.T) {
	r, _, _ := newTestRouter(t)
	bo := actor.New("a2", "Bo", "reviewer")

	// evaluate requires at least one reference; with zero candidates the
	// resolver produced nothing and the act is suppressed.
	verdict := core.FinalIntention{
		IntentionID: "int-2",
		AgentID:     "a2",
		Kind:        core.KindEvaluate,
		Payload:     map[string]any{"verdict": "fine"},
		TargetScope: core.ScopePublic,
	}
	_, decision, err := r.Route(verdict, bo)
	require.NoError(t, err)
	assert.False(t, decision.IsApproved())

	// A pass with empty references clears the same policy.
	pass := core.FinalIntention{
		IntentionID: "int-3",
		AgentID:     "a2",
		Kind:        core.KindPass,
		Payload:     map[string]any{},
		TargetScope: core.ScopePublic,
	}
	_, decision, err = r.Route(pass, bo)
	require.NoError(t, err)
	assert.True(t, decision.IsApproved())
}

func TestRouteScopeFallsBackToSubjectScope(t *testing.T) {
	r, _, _ := newTestRouter(t)
	scoped := actor.New("a3", "Cy", "analyst", func(o *actor.Options) {
		o.Scope = "finance"
	})

	final := speakIntention("a3", "numbers look off")
	final.TargetScope = ""
	committed, decision, err := r.Route(final, scoped)
	require.NoError(t, err)
	require.True(t, decision.IsApproved())
	assert.Equal(t, "finance", committed.Scope)
}
