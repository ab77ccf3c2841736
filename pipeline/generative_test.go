package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/model"
)

// stubBackend returns one fixed completion or error.
type stubBackend struct {
	text string
	err  error
}

var _ model.Backend = (*stubBackend)(nil)

func (s *stubBackend) Complete(ctx context.Context, _ []model.Message) (string, error) {
	return s.text, s.err
}

func (s *stubBackend) CompleteAll(ctx context.Context, batches [][]model.Message) ([]string, error) {
	return model.CompleteAll(ctx, s, batches)
}

func (s *stubBackend) Stream(ctx context.Context, _ []model.Message) (<-chan model.Chunk, <-chan error) {
	out := make(chan model.Chunk, 1)
	errCh := make(chan error, 1)
	if s.err != nil {
		errCh <- s.err
	} else {
		out <- model.Chunk{Text: s.text, Done: true}
	}
	close(out)
	close(errCh)
	return out, errCh
}

func (s *stubBackend) Info() model.Info { return model.Info{Name: "stub", Provider: "test"} }

func TestModelProposerUsesBackendCompletion(t *testing.T) {
	p := NewModelProposer(&stubBackend{text: "I suggest we split the rollout in two."})
	pc := ProposerContext{
		Self:       Identity{ID: "a2", Name: "Bo", Role: "engineer"},
		Trigger:    committedEvent(7, "a1", "Ada", core.KindSpeak, "thoughts on the rollout?"),
		ActorCount: 2,
	}

	drafts, err := p.Propose(context.Background(), pc)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, core.KindSpeak, drafts[0].Kind)
	assert.Equal(t, "I suggest we split the rollout in two.", drafts[0].DraftText)
	assert.Contains(t, drafts[0].RetrievalKeywords, "rollout")
}

func TestModelProposerPassSentinelYieldsNoDraft(t *testing.T) {
	p := NewModelProposer(&stubBackend{text: "  pass  "})
	pc := ProposerContext{
		Self:    Identity{ID: "a2", Name: "Bo"},
		Trigger: committedEvent(7, "a1", "Ada", core.KindSpeak, "anything to add?"),
	}

	drafts, err := p.Propose(context.Background(), pc)
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestModelProposerDegradesToFallback(t *testing.T) {
	p := NewModelProposer(&stubBackend{err: errors.New("backend down")})
	pc := ProposerContext{
		Self:    Identity{ID: "a2", Name: "Bo"},
		Trigger: committedEvent(7, "a1", "Ada", core.KindRequestAnyone, "someone take the migration"),
	}

	drafts, err := p.Propose(context.Background(), pc)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, core.KindSubmit, drafts[0].Kind)
}

func TestModelProposerHonorsCallBudget(t *testing.T) {
	p := NewModelProposer(&stubBackend{text: "a costly completion"}, func(o *ModelProposerOptions) {
		o.Budget = core.NewCallBudget(1)
	})
	pc := ProposerContext{
		Self:    Identity{ID: "a2", Name: "Bo"},
		Trigger: committedEvent(7, "a1", "Ada", core.KindRequestAnyone, "someone take the migration"),
	}

	drafts, err := p.Propose(context.Background(), pc)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "a costly completion", drafts[0].DraftText)

	// The second turn exceeds the budget and lands on the rule fallback.
	drafts, err = p.Propose(context.Background(), pc)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.NotEqual(t, "a costly completion", drafts[0].DraftText)
	assert.Equal(t, core.KindSubmit, drafts[0].Kind)
}

func TestModelProposerSkipsForeignTriggers(t *testing.T) {
	p := NewModelProposer(&stubBackend{text: "should never be used"})

	own := committedEvent(5, "a2", "Bo", core.KindSpeak, "my own words")
	drafts, err := p.Propose(context.Background(), ProposerContext{
		Self:    Identity{ID: "a2", Name: "Bo"},
		Trigger: own,
	})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}
