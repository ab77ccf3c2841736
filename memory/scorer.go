package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/model"
)

// Scorer re-scores the citation weights of a committed event against the
// context that has become available since commit. Implementations must
// return one reference per input reference, preserving event ids and order;
// only weights may change.
type Scorer interface {
	Score(ctx context.Context, citing core.Event, cited []core.Event) ([]core.Reference, error)
}

// NoopScorer keeps every weight as committed.
type NoopScorer struct{}

var _ Scorer = NoopScorer{}

// Score implements Scorer.
func (NoopScorer) Score(_ context.Context, citing core.Event, _ []core.Event) ([]core.Reference, error) {
	return core.NormalizeReferences(citing.References), nil
}

// ModelScorer asks a generative backend for stance/inspiration/dependency
// judgments. Responses that cannot be parsed leave the original weights in
// place; scoring is advisory and must never corrupt the reference list.
type ModelScorer struct {
	backend model.Backend
	budget  *core.CallBudget
}

var _ Scorer = (*ModelScorer)(nil)

// ModelScorerOptions configure a ModelScorer.
type ModelScorerOptions struct {
	// Budget caps backend calls across the run; nil means no cap. Once
	// exhausted, scoring keeps the committed weights.
	Budget *core.CallBudget
}

// NewModelScorer builds a scorer over backend.
func NewModelScorer(backend model.Backend, optFns ...func(o *ModelScorerOptions)) *ModelScorer {
	opts := ModelScorerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelScorer{backend: backend, budget: opts.Budget}
}

type scoredWeight struct {
	EventID     int64   `json:"event_id"`
	Stance      float64 `json:"stance"`
	Inspiration float64 `json:"inspiration"`
	Dependency  float64 `json:"dependency"`
}

// Score implements Scorer.
func (s *ModelScorer) Score(ctx context.Context, citing core.Event, cited []core.Event) ([]core.Reference, error) {
	refs := core.NormalizeReferences(citing.References)
	if len(refs) == 0 {
		return refs, nil
	}
	if s.budget != nil && !s.budget.Try() {
		return refs, nil
	}

	text, err := s.backend.Complete(ctx, s.prompt(citing, cited))
	if err != nil {
		return nil, fmt.Errorf("score references of event %d: %w", citing.EventID, err)
	}

	var scored []scoredWeight
	if err := json.Unmarshal([]byte(extractJSON(text)), &scored); err != nil {
		// Unparseable judgment; keep the committed weights.
		return refs, nil
	}
	byID := make(map[int64]scoredWeight, len(scored))
	for _, sw := range scored {
		byID[sw.EventID] = sw
	}

	out := make([]core.Reference, len(refs))
	for i, ref := range refs {
		out[i] = ref
		if sw, ok := byID[ref.EventID]; ok {
			out[i].Weight = core.Weight{
				Stance:      sw.Stance,
				Inspiration: sw.Inspiration,
				Dependency:  sw.Dependency,
			}.Clamped()
		}
	}
	return out, nil
}

func (s *ModelScorer) prompt(citing core.Event, cited []core.Event) []model.Message {
	var user strings.Builder
	fmt.Fprintf(&user, "A new statement cites prior statements. Judge each citation on three axes: stance in [-1,1] (disagreement to agreement), inspiration in [0,1], dependency in [0,1].\n\n")
	fmt.Fprintf(&user, "New statement (event %d, by %s): %s\n\nCited statements:\n", citing.EventID, citing.SenderName, citing.Text())
	for _, ev := range cited {
		fmt.Fprintf(&user, "- event %d, by %s: %s\n", ev.EventID, ev.SenderName, ev.Text())
	}
	user.WriteString("\nAnswer with a JSON array of objects {\"event_id\", \"stance\", \"inspiration\", \"dependency\"} and nothing else.")

	return []model.Message{
		model.SystemMessage("You judge relationships between statements. Answer with JSON only."),
		model.UserMessage(user.String()),
	}
}

// extractJSON tolerates prose or code fences around the JSON array.
func extractJSON(text string) string {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
