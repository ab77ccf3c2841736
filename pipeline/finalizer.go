package pipeline

import (
	"context"

	"github.com/agora-sim/agora/core"
)

// MaxFinalTags caps the tags carried into a finalized intention.
const MaxFinalTags = 6

// WeightFn assigns the citation weight for one candidate of a draft.
type WeightFn func(draft core.IntentionDraft, candidate core.Reference) core.Weight

// StandardFinalizerOptions configures the finalizer.
type StandardFinalizerOptions struct {
	// PassThreshold is the interest score below which a draft is finalized
	// as a neutral pass act with no references.
	PassThreshold float64

	// Weights overrides the default weight assignment. The default derives
	// weights deterministically from the draft's intent scores: neutral
	// stance, inspiration from motivation, dependency from urgency.
	Weights WeightFn
}

// StandardFinalizer converts drafts into final intentions. It only ever
// attaches references drawn from the candidates it is handed.
type StandardFinalizer struct {
	threshold float64
	weights   WeightFn
}

var _ Finalizer = (*StandardFinalizer)(nil)

// NewStandardFinalizer builds the finalizer.
func NewStandardFinalizer(optFns ...func(o *StandardFinalizerOptions)) *StandardFinalizer {
	opts := StandardFinalizerOptions{
		PassThreshold: 0.25,
		Weights:       defaultWeight,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &StandardFinalizer{
		threshold: opts.PassThreshold,
		weights:   opts.Weights,
	}
}

// Finalize implements Finalizer. A draft whose interest falls below the
// pass threshold bypasses citation entirely: the actor genuinely has
// nothing to add, and forcing a low-value contribution would pollute the
// event graph.
func (f *StandardFinalizer) Finalize(ctx context.Context, draft core.IntentionDraft, candidates []core.Reference) (core.FinalIntention, error) {
	if err := ctx.Err(); err != nil {
		return core.FinalIntention{}, err
	}
	draft.Clamp()

	final := core.FinalIntention{
		IntentionID: draft.IntentionID,
		AgentID:     draft.AgentID,
		TargetScope: draft.TargetScope,
		Confidence:  draft.Confidence,
		Motivation:  draft.Motivation,
		Urgency:     draft.Urgency,
	}

	if draft.Interest() < f.threshold {
		final.Kind = core.KindPass
		final.Payload = map[string]any{}
		final.References = []core.Reference{}
		final.Candidates = []core.Reference{}
		return final, nil
	}

	refs := make([]core.Reference, len(candidates))
	cands := make([]core.Reference, len(candidates))
	for i, cand := range candidates {
		cands[i] = core.Ref(cand.EventID)
		refs[i] = core.Reference{
			EventID: cand.EventID,
			Weight:  f.weights(draft, cand).Clamped(),
		}
	}

	tags := draft.RetrievalTags
	if len(tags) > MaxFinalTags {
		tags = tags[:MaxFinalTags]
	}

	final.Kind = draft.Kind
	final.Payload = map[string]any{payloadKey(draft.Kind): draft.DraftText}
	final.References = refs
	final.Candidates = cands
	final.Tags = append([]string(nil), tags...)
	return final, nil
}

func defaultWeight(draft core.IntentionDraft, _ core.Reference) core.Weight {
	return core.Weight{
		Stance:      0,
		Inspiration: draft.Motivation,
		Dependency:  draft.Urgency,
	}
}

// payloadKey maps an act kind to the content key its text lives under.
func payloadKey(kind string) string {
	switch kind {
	case core.KindRequestAnyone, core.KindRequestSpecific, core.KindRequestAll:
		return "request"
	case core.KindSubmit:
		return "result"
	case core.KindEvaluate:
		return "verdict"
	default:
		return "text"
	}
}
