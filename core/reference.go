package core

// Weight carries the three independent axes of a citation. The zero value is
// neutral on every axis, so an absent weight needs no special casing.
type Weight struct {
	// Stance in [-1, 1]: disagreement through agreement with the cited event.
	Stance float64 `json:"stance"`
	// Inspiration in [0, 1]: how much the citing event was prompted by the
	// cited one.
	Inspiration float64 `json:"inspiration"`
	// Dependency in [0, 1]: how functionally dependent the citing event is
	// on the cited one.
	Dependency float64 `json:"dependency"`
}

// NeutralWeight returns the zero weight. Kept as a named constructor so call
// sites read as intent rather than as a forgotten field.
func NeutralWeight() Weight { return Weight{} }

// Clamped returns the weight with every axis forced into its legal range.
func (w Weight) Clamped() Weight {
	return Weight{
		Stance:      clampRange(w.Stance, -1, 1),
		Inspiration: clampRange(w.Inspiration, 0, 1),
		Dependency:  clampRange(w.Dependency, 0, 1),
	}
}

// Reference is a weighted citation of a previously committed event.
type Reference struct {
	EventID int64  `json:"event_id"`
	Weight  Weight `json:"weight"`
}

// Ref builds a neutral-weight reference to the given event.
func Ref(eventID int64) Reference {
	return Reference{EventID: eventID, Weight: NeutralWeight()}
}

// NormalizeReference clamps the weight into range. Normalization is
// idempotent: applying it to an already-normalized reference is a no-op.
func NormalizeReference(ref Reference) Reference {
	ref.Weight = ref.Weight.Clamped()
	return ref
}

// NormalizeReferences normalizes a slice of references, never returning nil
// so that serialized events always carry an explicit list.
func NormalizeReferences(refs []Reference) []Reference {
	normalized := make([]Reference, 0, len(refs))
	for _, ref := range refs {
		normalized = append(normalized, NormalizeReference(ref))
	}
	return normalized
}

// ClampUnit forces a score into [0, 1]. Intent scores on drafts and final
// intentions all live on this scale.
func ClampUnit(v float64) float64 { return clampRange(v, 0, 1) }

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
