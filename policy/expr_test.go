package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalExpr(t *testing.T) {
	env := map[string]any{
		"public": "public",
		"intention": map[string]any{
			"kind":       "speak",
			"confidence": 0.8,
			"ref_count":  2.0,
			"tags":       []any{"planning", "budget"},
			"payload": map[string]any{
				"text": "hello",
			},
		},
		"actor": map[string]any{
			"role":  "engineer",
			"scope": "public",
		},
		"max_refs": 3.0,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{`intention.kind == "speak"`, true},
		{`intention.kind != "speak"`, false},
		{`intention.confidence > 0.5`, true},
		{`intention.confidence >= 0.8 && actor.role == "engineer"`, true},
		{`intention.ref_count > max_refs`, false},
		{`intention.ref_count + 1 > max_refs`, false},
		{`intention.ref_count * 2 > max_refs`, true},
		{`!empty(intention.tags)`, true},
		{`empty(intention.payload.text)`, false},
		{`len(intention.tags) >= 2`, true},
		{`contains(intention.tags, "budget")`, true},
		{`contains(intention.payload.text, "ell")`, true},
		{`actor.scope == public`, true},
		{`abs(0 - intention.confidence) > 0.5`, true},
		{`get(intention.payload, "missing", "x") == "x"`, true},
		{`intention.confidence < 0.2 || intention.ref_count == 2`, true},
		{`-intention.confidence < 0`, true},
		{`(intention.confidence > 0.5) == true`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpr(tt.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalExprFailsClosed(t *testing.T) {
	env := map[string]any{
		"intention": map[string]any{"kind": "speak"},
	}

	// Every broken rule evaluates false instead of suppressing anything.
	tests := []string{
		`unknown_name > 1`,
		`intention.no_such_field == "x"`,
		`intention.kind - 1 > 0`,
		`os_exec("rm")`,
		`intention.kind(1)`,
		`func() {}`,
		`[]string{"a"}`,
		`1 / 0 > 0`,
		`not valid at all ((`,
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			got, err := evalExpr(expr, env)
			assert.Error(t, err)
			assert.False(t, got)
		})
	}
}

func TestEvalExprShortCircuit(t *testing.T) {
	env := map[string]any{
		"referenced_event": nil,
	}

	// The right side names a field on a nil document; short-circuiting must
	// keep that from poisoning the whole expression.
	got, err := evalExpr(`!empty(referenced_event) && referenced_event.scope == "team"`, env)
	require.NoError(t, err)
	assert.False(t, got)
}
