package policy

import (
	"fmt"
	"strings"

	"github.com/agora-sim/agora/core"
	"github.com/agora-sim/agora/logging"
)

// Violation kinds.
const (
	ViolationRequire = "require"
	ViolationForbid  = "forbid"
	ViolationError   = "error"
	ViolationWarn    = "warn"
)

// Subject is the acting party an intention is evaluated for. *actor.Actor
// satisfies it.
type Subject interface {
	ID() string
	Name() string
	Role() string
	Scope() string
}

// EventSource resolves referenced events for reference-type rules. It is
// satisfied by *eventlog.Store.
type EventSource interface {
	Get(id int64) (core.Event, error)
}

// InterpreterOptions configures the interpreter.
type InterpreterOptions struct {
	// Store resolves referenced events. Without it, rules that inspect
	// referenced events report a "rule needs store" violation instead of
	// silently passing.
	Store EventSource

	Logger logging.Logger
}

// Interpreter evaluates intentions against a policy Config. Evaluation is
// deterministic: the same intention against the same config always yields
// the same decision with violations in the same order.
type Interpreter struct {
	cfg    *Config
	store  EventSource
	logger logging.Logger
}

// NewInterpreter builds an interpreter over cfg.
func NewInterpreter(cfg *Config, optFns ...func(o *InterpreterOptions)) *Interpreter {
	opts := InterpreterOptions{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Interpreter{
		cfg:    cfg,
		store:  opts.Store,
		logger: opts.Logger,
	}
}

// Evaluate checks final against the ruleset for its kind and returns the
// admission decision. Unknown kinds are handled per the config's
// unknown_kinds mode. Evaluate never panics on malformed rules; a rule that
// cannot be evaluated simply does not suppress.
func (in *Interpreter) Evaluate(final core.FinalIntention, subject Subject) core.Decision {
	if final.Kind == "" {
		return core.Suppressed(core.Violation{
			Kind:   ViolationRequire,
			Rule:   "kind",
			Detail: "intention has no kind",
		})
	}

	rs, ok := in.cfg.Kinds[final.Kind]
	if !ok {
		if in.cfg.UnknownKinds == UnknownReject {
			return core.Suppressed(core.Violation{
				Kind:   ViolationForbid,
				Rule:   "unknown_kind",
				Detail: fmt.Sprintf("kind %q has no rules and unknown kinds are rejected", final.Kind),
			})
		}
		return core.Approved(core.Violation{
			Kind:   ViolationWarn,
			Rule:   "unknown_kind",
			Detail: fmt.Sprintf("kind %q has no rules, admitted by permissive policy", final.Kind),
		})
	}

	env := in.buildEnv(final, subject)

	var violations []core.Violation
	if rs.Require != nil {
		violations = append(violations, in.checkRequire(rs.Require, final, env)...)
	}
	for _, expr := range rs.Forbid {
		hit, err := evalExpr(expr, env)
		if err != nil {
			in.logger.Debug("forbid expression failed to evaluate",
				"kind", final.Kind, "expr", expr, "error", err)
			continue
		}
		if hit {
			violations = append(violations, core.Violation{
				Kind:   ViolationForbid,
				Rule:   expr,
				Detail: "expression matched",
			})
		}
	}

	if len(violations) > 0 {
		return core.Suppressed(violations...)
	}
	return core.Approved()
}

func (in *Interpreter) checkRequire(req *RequireBlock, final core.FinalIntention, env map[string]any) []core.Violation {
	var violations []core.Violation

	intention, _ := env["intention"].(map[string]any)
	for _, field := range req.Fields {
		if !fieldPresent(intention, field) {
			violations = append(violations, core.Violation{
				Kind:   ViolationRequire,
				Rule:   "fields." + field,
				Detail: fmt.Sprintf("required field %q is missing or empty", field),
			})
		}
	}

	if req.References == nil {
		return violations
	}
	if n := len(final.References); n < req.References.Min {
		violations = append(violations, core.Violation{
			Kind:   ViolationRequire,
			Rule:   "references.min",
			Detail: fmt.Sprintf("needs at least %d references, has %d", req.References.Min, n),
		})
	}
	if len(req.References.EventTypes) > 0 && len(final.References) > 0 {
		if in.store == nil {
			violations = append(violations, core.Violation{
				Kind:   ViolationError,
				Rule:   "references.event_types",
				Detail: "rule needs store",
			})
		} else {
			for _, ref := range final.References {
				ev, err := in.store.Get(ref.EventID)
				if err != nil {
					violations = append(violations, core.Violation{
						Kind:   ViolationRequire,
						Rule:   "references.event_types",
						Detail: fmt.Sprintf("referenced event %d not found", ref.EventID),
					})
					continue
				}
				if !containsString(req.References.EventTypes, ev.Type) {
					violations = append(violations, core.Violation{
						Kind:   ViolationRequire,
						Rule:   "references.event_types",
						Detail: fmt.Sprintf("event %d is %q, want one of %v", ref.EventID, ev.Type, req.References.EventTypes),
					})
				}
			}
		}
	}
	return violations
}

// buildEnv materializes the documents forbid expressions may inspect. The
// referenced_event document is the first resolvable referenced event, or
// nil when there is none or no store is wired.
func (in *Interpreter) buildEnv(final core.FinalIntention, subject Subject) map[string]any {
	env := map[string]any{
		"public":    core.ScopePublic,
		"intention": intentionDoc(final),
		"actor":     subjectDoc(subject),
	}
	for name, v := range in.cfg.Consts {
		env[name] = v
	}

	var refDoc any
	if in.store != nil {
		for _, ref := range final.References {
			ev, err := in.store.Get(ref.EventID)
			if err != nil {
				continue
			}
			refDoc = eventDoc(ev)
			break
		}
	}
	env["referenced_event"] = refDoc
	return env
}

func intentionDoc(final core.FinalIntention) map[string]any {
	refs := make([]any, len(final.References))
	for i, ref := range final.References {
		refs[i] = map[string]any{
			"event_id":    float64(ref.EventID),
			"stance":      ref.Weight.Stance,
			"inspiration": ref.Weight.Inspiration,
			"dependency":  ref.Weight.Dependency,
		}
	}
	tags := make([]any, len(final.Tags))
	for i, t := range final.Tags {
		tags[i] = t
	}
	payload := final.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"kind":         final.Kind,
		"agent_id":     final.AgentID,
		"target_scope": final.TargetScope,
		"payload":      payload,
		"references":   refs,
		"ref_count":    float64(len(final.References)),
		"tags":         tags,
		"confidence":   final.Confidence,
		"motivation":   final.Motivation,
		"urgency":      final.Urgency,
	}
}

func subjectDoc(subject Subject) map[string]any {
	if subject == nil {
		return map[string]any{}
	}
	return map[string]any{
		"id":    subject.ID(),
		"name":  subject.Name(),
		"role":  subject.Role(),
		"scope": subject.Scope(),
	}
}

func eventDoc(ev core.Event) map[string]any {
	tags := make([]any, len(ev.Tags))
	for i, t := range ev.Tags {
		tags[i] = t
	}
	return map[string]any{
		"event_id":    float64(ev.EventID),
		"type":        ev.Type,
		"sender":      ev.Sender,
		"sender_role": ev.SenderRole,
		"scope":       ev.Scope,
		"text":        ev.Text(),
		"tags":        tags,
	}
}

// fieldPresent resolves a dotted path inside doc and reports whether it
// lands on a non-empty value.
func fieldPresent(doc map[string]any, path string) bool {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur, ok = m[part]
		if !ok {
			return false
		}
	}
	switch v := cur.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
