// Package policy gates which intentions may become events. Rules are keyed
// by act kind and split into require blocks (fields that must be present,
// reference-count minimums, reference target-type constraints) and forbid
// blocks (boolean expressions that must evaluate false).
//
// Forbid expressions are parsed with go/parser and walked over an explicitly
// allow-listed grammar: names, literals, boolean/unary/comparison operators,
// attribute and subscript access into the intention/actor/referenced-event
// documents, and a fixed whitelist of side-effect-free functions. This is a
// hard boundary: the evaluator is not, and must not become, a
// general-purpose scripting engine. Unsupported syntax fails the expression
// to false rather than erroring.
package policy
