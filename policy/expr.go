package policy

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"
)

// evalExpr parses and evaluates a forbid expression against env. Any parse
// error, unknown name, disallowed syntax node, or type mismatch makes the
// whole expression false: a rule that cannot be understood must not
// suppress anything.
func evalExpr(expr string, env map[string]any) (bool, error) {
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return false, fmt.Errorf("parse %q: %w", expr, err)
	}
	v, err := eval(node, env)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func eval(node ast.Expr, env map[string]any) (any, error) {
	switch n := node.(type) {
	case *ast.ParenExpr:
		return eval(n.X, env)

	case *ast.BasicLit:
		return evalLit(n)

	case *ast.Ident:
		return evalIdent(n.Name, env)

	case *ast.UnaryExpr:
		return evalUnary(n, env)

	case *ast.BinaryExpr:
		return evalBinary(n, env)

	case *ast.SelectorExpr:
		base, err := eval(n.X, env)
		if err != nil {
			return nil, err
		}
		return member(base, n.Sel.Name)

	case *ast.IndexExpr:
		base, err := eval(n.X, env)
		if err != nil {
			return nil, err
		}
		key, err := eval(n.Index, env)
		if err != nil {
			return nil, err
		}
		return index(base, key)

	case *ast.CallExpr:
		return evalCall(n, env)

	default:
		return nil, fmt.Errorf("unsupported syntax %T", node)
	}
}

func evalLit(lit *ast.BasicLit) (any, error) {
	switch lit.Kind {
	case token.INT:
		v, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int literal %s", lit.Value)
		}
		return float64(v), nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad float literal %s", lit.Value)
		}
		return v, nil
	case token.STRING:
		v, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, fmt.Errorf("bad string literal %s", lit.Value)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported literal kind %s", lit.Kind)
	}
}

func evalIdent(name string, env map[string]any) (any, error) {
	switch name {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "nil":
		return nil, nil
	}
	v, ok := env[name]
	if !ok {
		return nil, fmt.Errorf("unknown name %q", name)
	}
	return v, nil
}

func evalUnary(n *ast.UnaryExpr, env map[string]any) (any, error) {
	v, err := eval(n.X, env)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.NOT:
		return !truthy(v), nil
	case token.SUB:
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("cannot negate %T", v)
		}
		return -f, nil
	default:
		return nil, fmt.Errorf("unsupported unary operator %s", n.Op)
	}
}

func evalBinary(n *ast.BinaryExpr, env map[string]any) (any, error) {
	// Short-circuit logic first so the right side may reference names that
	// only exist when the left side holds.
	switch n.Op {
	case token.LAND:
		l, err := eval(n.X, env)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return false, nil
		}
		r, err := eval(n.Y, env)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	case token.LOR:
		l, err := eval(n.X, env)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return true, nil
		}
		r, err := eval(n.Y, env)
		if err != nil {
			return nil, err
		}
		return truthy(r), nil
	}

	l, err := eval(n.X, env)
	if err != nil {
		return nil, err
	}
	r, err := eval(n.Y, env)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case token.EQL:
		return equal(l, r), nil
	case token.NEQ:
		return !equal(l, r), nil
	case token.LSS, token.LEQ, token.GTR, token.GEQ:
		return compare(n.Op, l, r)
	case token.ADD, token.SUB, token.MUL, token.QUO:
		return arith(n.Op, l, r)
	default:
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	}
}

func evalCall(n *ast.CallExpr, env map[string]any) (any, error) {
	ident, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("only plain function calls are allowed")
	}
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := eval(a, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch ident.Name {
	case "abs":
		if len(args) != 1 {
			return nil, fmt.Errorf("abs takes one argument")
		}
		f, ok := asFloat(args[0])
		if !ok {
			return nil, fmt.Errorf("abs wants a number, got %T", args[0])
		}
		return math.Abs(f), nil

	case "len":
		if len(args) != 1 {
			return nil, fmt.Errorf("len takes one argument")
		}
		return length(args[0])

	case "empty":
		if len(args) != 1 {
			return nil, fmt.Errorf("empty takes one argument")
		}
		if args[0] == nil {
			return true, nil
		}
		n, err := length(args[0])
		if err != nil {
			return nil, err
		}
		return n == 0.0, nil

	case "contains":
		if len(args) != 2 {
			return nil, fmt.Errorf("contains takes two arguments")
		}
		return containsValue(args[0], args[1])

	case "get":
		if len(args) != 3 {
			return nil, fmt.Errorf("get takes three arguments")
		}
		v, err := index(args[0], args[1])
		if err != nil || v == nil {
			return args[2], nil
		}
		return v, nil

	default:
		return nil, fmt.Errorf("unknown function %q", ident.Name)
	}
}

func member(base any, name string) (any, error) {
	m, ok := base.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot select %q from %T", name, base)
	}
	v, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no field %q", name)
	}
	return v, nil
}

func index(base, key any) (any, error) {
	switch b := base.(type) {
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("map index must be a string, got %T", key)
		}
		v, ok := b[k]
		if !ok {
			return nil, fmt.Errorf("no key %q", k)
		}
		return v, nil
	case []any:
		f, ok := asFloat(key)
		if !ok {
			return nil, fmt.Errorf("list index must be a number, got %T", key)
		}
		i := int(f)
		if i < 0 || i >= len(b) {
			return nil, fmt.Errorf("index %d out of range", i)
		}
		return b[i], nil
	default:
		return nil, fmt.Errorf("cannot index %T", base)
	}
}

func length(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return float64(len(t)), nil
	case []any:
		return float64(len(t)), nil
	case []string:
		return float64(len(t)), nil
	case map[string]any:
		return float64(len(t)), nil
	default:
		return 0, fmt.Errorf("len of %T is not defined", v)
	}
}

func containsValue(haystack, needle any) (bool, error) {
	switch h := haystack.(type) {
	case string:
		s, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string wants a string needle")
		}
		return strings.Contains(h, s), nil
	case []any:
		for _, v := range h {
			if equal(v, needle) {
				return true, nil
			}
		}
		return false, nil
	case []string:
		s, ok := needle.(string)
		if !ok {
			return false, fmt.Errorf("contains on a string list wants a string needle")
		}
		for _, v := range h {
			if v == s {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("contains of %T is not defined", haystack)
	}
}

func compare(op token.Token, l, r any) (bool, error) {
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if lok && rok {
		switch op {
		case token.LSS:
			return lf < rf, nil
		case token.LEQ:
			return lf <= rf, nil
		case token.GTR:
			return lf > rf, nil
		case token.GEQ:
			return lf >= rf, nil
		}
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case token.LSS:
			return ls < rs, nil
		case token.LEQ:
			return ls <= rs, nil
		case token.GTR:
			return ls > rs, nil
		case token.GEQ:
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("cannot compare %T with %T", l, r)
}

func arith(op token.Token, l, r any) (any, error) {
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		return nil, fmt.Errorf("arithmetic needs numbers, got %T and %T", l, r)
	}
	switch op {
	case token.ADD:
		return lf + rf, nil
	case token.SUB:
		return lf - rf, nil
	case token.MUL:
		return lf * rf, nil
	case token.QUO:
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	}
	return nil, fmt.Errorf("unsupported arithmetic operator %s", op)
}

func equal(l, r any) bool {
	if lf, ok := asFloat(l); ok {
		if rf, ok := asFloat(r); ok {
			return lf == rf
		}
		return false
	}
	return l == r
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		if f, ok := asFloat(v); ok {
			return f != 0
		}
		return true
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
