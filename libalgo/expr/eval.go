package expr

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// ValueKind discriminates runtime value variants.
type ValueKind int

const (
	Invalid ValueKind = iota
	Number
	String
	Bool
	List
)

// Value is an evaluated expression result.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
	List []Value
}

func Num(v float64) Value  { return Value{Kind: Number, Num: v} }
func Str(s string) Value   { return Value{Kind: String, Str: s} }
func BoolVal(b bool) Value { return Value{Kind: Bool, Bool: b} }

// Equal is exact structural equality. Formulas are deterministic pure
// functions of their inputs, so no numeric tolerance is applied.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case Number:
		return v.Num == other.Num
	case String:
		return v.Str == other.Str
	case Bool:
		return v.Bool == other.Bool
	case List:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
	}
	return true
}

// ToAny converts a Value to the plain-JSON representation stored in tokens.
func (v Value) ToAny() any {
	switch v.Kind {
	case Number:
		return v.Num
	case String:
		return v.Str
	case Bool:
		return v.Bool
	case List:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.ToAny()
		}
		return out
	}
	return nil
}

// FromAny converts a decoded JSON value to a Value.
func FromAny(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{}, errors.Wrap(tokens.ErrEvaluation, "nil value")
	case float64:
		return Num(x), nil
	case int:
		return Num(float64(x)), nil
	case string:
		return Str(x), nil
	case bool:
		return BoolVal(x), nil
	case []any:
		list := make([]Value, len(x))
		for i, item := range x {
			v, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			list[i] = v
		}
		return Value{Kind: List, List: list}, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, errors.Wrapf(tokens.ErrEvaluation, "bad number %q", x.String())
		}
		return Num(f), nil
	}
	return Value{}, errors.Wrapf(tokens.ErrEvaluation, "unsupported value type %T", raw)
}

// Scope resolves variable names to values during evaluation.
type Scope interface {
	Lookup(name string) (Value, bool)
}

// Bindings is the plain map Scope used by the step pipeline.
type Bindings map[string]Value

func (b Bindings) Lookup(name string) (Value, bool) {
	v, ok := b[name]
	return v, ok
}

// Eval interprets an AST against a scope. All failures come back as wrapped
// ErrEvaluation / ErrReference values; Eval never panics on user input.
func Eval(n *Node, scope Scope) (Value, error) {
	switch n.Kind {
	case KindNumber:
		return Num(n.Num), nil
	case KindString:
		return Str(n.Str), nil
	case KindBool:
		return BoolVal(n.Bool), nil

	case KindIdent:
		v, ok := scope.Lookup(n.Name)
		if !ok {
			return Value{}, errors.Wrapf(tokens.ErrReference, "undefined variable %q", n.Name)
		}
		return v, nil

	case KindUnary:
		arg, err := Eval(n.Args[0], scope)
		if err != nil {
			return Value{}, err
		}
		switch n.Name {
		case "-":
			if arg.Kind != Number {
				return Value{}, errors.Wrap(tokens.ErrEvaluation, "unary minus on non-number")
			}
			return Num(-arg.Num), nil
		case "!":
			if arg.Kind != Bool {
				return Value{}, errors.Wrap(tokens.ErrEvaluation, "logical not on non-boolean")
			}
			return BoolVal(!arg.Bool), nil
		}
		return Value{}, errors.Wrapf(tokens.ErrEvaluation, "unknown unary operator %q", n.Name)

	case KindBinary:
		return evalBinary(n, scope)

	case KindCall:
		return evalCall(n, scope)

	case KindArray:
		list := make([]Value, len(n.Args))
		for i, arg := range n.Args {
			v, err := Eval(arg, scope)
			if err != nil {
				return Value{}, err
			}
			list[i] = v
		}
		return Value{Kind: List, List: list}, nil

	case KindRange:
		lo, err := evalNumber(n.Args[0], scope)
		if err != nil {
			return Value{}, err
		}
		hi, err := evalNumber(n.Args[1], scope)
		if err != nil {
			return Value{}, err
		}
		return expandRange(lo, hi), nil
	}
	return Value{}, errors.Wrapf(tokens.ErrEvaluation, "unknown node kind %q", n.Kind)
}

// expandRange produces the inclusive integer sequence lo..hi, descending when
// lo > hi.
func expandRange(lo, hi float64) Value {
	a, b := int(lo), int(hi)
	step := 1
	if a > b {
		step = -1
	}
	var list []Value
	for i := a; ; i += step {
		list = append(list, Num(float64(i)))
		if i == b {
			break
		}
	}
	return Value{Kind: List, List: list}
}

func evalNumber(n *Node, scope Scope) (float64, error) {
	v, err := Eval(n, scope)
	if err != nil {
		return 0, err
	}
	if v.Kind != Number {
		return 0, errors.Wrap(tokens.ErrEvaluation, "expected a number")
	}
	return v.Num, nil
}

func evalBinary(n *Node, scope Scope) (Value, error) {
	lhs, err := Eval(n.Args[0], scope)
	if err != nil {
		return Value{}, err
	}

	// Short circuit before evaluating the right side.
	switch n.Name {
	case "&&", "||":
		if lhs.Kind != Bool {
			return Value{}, errors.Wrapf(tokens.ErrEvaluation, "%q on non-boolean", n.Name)
		}
		if (n.Name == "&&" && !lhs.Bool) || (n.Name == "||" && lhs.Bool) {
			return lhs, nil
		}
		rhs, err := Eval(n.Args[1], scope)
		if err != nil {
			return Value{}, err
		}
		if rhs.Kind != Bool {
			return Value{}, errors.Wrapf(tokens.ErrEvaluation, "%q on non-boolean", n.Name)
		}
		return rhs, nil
	}

	rhs, err := Eval(n.Args[1], scope)
	if err != nil {
		return Value{}, err
	}

	switch n.Name {
	case "==":
		return BoolVal(lhs.Equal(rhs)), nil
	case "!=":
		return BoolVal(!lhs.Equal(rhs)), nil
	}

	if n.Name == "+" && (lhs.Kind == String || rhs.Kind == String) {
		return Str(stringify(lhs) + stringify(rhs)), nil
	}

	if lhs.Kind == String && rhs.Kind == String {
		switch n.Name {
		case "<":
			return BoolVal(lhs.Str < rhs.Str), nil
		case "<=":
			return BoolVal(lhs.Str <= rhs.Str), nil
		case ">":
			return BoolVal(lhs.Str > rhs.Str), nil
		case ">=":
			return BoolVal(lhs.Str >= rhs.Str), nil
		}
	}

	if lhs.Kind != Number || rhs.Kind != Number {
		return Value{}, errors.Wrapf(tokens.ErrEvaluation, "operator %q needs numeric operands", n.Name)
	}

	a, b := lhs.Num, rhs.Num
	switch n.Name {
	case "+":
		return Num(a + b), nil
	case "-":
		return Num(a - b), nil
	case "*":
		return Num(a * b), nil
	case "/":
		if b == 0 {
			return Value{}, errors.Wrap(tokens.ErrEvaluation, "division by zero")
		}
		return Num(a / b), nil
	case "%":
		if b == 0 {
			return Value{}, errors.Wrap(tokens.ErrEvaluation, "modulo by zero")
		}
		return Num(math.Mod(a, b)), nil
	case "^":
		return Num(math.Pow(a, b)), nil
	case "<":
		return BoolVal(a < b), nil
	case "<=":
		return BoolVal(a <= b), nil
	case ">":
		return BoolVal(a > b), nil
	case ">=":
		return BoolVal(a >= b), nil
	}
	return Value{}, errors.Wrapf(tokens.ErrEvaluation, "unknown operator %q", n.Name)
}

func evalCall(n *Node, scope Scope) (Value, error) {
	spec, ok := functions[n.Name]
	if !ok {
		return Value{}, errors.Wrapf(tokens.ErrEvaluation, "unknown function %q", n.Name)
	}
	argc := len(n.Args)
	if argc < spec.minArgs || (spec.maxArgs >= 0 && argc > spec.maxArgs) {
		return Value{}, errors.Wrapf(tokens.ErrEvaluation, "function %q called with %d args", n.Name, argc)
	}

	args := make([]float64, argc)
	for i, arg := range n.Args {
		f, err := evalNumber(arg, scope)
		if err != nil {
			return Value{}, err
		}
		args[i] = f
	}

	switch n.Name {
	case "pow":
		return Num(math.Pow(args[0], args[1])), nil
	case "sqrt":
		if args[0] < 0 {
			return Value{}, errors.Wrap(tokens.ErrEvaluation, "sqrt of negative number")
		}
		return Num(math.Sqrt(args[0])), nil
	case "abs":
		return Num(math.Abs(args[0])), nil
	case "floor":
		return Num(math.Floor(args[0])), nil
	case "ceil":
		return Num(math.Ceil(args[0])), nil
	case "round":
		return Num(math.Round(args[0])), nil
	case "min":
		best := args[0]
		for _, f := range args[1:] {
			if f < best {
				best = f
			}
		}
		return Num(best), nil
	case "max":
		best := args[0]
		for _, f := range args[1:] {
			if f > best {
				best = f
			}
		}
		return Num(best), nil
	}
	return Value{}, errors.Wrapf(tokens.ErrEvaluation, "unknown function %q", n.Name)
}

func stringify(v Value) string {
	switch v.Kind {
	case Number:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case String:
		return v.Str
	case Bool:
		return strconv.FormatBool(v.Bool)
	}
	return ""
}
