package expr

// OptimizeExpression applies constant folding and identity elimination until
// a fixed point: applying it to its own output changes nothing.
func OptimizeExpression(n *Node) *Node {
	cur := n.Clone()
	for {
		next := simplify(cur)
		if next.Equal(cur) {
			return next
		}
		cur = next
	}
}

func simplify(n *Node) *Node {
	if len(n.Args) == 0 {
		return n
	}
	cp := *n
	cp.Args = make([]*Node, len(n.Args))
	for i, arg := range n.Args {
		cp.Args[i] = simplify(arg)
	}

	switch cp.Kind {
	case KindBinary:
		return simplifyBinary(&cp)
	case KindUnary:
		return simplifyUnary(&cp)
	case KindCall:
		return simplifyCall(&cp)
	}
	return &cp
}

func isNum(n *Node, v float64) bool {
	return n.Kind == KindNumber && n.Num == v
}

func simplifyBinary(n *Node) *Node {
	lhs, rhs := n.Args[0], n.Args[1]

	// Identity elimination.
	switch n.Name {
	case "+":
		if isNum(lhs, 0) {
			return rhs
		}
		if isNum(rhs, 0) {
			return lhs
		}
	case "-":
		if isNum(rhs, 0) {
			return lhs
		}
	case "*":
		if isNum(lhs, 1) {
			return rhs
		}
		if isNum(rhs, 1) {
			return lhs
		}
	case "/":
		if isNum(rhs, 1) {
			return lhs
		}
	case "^":
		if isNum(rhs, 1) {
			return lhs
		}
	case "&&":
		if lhs.Kind == KindBool {
			if lhs.Bool {
				return rhs
			}
			return BoolNode(false)
		}
	case "||":
		if lhs.Kind == KindBool {
			if lhs.Bool {
				return BoolNode(true)
			}
			return rhs
		}
	}

	// Constant folding over literal-only operands. Division and modulo by a
	// zero literal are left alone so the error surfaces at evaluation time.
	if lhs.Kind == KindNumber && rhs.Kind == KindNumber {
		if (n.Name == "/" || n.Name == "%") && rhs.Num == 0 {
			return n
		}
		if v, err := Eval(n, Bindings{}); err == nil {
			return valueToNode(v)
		}
	}
	if lhs.Kind == KindString && rhs.Kind == KindString {
		if v, err := Eval(n, Bindings{}); err == nil {
			return valueToNode(v)
		}
	}
	return n
}

func simplifyUnary(n *Node) *Node {
	arg := n.Args[0]
	switch {
	case n.Name == "-" && arg.Kind == KindNumber:
		return NumberNode(-arg.Num)
	case n.Name == "!" && arg.Kind == KindBool:
		return BoolNode(!arg.Bool)
	}
	return n
}

func simplifyCall(n *Node) *Node {
	if n.Name == "pow" && len(n.Args) == 2 && isNum(n.Args[1], 1) {
		return n.Args[0]
	}
	for _, arg := range n.Args {
		if arg.Kind != KindNumber {
			return n
		}
	}
	if v, err := Eval(n, Bindings{}); err == nil {
		return valueToNode(v)
	}
	return n
}

func valueToNode(v Value) *Node {
	switch v.Kind {
	case Number:
		return NumberNode(v.Num)
	case String:
		return StringNode(v.Str)
	case Bool:
		return BoolNode(v.Bool)
	}
	return nil
}
