package expr

import (
	"fmt"
	"strings"
)

// ValidateAST reports structural problems in an already-parsed AST: unknown
// function calls and arity mismatches. Variable existence is not checked
// here; that needs the variable catalog and belongs to dependency analysis.
func ValidateAST(n *Node) []string {
	var out []string
	n.Walk(func(node *Node) bool {
		if node.Kind != KindCall {
			return true
		}
		spec, ok := functions[node.Name]
		if !ok {
			out = append(out, fmt.Sprintf("unknown function %q", node.Name))
			return true
		}
		argc := len(node.Args)
		if argc < spec.minArgs || (spec.maxArgs >= 0 && argc > spec.maxArgs) {
			out = append(out, fmt.Sprintf("function %q called with %d args", node.Name, argc))
		}
		return true
	})
	return out
}

// ValidateExpression parses and validates raw expression text, reporting
// syntax errors (including unterminated groups) and AST-level problems.
func ValidateExpression(text string) []string {
	ast, err := ParseExpression(text)
	if err != nil {
		msg := err.Error()
		if strings.Count(text, "(") != strings.Count(text, ")") {
			msg = "unterminated group: " + msg
		}
		return []string{msg}
	}
	return ValidateAST(ast)
}

// Complexity is a coarse structural measure of an expression.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// CalculateComplexity scores an AST by node count and nesting depth.
// The score is monotonic: adding operators never lowers it.
func CalculateComplexity(n *Node) Complexity {
	count, depth := measure(n, 0)
	score := count + 2*depth
	switch {
	case score <= 8:
		return ComplexityLow
	case score <= 20:
		return ComplexityMedium
	default:
		return ComplexityHigh
	}
}

func measure(n *Node, level int) (count, maxDepth int) {
	if n == nil {
		return 0, level
	}
	count = 1
	maxDepth = level
	for _, arg := range n.Args {
		c, d := measure(arg, level+1)
		count += c
		if d > maxDepth {
			maxDepth = d
		}
	}
	return count, maxDepth
}
