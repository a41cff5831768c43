package expr

import (
	"strconv"
	"strings"
)

// Operator precedence, loosest binding first. Negative number literals rank
// as unary so regenerated text re-parses to the identical AST.
func nodePrec(n *Node) int {
	switch n.Kind {
	case KindRange:
		return 0
	case KindBinary:
		switch n.Name {
		case "||":
			return 1
		case "&&":
			return 2
		case "==", "!=", "<", "<=", ">", ">=":
			return 3
		case "+", "-":
			return 4
		case "*", "/", "%":
			return 5
		case "^":
			return 7
		}
	case KindUnary:
		return 6
	case KindNumber:
		if n.Num < 0 {
			return 6
		}
	}
	return 8
}

// GenerateCode renders an AST back to expression text. Round trip holds:
// parsing the generated text yields a structurally equal AST.
func GenerateCode(n *Node) string {
	var b strings.Builder
	writeNode(&b, n)
	return b.String()
}

func writeNode(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindNumber:
		b.WriteString(strconv.FormatFloat(n.Num, 'g', -1, 64))
	case KindString:
		b.WriteString(strconv.Quote(n.Str))
	case KindBool:
		b.WriteString(strconv.FormatBool(n.Bool))
	case KindIdent:
		b.WriteString(n.Name)
	case KindUnary:
		b.WriteString(n.Name)
		writeChild(b, n.Args[0], nodePrec(n), false)
	case KindBinary:
		p := nodePrec(n)
		rightAssoc := n.Name == "^"
		writeChild(b, n.Args[0], p, rightAssoc)
		b.WriteByte(' ')
		b.WriteString(n.Name)
		b.WriteByte(' ')
		writeChild(b, n.Args[1], p, !rightAssoc)
	case KindRange:
		writeChild(b, n.Args[0], 1, false)
		b.WriteString("..")
		writeChild(b, n.Args[1], 1, true)
	case KindCall:
		b.WriteString(n.Name)
		b.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeNode(b, arg)
		}
		b.WriteByte(')')
	case KindArray:
		b.WriteByte('[')
		for i, arg := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeNode(b, arg)
		}
		b.WriteByte(']')
	}
}

func writeChild(b *strings.Builder, child *Node, parentPrec int, parenOnEqual bool) {
	cp := nodePrec(child)
	needParens := cp < parentPrec || (cp == parentPrec && parenOnEqual)
	if needParens {
		b.WriteByte('(')
		writeNode(b, child)
		b.WriteByte(')')
	} else {
		writeNode(b, child)
	}
}
