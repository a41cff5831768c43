package expr

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// The formula language: arithmetic and boolean operators, an allow-listed set
// of function calls, array literals and inclusive integer ranges (a..b).
// Precedence, loosest first: .. || && comparison +- */% unary ^ primary.

type rangePT struct {
	Lo *orPT `parser:"@@"`
	Hi *orPT `parser:"( '..' @@ )?"`
}

type orPT struct {
	Lhs  *andPT   `parser:"@@"`
	Rest []*orRhs `parser:"@@*"`
}

type orRhs struct {
	Rhs *andPT `parser:"'||' @@"`
}

type andPT struct {
	Lhs  *cmpPT    `parser:"@@"`
	Rest []*andRhs `parser:"@@*"`
}

type andRhs struct {
	Rhs *cmpPT `parser:"'&&' @@"`
}

type cmpPT struct {
	Lhs  *addPT    `parser:"@@"`
	Rest []*cmpRhs `parser:"@@*"`
}

type cmpRhs struct {
	Op  string `parser:"@( '==' | '!=' | '<=' | '>=' | '<' | '>' )"`
	Rhs *addPT `parser:"@@"`
}

type addPT struct {
	Lhs  *mulPT    `parser:"@@"`
	Rest []*addRhs `parser:"@@*"`
}

type addRhs struct {
	Op  string `parser:"@( '+' | '-' )"`
	Rhs *mulPT `parser:"@@"`
}

type mulPT struct {
	Lhs  *unaryPT  `parser:"@@"`
	Rest []*mulRhs `parser:"@@*"`
}

type mulRhs struct {
	Op  string   `parser:"@( '*' | '/' | '%' )"`
	Rhs *unaryPT `parser:"@@"`
}

type unaryPT struct {
	Op  string `parser:"@( '-' | '!' )?"`
	Pow *powPT `parser:"@@"`
}

type powPT struct {
	Base *primaryPT `parser:"@@"`
	Exp  *unaryPT   `parser:"( '^' @@ )?"`
}

type primaryPT struct {
	Number *float64 `parser:"  @Number"`
	Str    *string  `parser:"| @String"`
	Call   *callPT  `parser:"| @@"`
	Ident  *string  `parser:"| @Ident"`
	Array  *arrayPT `parser:"| @@"`
	Sub    *rangePT `parser:"| '(' @@ ')'"`
}

type callPT struct {
	Name string     `parser:"@Ident '('"`
	Args []*rangePT `parser:"( @@ ( ',' @@ )* )? ')'"`
}

type arrayPT struct {
	Items []*rangePT `parser:"'[' ( @@ ( ',' @@ )* )? ']'"`
}

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`},
	{Name: "Range", Pattern: `\.\.`},
	{Name: "Op", Pattern: `\|\||&&|==|!=|<=|>=|[-+*/%^<>!]`},
	{Name: "Punct", Pattern: `[(),\[\]]`},
})

var exprParser = participle.MustBuild[rangePT](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// ParseExpression parses a formula/condition body into an AST.
// Power is normalized at parse time: a literal^literal stays an infix power
// node, anything else becomes a pow(base, exponent) call. Re-parsing generated
// text reproduces the same AST shape.
func ParseExpression(text string) (*Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.Wrap(tokens.ErrSyntax, "empty expression")
	}
	pt, err := exprParser.ParseString("", text)
	if err != nil {
		return nil, errors.Wrap(tokens.ErrSyntax, err.Error())
	}
	return buildRange(pt), nil
}

func buildRange(pt *rangePT) *Node {
	lo := buildOr(pt.Lo)
	if pt.Hi == nil {
		return lo
	}
	return &Node{Kind: KindRange, Args: []*Node{lo, buildOr(pt.Hi)}}
}

func buildOr(pt *orPT) *Node {
	n := buildAnd(pt.Lhs)
	for _, r := range pt.Rest {
		n = BinaryNode("||", n, buildAnd(r.Rhs))
	}
	return n
}

func buildAnd(pt *andPT) *Node {
	n := buildCmp(pt.Lhs)
	for _, r := range pt.Rest {
		n = BinaryNode("&&", n, buildCmp(r.Rhs))
	}
	return n
}

func buildCmp(pt *cmpPT) *Node {
	n := buildAdd(pt.Lhs)
	for _, r := range pt.Rest {
		n = BinaryNode(r.Op, n, buildAdd(r.Rhs))
	}
	return n
}

func buildAdd(pt *addPT) *Node {
	n := buildMul(pt.Lhs)
	for _, r := range pt.Rest {
		n = BinaryNode(r.Op, n, buildMul(r.Rhs))
	}
	return n
}

func buildMul(pt *mulPT) *Node {
	n := buildUnary(pt.Lhs)
	for _, r := range pt.Rest {
		n = BinaryNode(r.Op, n, buildUnary(r.Rhs))
	}
	return n
}

func buildUnary(pt *unaryPT) *Node {
	n := buildPow(pt.Pow)
	switch pt.Op {
	case "":
		return n
	case "-":
		if n.Kind == KindNumber {
			return NumberNode(-n.Num)
		}
	}
	return UnaryNode(pt.Op, n)
}

func buildPow(pt *powPT) *Node {
	base := buildPrimary(pt.Base)
	if pt.Exp == nil {
		return base
	}
	exp := buildUnary(pt.Exp)
	if base.Kind == KindNumber && exp.Kind == KindNumber {
		return BinaryNode("^", base, exp)
	}
	return CallNode("pow", base, exp)
}

func buildPrimary(pt *primaryPT) *Node {
	switch {
	case pt.Number != nil:
		return NumberNode(*pt.Number)
	case pt.Str != nil:
		return StringNode(*pt.Str)
	case pt.Call != nil:
		name := normalizeFunc(pt.Call.Name)
		args := make([]*Node, len(pt.Call.Args))
		for i, a := range pt.Call.Args {
			args[i] = buildRange(a)
		}
		return CallNode(name, args...)
	case pt.Ident != nil:
		switch *pt.Ident {
		case "true":
			return BoolNode(true)
		case "false":
			return BoolNode(false)
		}
		return IdentNode(*pt.Ident)
	case pt.Array != nil:
		items := make([]*Node, len(pt.Array.Items))
		for i, it := range pt.Array.Items {
			items[i] = buildRange(it)
		}
		return &Node{Kind: KindArray, Args: items}
	default:
		return buildRange(pt.Sub)
	}
}

// normalizeFunc strips the Math. namespace so Math.pow and pow parse to the
// same call node.
func normalizeFunc(name string) string {
	return strings.TrimPrefix(name, "Math.")
}

type fnSpec struct {
	minArgs int
	maxArgs int // -1 for variadic
}

var functions = map[string]fnSpec{
	"pow":   {2, 2},
	"sqrt":  {1, 1},
	"abs":   {1, 1},
	"floor": {1, 1},
	"ceil":  {1, 1},
	"round": {1, 1},
	"min":   {1, -1},
	"max":   {1, -1},
}

var reservedWords = map[string]bool{
	"Math":  true,
	"true":  true,
	"false": true,
}

// Reserved reports whether name is a language keyword or allow-listed
// function and therefore never a variable reference.
func Reserved(name string) bool {
	if reservedWords[name] || strings.HasPrefix(name, "Math.") {
		return true
	}
	_, isFn := functions[name]
	return isFn
}
