package expr

import "encoding/json"

// NodeKind discriminates AST node variants.
type NodeKind string

const (
	KindNumber NodeKind = "number"
	KindString NodeKind = "string"
	KindBool   NodeKind = "bool"
	KindIdent  NodeKind = "ident"
	KindBinary NodeKind = "binary"
	KindUnary  NodeKind = "unary"
	KindCall   NodeKind = "call"
	KindArray  NodeKind = "array"
	KindRange  NodeKind = "range"
)

// Node is one node of a parsed expression.
//
// Name holds the identifier, operator, or callee depending on Kind.
// Binary and Range nodes have exactly two Args; Unary has one.
type Node struct {
	Kind NodeKind `json:"kind"`
	Num  float64  `json:"num,omitempty"`
	Str  string   `json:"str,omitempty"`
	Bool bool     `json:"bool,omitempty"`
	Name string   `json:"name,omitempty"`
	Args []*Node  `json:"args,omitempty"`
}

func NumberNode(v float64) *Node  { return &Node{Kind: KindNumber, Num: v} }
func StringNode(s string) *Node   { return &Node{Kind: KindString, Str: s} }
func BoolNode(b bool) *Node       { return &Node{Kind: KindBool, Bool: b} }
func IdentNode(name string) *Node { return &Node{Kind: KindIdent, Name: name} }

func BinaryNode(op string, lhs, rhs *Node) *Node {
	return &Node{Kind: KindBinary, Name: op, Args: []*Node{lhs, rhs}}
}

func UnaryNode(op string, arg *Node) *Node {
	return &Node{Kind: KindUnary, Name: op, Args: []*Node{arg}}
}

func CallNode(name string, args ...*Node) *Node {
	return &Node{Kind: KindCall, Name: name, Args: args}
}

// Equal reports structural equality of two ASTs.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Kind != other.Kind || n.Num != other.Num || n.Str != other.Str ||
		n.Bool != other.Bool || n.Name != other.Name || len(n.Args) != len(other.Args) {
		return false
	}
	for i, arg := range n.Args {
		if !arg.Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the AST.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Args != nil {
		cp.Args = make([]*Node, len(n.Args))
		for i, arg := range n.Args {
			cp.Args[i] = arg.Clone()
		}
	}
	return &cp
}

// Walk visits n and every descendant in depth-first pre-order.
// Walking stops early if visit returns false.
func (n *Node) Walk(visit func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for _, arg := range n.Args {
		if !arg.Walk(visit) {
			return false
		}
	}
	return true
}

// Identifiers returns every distinct identifier referenced by the AST,
// in first-appearance order, excluding reserved words.
func (n *Node) Identifiers() []string {
	var out []string
	seen := make(map[string]bool)
	n.Walk(func(node *Node) bool {
		if node.Kind == KindIdent && !Reserved(node.Name) && !seen[node.Name] {
			seen[node.Name] = true
			out = append(out, node.Name)
		}
		return true
	})
	return out
}

// MarshalAST encodes an AST for storage inside a formula's expressions field.
func MarshalAST(n *Node) (json.RawMessage, error) {
	return json.Marshal(n)
}

// UnmarshalAST decodes a stored AST.
func UnmarshalAST(data json.RawMessage) (*Node, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
