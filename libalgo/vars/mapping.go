// Package vars provides variable name <-> id translation and the system
// variable registry. Stored formulas always use ids; the editing surface
// always uses names, which makes stored formulas safe against renames.
package vars

import (
	"regexp"
	"strings"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/expr"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// Catalog is a bidirectional name <-> id index over a variable set.
type Catalog struct {
	byName map[string]string
	byID   map[string]string
}

func NewCatalog(variables []tokens.Variable) *Catalog {
	c := &Catalog{
		byName: make(map[string]string, len(variables)),
		byID:   make(map[string]string, len(variables)),
	}
	for _, v := range variables {
		c.byName[v.Name] = v.ID
		c.byID[v.ID] = v.Name
	}
	return c
}

var wordRx = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// substituteWords rewrites every whole-word identifier present in subst.
// Matching is whole-token only, so a variable that is a prefix of another
// (size vs sizeExtra) is never corrupted. Words preceded by a backslash are
// LaTeX commands and pass through, as do unmatched identifiers (system
// variables, reserved words).
func substituteWords(text string, subst map[string]string) string {
	if len(subst) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range wordRx.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		word := text[start:end]
		replacement, ok := subst[word]
		if !ok || expr.Reserved(word) || (start > 0 && text[start-1] == '\\') {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(replacement)
		last = end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// ConvertFormulaToIDs rewrites variable names in raw expression text to ids.
func (c *Catalog) ConvertFormulaToIDs(text string) string {
	return substituteWords(text, c.byName)
}

// ConvertFormulaToNames rewrites variable ids in raw expression text to names.
func (c *Catalog) ConvertFormulaToNames(text string) string {
	return substituteWords(text, c.byID)
}

// ConvertLatexToIDs rewrites variable names to ids in a LaTeX string.
func (c *Catalog) ConvertLatexToIDs(latex string) string {
	return substituteWords(latex, c.byName)
}

// ConvertLatexToNames rewrites variable ids to names in a LaTeX string.
func (c *Catalog) ConvertLatexToNames(latex string) string {
	return substituteWords(latex, c.byID)
}

// ConvertASTToIDs rewrites identifier nodes name -> id, returning a new AST.
func (c *Catalog) ConvertASTToIDs(n *expr.Node) *expr.Node {
	return substituteAST(n, c.byName)
}

// ConvertASTToNames rewrites identifier nodes id -> name, returning a new AST.
func (c *Catalog) ConvertASTToNames(n *expr.Node) *expr.Node {
	return substituteAST(n, c.byID)
}

func substituteAST(n *expr.Node, subst map[string]string) *expr.Node {
	if n == nil {
		return nil
	}
	cp := n.Clone()
	cp.Walk(func(node *expr.Node) bool {
		if node.Kind == expr.KindIdent {
			if repl, ok := subst[node.Name]; ok {
				node.Name = repl
			}
		}
		return true
	})
	return cp
}
