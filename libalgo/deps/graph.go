// Package deps statically analyzes an algorithm's formulas and conditions:
// dependency graph construction, topological ordering, referential
// validation, and step-pipeline execution traces.
package deps

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/expr"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/vars"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// GraphNode is one formula or condition in the dependency graph.
type GraphNode struct {
	ID     string          `json:"id"`
	Type   tokens.StepType `json:"type"`
	Name   string          `json:"name"`
	Inputs []string        `json:"inputs,omitempty"`
}

// GraphEdge records that Target's expression references a variable defined
// by Source (a formula/condition output binding).
type GraphEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	VariableName string `json:"variableName"`
}

// VariableUse is the inverse index from a leaf variable to its referencing steps.
type VariableUse struct {
	Formulas         []string `json:"formulas,omitempty"`
	Conditions       []string `json:"conditions,omitempty"`
	IsSystemVariable bool     `json:"isSystemVariable,omitempty"`
}

// Graph is the derived, ephemeral dependency graph of an algorithm.
// ExecutionOrder is a valid topological order; it is advisory only, the
// step pipeline always executes in stored step order.
type Graph struct {
	Nodes          []GraphNode            `json:"nodes"`
	Edges          []GraphEdge            `json:"edges"`
	ExecutionOrder []string               `json:"executionOrder"`
	VariableUsage  map[string]VariableUse `json:"variableUsage"`
}

type analyzedStep struct {
	id       string
	name     string
	stepType tokens.StepType
	idents   []string
	order    int // position in alg.Steps, len(steps)+i for unreferenced definitions
}

func collectSteps(alg *tokens.Algorithm) ([]*analyzedStep, error) {
	stepOrder := make(map[string]int, len(alg.Steps))
	for i, s := range alg.Steps {
		stepOrder[s.ID] = i
	}
	next := len(alg.Steps)
	order := func(id string) int {
		if i, ok := stepOrder[id]; ok {
			return i
		}
		next++
		return next - 1
	}

	var out []*analyzedStep
	add := func(id, name, raw string, stepType tokens.StepType) error {
		ast, err := expr.ParseExpression(raw)
		if err != nil {
			return errors.Wrapf(err, "%s %q", stepType, name)
		}
		out = append(out, &analyzedStep{
			id:       id,
			name:     name,
			stepType: stepType,
			idents:   ast.Identifiers(),
			order:    order(id),
		})
		return nil
	}

	for _, f := range alg.Formulas {
		if err := add(f.ID, f.Name, f.Expressions.RawText, tokens.StepFormula); err != nil {
			return nil, err
		}
	}
	for _, c := range alg.Conditions {
		if err := add(c.ID, c.Name, c.Expression.RawText, tokens.StepCondition); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AnalyzeFormulaDependencies builds the dependency graph of an algorithm and
// computes a topological execution order via Kahn's algorithm, ties broken by
// stored step order so the result is stable and reproducible. A cycle among
// formulas/conditions fails with a wrapped ErrCycle naming one concrete
// cycle path.
func AnalyzeFormulaDependencies(alg *tokens.Algorithm, reg *vars.Registry) (*Graph, error) {
	steps, err := collectSteps(alg)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*analyzedStep, len(steps))
	for _, s := range steps {
		byName[s.name] = s
	}

	g := &Graph{VariableUsage: make(map[string]VariableUse)}

	for _, s := range steps {
		g.Nodes = append(g.Nodes, GraphNode{
			ID:     s.id,
			Type:   s.stepType,
			Name:   s.name,
			Inputs: s.idents,
		})
		for _, ident := range s.idents {
			if def, ok := byName[ident]; ok {
				g.Edges = append(g.Edges, GraphEdge{
					Source:       def.id,
					Target:       s.id,
					VariableName: ident,
				})
				continue
			}

			use := g.VariableUsage[ident]
			if _, isSys := reg.Lookup(ident); isSys && alg.VariableByRef(ident) == nil {
				use.IsSystemVariable = true
			}
			switch s.stepType {
			case tokens.StepFormula:
				use.Formulas = appendUnique(use.Formulas, s.id)
			case tokens.StepCondition:
				use.Conditions = appendUnique(use.Conditions, s.id)
			}
			g.VariableUsage[ident] = use
		}
	}

	order, err := topoSort(steps, g.Edges)
	if err != nil {
		return nil, err
	}
	g.ExecutionOrder = order
	return g, nil
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}

func topoSort(steps []*analyzedStep, edges []GraphEdge) ([]string, error) {
	inDegree := make(map[string]int, len(steps))
	successors := make(map[string][]string, len(steps))
	orderOf := make(map[string]int, len(steps))
	nameOf := make(map[string]string, len(steps))
	for _, s := range steps {
		inDegree[s.id] = 0
		orderOf[s.id] = s.order
		nameOf[s.id] = s.name
	}
	for _, e := range edges {
		if e.Source == e.Target {
			return nil, cycleError([]string{e.Source, e.Target}, nameOf)
		}
		successors[e.Source] = append(successors[e.Source], e.Target)
		inDegree[e.Target]++
	}

	var out []string
	remaining := make(map[string]bool, len(steps))
	for _, s := range steps {
		remaining[s.id] = true
	}

	for len(out) < len(steps) {
		// Pick the ready node earliest in stored step order.
		pick := ""
		for id := range remaining {
			if inDegree[id] != 0 {
				continue
			}
			if pick == "" || orderOf[id] < orderOf[pick] {
				pick = id
			}
		}
		if pick == "" {
			return nil, cycleError(findCycle(remaining, successors), nameOf)
		}
		delete(remaining, pick)
		out = append(out, pick)
		for _, succ := range successors[pick] {
			inDegree[succ]--
		}
	}
	return out, nil
}

// findCycle walks predecessor edges among the remaining nodes until a node
// repeats, returning the closed path for diagnostics. A stalled node always
// keeps a remaining predecessor (its in-degree is nonzero), so the backward
// walk must close a cycle; a forward walk could dead-end on a node that is
// merely downstream of one.
func findCycle(remaining map[string]bool, successors map[string][]string) []string {
	predecessors := make(map[string][]string, len(remaining))
	for src, succs := range successors {
		if !remaining[src] {
			continue
		}
		for _, succ := range succs {
			if remaining[succ] {
				predecessors[succ] = append(predecessors[succ], src)
			}
		}
	}

	var start string
	for id := range remaining {
		start = id
		break
	}
	seenAt := map[string]int{}
	var back []string
	cur := start
	for {
		if at, seen := seenAt[cur]; seen {
			// back[at:] lists the cycle against edge direction; reverse it and
			// close the loop.
			cycle := append([]string{}, back[at:]...)
			for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
				cycle[i], cycle[j] = cycle[j], cycle[i]
			}
			return append(cycle, cycle[0])
		}
		seenAt[cur] = len(back)
		back = append(back, cur)
		preds := predecessors[cur]
		if len(preds) == 0 {
			// Only reachable if the edge set is inconsistent.
			return back
		}
		cur = preds[0]
	}
}

func cycleError(path []string, nameOf map[string]string) error {
	names := make([]string, len(path))
	for i, id := range path {
		if name, ok := nameOf[id]; ok {
			names[i] = name
		} else {
			names[i] = id
		}
	}
	return errors.Wrapf(tokens.ErrCycle, "%s", strings.Join(names, " -> "))
}

// Descendants returns ids reachable from any of the given step ids,
// including the ids themselves.
func (g *Graph) Descendants(ids []string) map[string]bool {
	successors := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		successors[e.Source] = append(successors[e.Source], e.Target)
	}
	out := make(map[string]bool)
	var visit func(string)
	visit = func(id string) {
		if out[id] {
			return
		}
		out[id] = true
		for _, succ := range successors[id] {
			visit(succ)
		}
	}
	for _, id := range ids {
		visit(id)
	}
	return out
}

// Ancestors returns ids that can reach the given step id, including itself.
func (g *Graph) Ancestors(id string) map[string]bool {
	predecessors := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		predecessors[e.Target] = append(predecessors[e.Target], e.Source)
	}
	out := make(map[string]bool)
	var visit func(string)
	visit = func(cur string) {
		if out[cur] {
			return
		}
		out[cur] = true
		for _, pred := range predecessors[cur] {
			visit(pred)
		}
	}
	visit(id)
	return out
}
