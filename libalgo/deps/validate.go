package deps

import (
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/expr"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/vars"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// ValidateFormulaDependencies checks referential integrity of every formula
// and condition: unresolvable identifiers and incomplete variableIds
// manifests are errors, system-variable use is informational, and a stored
// step order that contradicts the topological order is a warning.
// Nothing here blocks step-order execution; callers decide what to do with
// error-severity results.
func ValidateFormulaDependencies(alg *tokens.Algorithm, reg *vars.Registry) []tokens.ValidationResult {
	var out []tokens.ValidationResult

	for _, name := range reg.Collisions(alg.Variables) {
		out = append(out, tokens.Errorf("variable %q collides with a system variable", name))
	}

	manifest := func(ids []string, id string) bool {
		for _, have := range ids {
			if have == id {
				return true
			}
		}
		return false
	}

	stepNames := make(map[string]bool, len(alg.Formulas)+len(alg.Conditions))
	for _, f := range alg.Formulas {
		stepNames[f.Name] = true
	}
	for _, c := range alg.Conditions {
		stepNames[c.Name] = true
	}

	check := func(raw string, manifestIDs []string, tag func(r *tokens.ValidationResult)) {
		ast, err := expr.ParseExpression(raw)
		if err != nil {
			r := tokens.Errorf("%s", err.Error())
			tag(&r)
			out = append(out, r)
			return
		}
		for _, ident := range ast.Identifiers() {
			if stepNames[ident] {
				continue
			}
			if v := alg.VariableByRef(ident); v != nil {
				if !manifest(manifestIDs, v.ID) {
					r := tokens.Errorf("variable %q used but missing from variableIds manifest", ident)
					tag(&r)
					out = append(out, r)
				}
				continue
			}
			if _, ok := reg.Lookup(ident); ok {
				r := tokens.Infof("uses system variable %q", ident)
				tag(&r)
				out = append(out, r)
				continue
			}
			r := tokens.Errorf("undefined variable %q", ident)
			tag(&r)
			out = append(out, r)
		}
	}

	for _, f := range alg.Formulas {
		f := f
		check(f.Expressions.RawText, f.VariableIDs, func(r *tokens.ValidationResult) { r.FormulaID = f.ID })
	}
	for _, c := range alg.Conditions {
		c := c
		check(c.Expression.RawText, c.VariableIDs, func(r *tokens.ValidationResult) { r.ConditionID = c.ID })
	}

	out = append(out, stepOrderWarnings(alg, reg)...)
	return out
}

// stepOrderWarnings flags steps that read another step's output before the
// stored order has produced it. Execution still follows stored order (using
// the stale or default binding), which is a likely source of surprises.
func stepOrderWarnings(alg *tokens.Algorithm, reg *vars.Registry) []tokens.ValidationResult {
	g, err := AnalyzeFormulaDependencies(alg, reg)
	if err != nil {
		return nil
	}
	position := make(map[string]int, len(alg.Steps))
	for i, s := range alg.Steps {
		position[s.ID] = i
	}
	var out []tokens.ValidationResult
	for _, e := range g.Edges {
		src, srcOK := position[e.Source]
		dst, dstOK := position[e.Target]
		if srcOK && dstOK && src > dst {
			out = append(out, tokens.Warningf(
				"step order disagrees with dependencies: %q runs before the step defining %q",
				stepName(alg, e.Target), e.VariableName))
		}
	}
	return out
}

func stepName(alg *tokens.Algorithm, id string) string {
	if f := alg.FormulaByID(id); f != nil {
		return f.Name
	}
	if c := alg.ConditionByID(id); c != nil {
		return c.Name
	}
	return id
}
