// Package calc recomputes previously generated tokens against the current
// state of their generating algorithm and reports which stored values have
// drifted.
package calc

import (
	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/deps"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/expr"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/vars"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// State is the transient per-token result of a recalculation pass.
type State struct {
	TokenID         string `json:"tokenId"`
	IterationValue  int    `json:"iterationValue"`
	CalculatedValue any    `json:"calculatedValue,omitempty"`
	HasChanges      bool   `json:"hasChanges"`
	Error           string `json:"error,omitempty"`
}

// FormulaDependency is the inverse index from a formula to the tokens whose
// values depend on it.
type FormulaDependency struct {
	FormulaID      string   `json:"formulaId"`
	FormulaName    string   `json:"formulaName"`
	AffectedTokens []string `json:"affectedTokens"`
}

// FindTokensByAlgorithm filters tokens generated by the given algorithm.
func FindTokensByAlgorithm(algorithmID string, allTokens []tokens.Token) []tokens.Token {
	var out []tokens.Token
	for _, t := range allTokens {
		if t.GeneratedByAlgorithm && t.AlgorithmID == algorithmID {
			out = append(out, t)
		}
	}
	return out
}

// ResolveAlias follows a token value's alias chain to a literal value.
// A chain that revisits a token fails with ErrAliasCycle; a dangling target
// fails with ErrAliasBroken. Cycles are reported, never silently broken.
func ResolveAlias(tv tokens.TokenValue, modeIDs []string, allTokens []tokens.Token) (any, error) {
	byID := make(map[string]*tokens.Token, len(allTokens))
	for i := range allTokens {
		byID[allTokens[i].ID] = &allTokens[i]
	}

	visited := map[string]bool{}
	cur := tv
	for cur.IsAlias() {
		target := cur.AliasTarget()
		if visited[target] {
			return nil, errors.Wrapf(tokens.ErrAliasCycle, "token %q", target)
		}
		visited[target] = true
		tok, ok := byID[target]
		if !ok {
			return nil, errors.Wrapf(tokens.ErrAliasBroken, "token %q", target)
		}
		next, ok := valueForModes(tok, modeIDs)
		if !ok {
			return nil, errors.Wrapf(tokens.ErrAliasBroken, "token %q has no value for requested modes", target)
		}
		cur = next
	}
	return cur.Value, nil
}

// valueForModes picks the token value entry matching the given mode-id set,
// falling back to a mode-independent entry.
func valueForModes(tok *tokens.Token, modeIDs []string) (tokens.TokenValue, bool) {
	want := make(map[string]bool, len(modeIDs))
	for _, id := range modeIDs {
		want[id] = true
	}
	for _, mv := range tok.ValuesByMode {
		if len(mv.ModeIDs) == 0 {
			continue
		}
		matched := true
		for _, id := range mv.ModeIDs {
			if !want[id] {
				matched = false
				break
			}
		}
		if matched {
			return mv.Value, true
		}
	}
	for _, mv := range tok.ValuesByMode {
		if len(mv.ModeIDs) == 0 {
			return mv.Value, true
		}
	}
	return tokens.TokenValue{}, false
}

// Calculator recomputes token values for one algorithm.
type Calculator struct {
	reg *vars.Registry
}

func NewCalculator(reg *vars.Registry) *Calculator {
	return &Calculator{reg: reg}
}

// CalculateTokenValues replays the algorithm's step pipeline for every token
// it generated, using each token's recorded iteration value (inverse-mapped
// from its scale label) and mode-id sets, and compares the result to the
// stored value with exact structural equality.
func (c *Calculator) CalculateTokenValues(alg *tokens.Algorithm, existingTokens []tokens.Token) (map[string]State, error) {
	if alg.TokenGeneration == nil {
		return nil, errors.Wrap(tokens.ErrGeneration, "algorithm has no token generation config")
	}
	out := make(map[string]State)
	for _, tok := range FindTokensByAlgorithm(alg.ID, existingTokens) {
		out[tok.ID] = c.recalcToken(alg, tok, existingTokens)
	}
	return out, nil
}

func (c *Calculator) recalcToken(alg *tokens.Algorithm, tok tokens.Token, allTokens []tokens.Token) State {
	state := State{TokenID: tok.ID}

	label := tokens.ScaleLabelOf(alg.Name, tok.DisplayName)
	iteration, err := alg.TokenGeneration.LogicalMapping.Iteration(label)
	if err != nil {
		state.Error = err.Error()
		return state
	}
	state.IterationValue = iteration

	for _, mv := range tok.ValuesByMode {
		context := expr.Bindings{vars.IterationVar: expr.Num(float64(iteration))}
		deps.BindModeVariables(alg, mv.ModeIDs, context)

		trace := deps.GenerateExecutionTrace(alg, context, c.reg)
		fresh, ok := trace.FinalValue()
		if !ok {
			state.Error = firstError(trace)
			return state
		}
		state.CalculatedValue = fresh.ToAny()

		storedRaw, err := ResolveAlias(mv.Value, mv.ModeIDs, allTokens)
		if err != nil {
			state.Error = err.Error()
			return state
		}
		stored, err := expr.FromAny(storedRaw)
		if err != nil || !stored.Equal(fresh) {
			state.HasChanges = true
		}
	}
	return state
}

func firstError(trace *deps.Trace) string {
	if len(trace.Errors) > 0 {
		return trace.Errors[0]
	}
	return "algorithm produced no formula result"
}

// CalculateTokenValuesSelective restricts recomputation to tokens whose
// dependency closure includes one of changedFormulaIDs; everything else is
// reported unchanged without re-execution. Results match a full
// CalculateTokenValues run.
func (c *Calculator) CalculateTokenValuesSelective(alg *tokens.Algorithm, existingTokens []tokens.Token, changedFormulaIDs []string) (map[string]State, error) {
	affected, err := c.valueClosureTouched(alg, changedFormulaIDs)
	if err != nil {
		return nil, err
	}
	if affected {
		return c.CalculateTokenValues(alg, existingTokens)
	}

	out := make(map[string]State)
	for _, tok := range FindTokensByAlgorithm(alg.ID, existingTokens) {
		state := State{TokenID: tok.ID}
		label := tokens.ScaleLabelOf(alg.Name, tok.DisplayName)
		if iter, err := alg.TokenGeneration.LogicalMapping.Iteration(label); err == nil {
			state.IterationValue = iter
		}
		out[tok.ID] = state
	}
	return out, nil
}

// valueClosureTouched reports whether any changed formula feeds the final
// value-producing step. Every token of an algorithm shares that closure,
// since all tokens replay the same pipeline.
func (c *Calculator) valueClosureTouched(alg *tokens.Algorithm, changedFormulaIDs []string) (bool, error) {
	final := finalFormulaStep(alg)
	if final == "" {
		return false, errors.Wrap(tokens.ErrNoFormulas, alg.Name)
	}
	g, err := deps.AnalyzeFormulaDependencies(alg, c.reg)
	if err != nil {
		// Cycles or parse failures: stay conservative and recompute.
		return true, nil
	}
	closure := g.Ancestors(final)
	for _, id := range changedFormulaIDs {
		if closure[id] {
			return true, nil
		}
	}
	return false, nil
}

func finalFormulaStep(alg *tokens.Algorithm) string {
	for i := len(alg.Steps) - 1; i >= 0; i-- {
		if alg.Steps[i].Type == tokens.StepFormula {
			return alg.Steps[i].ID
		}
	}
	return ""
}

// AnalyzeFormulaDependencies builds the formula -> affected tokens index
// shown to users before they change a formula.
func (c *Calculator) AnalyzeFormulaDependencies(alg *tokens.Algorithm, allTokens []tokens.Token) ([]FormulaDependency, error) {
	owned := FindTokensByAlgorithm(alg.ID, allTokens)
	ids := make([]string, len(owned))
	for i, t := range owned {
		ids[i] = t.ID
	}

	out := make([]FormulaDependency, 0, len(alg.Formulas))
	for _, f := range alg.Formulas {
		touched, err := c.valueClosureTouched(alg, []string{f.ID})
		if err != nil {
			return nil, err
		}
		dep := FormulaDependency{FormulaID: f.ID, FormulaName: f.Name}
		if touched {
			dep.AffectedTokens = ids
		}
		out = append(out, dep)
	}
	return out, nil
}
