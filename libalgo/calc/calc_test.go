package calc_test

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/calc"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/gen"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/vars"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// scaleAlgorithm doubles a base and scales by the iteration index. The
// helper formula exists so selective recalculation has a step outside the
// final value's closure once tests retarget it.
func scaleAlgorithm() *tokens.Algorithm {
	return &tokens.Algorithm{
		ID:                  "alg-scale",
		Name:                "spacing",
		ResolvedValueTypeID: "vt-dimension",
		Variables: []tokens.Variable{
			{ID: "var-base", Name: "base", Type: tokens.TypeNumber, DefaultValue: float64(0)},
		},
		Formulas: []tokens.Formula{
			{ID: "f-value", Name: "value", Expressions: tokens.Expressions{RawText: "base + n * 100"}, VariableIDs: []string{"var-base"}},
			{ID: "f-unused", Name: "unused", Expressions: tokens.Expressions{RawText: "n * 7"}},
		},
		Steps: []tokens.AlgorithmStep{
			{Type: tokens.StepFormula, ID: "f-unused", Name: "unused"},
			{Type: tokens.StepFormula, ID: "f-value", Name: "value"},
		},
		TokenGeneration: &tokens.TokenGeneration{
			IterationRange: tokens.IterationRange{Start: -2, End: 2, Step: 1},
			LogicalMapping: tokens.LogicalMapping{
				ScaleType:      tokens.ScaleNumeric,
				DefaultValue:   100,
				IncreasingStep: 100,
				DecreasingStep: 25,
			},
			NewTaxonomyName: "Scale",
		},
	}
}

func generateFixture(t *testing.T, alg *tokens.Algorithm) []tokens.Token {
	t.Helper()
	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(alg, nil, nil, nil, nil, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("fixture generation errors: %v", result.Errors)
	}
	return result.Tokens
}

func TestFindTokensByAlgorithm(t *testing.T) {
	toks := []tokens.Token{
		{ID: "t1", GeneratedByAlgorithm: true, AlgorithmID: "alg-scale"},
		{ID: "t2", GeneratedByAlgorithm: true, AlgorithmID: "other"},
		{ID: "t3"},
	}
	got := calc.FindTokensByAlgorithm("alg-scale", toks)
	if len(got) != 1 || got[0].ID != "t1" {
		t.Fatalf("got %v", got)
	}
}

func TestRecalculationClean(t *testing.T) {
	alg := scaleAlgorithm()
	toks := generateFixture(t, alg)
	if len(toks) != 5 {
		t.Fatalf("want 5 tokens, got %d", len(toks))
	}

	c := calc.NewCalculator(vars.NewRegistry())
	states, err := c.CalculateTokenValues(alg, toks)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 5 {
		t.Fatalf("want 5 states, got %d", len(states))
	}
	for id, s := range states {
		if s.Error != "" {
			t.Fatalf("%s: %s", id, s.Error)
		}
		if s.HasChanges {
			t.Fatalf("%s: unchanged algorithm must not report changes", id)
		}
	}
}

// A numeric scale that crosses zero yields labels like -100, so display
// names carry a double dash. Iteration recovery must survive that and an
// unchanged algorithm must still come back clean.
func TestRecalculationNegativeLabels(t *testing.T) {
	alg := scaleAlgorithm()
	alg.TokenGeneration.LogicalMapping = tokens.LogicalMapping{
		ScaleType:      tokens.ScaleNumeric,
		DefaultValue:   0,
		IncreasingStep: 100,
		DecreasingStep: 100,
	}
	toks := generateFixture(t, alg)
	if len(toks) != 5 {
		t.Fatalf("want 5 tokens, got %d", len(toks))
	}
	if toks[0].DisplayName != "spacing--200" {
		t.Fatalf("fixture name = %q", toks[0].DisplayName)
	}

	wantIter := map[string]int{}
	for i, tok := range toks {
		wantIter[tok.ID] = i - 2
	}

	c := calc.NewCalculator(vars.NewRegistry())
	states, err := c.CalculateTokenValues(alg, toks)
	if err != nil {
		t.Fatal(err)
	}
	for id, s := range states {
		if s.Error != "" {
			t.Fatalf("%s: %s", id, s.Error)
		}
		if s.IterationValue != wantIter[id] {
			t.Fatalf("%s: iteration recovered as %d, want %d", id, s.IterationValue, wantIter[id])
		}
		if s.HasChanges {
			t.Fatalf("%s: unchanged algorithm must not report changes", id)
		}
	}
}

func TestRecalculationDetectsDrift(t *testing.T) {
	alg := scaleAlgorithm()
	toks := generateFixture(t, alg)

	// The formula changed after these tokens were generated.
	alg.Formulas[0].Expressions.RawText = "base + n * 100 + 1"

	c := calc.NewCalculator(vars.NewRegistry())
	states, err := c.CalculateTokenValues(alg, toks)
	if err != nil {
		t.Fatal(err)
	}
	for id, s := range states {
		if !s.HasChanges {
			t.Fatalf("%s: drifted formula must report changes", id)
		}
	}
}

// Selective recalculation must agree with the full pass.
func TestSelectiveEquivalence(t *testing.T) {
	alg := scaleAlgorithm()
	toks := generateFixture(t, alg)
	alg.Formulas[0].Expressions.RawText = "base + n * 100 + 1"

	c := calc.NewCalculator(vars.NewRegistry())
	full, err := c.CalculateTokenValues(alg, toks)
	if err != nil {
		t.Fatal(err)
	}

	for _, changed := range [][]string{
		{"f-value"},
		{"f-unused"},
		{"f-unused", "f-value"},
		nil,
	} {
		sel, err := c.CalculateTokenValuesSelective(alg, toks, changed)
		if err != nil {
			t.Fatal(err)
		}
		touchesValue := false
		for _, id := range changed {
			if id == "f-value" {
				touchesValue = true
			}
		}
		for id, fullState := range full {
			selState, ok := sel[id]
			if !ok {
				t.Fatalf("selective pass dropped token %s", id)
			}
			want := fullState.HasChanges && touchesValue
			if selState.HasChanges != want {
				t.Fatalf("changed=%v token=%s: selective=%v full=%v", changed, id, selState.HasChanges, fullState.HasChanges)
			}
		}
	}
}

func TestSelectiveSkipsUntouchedClosure(t *testing.T) {
	alg := scaleAlgorithm()
	toks := generateFixture(t, alg)

	c := calc.NewCalculator(vars.NewRegistry())
	states, err := c.CalculateTokenValuesSelective(alg, toks, []string{"f-unused"})
	if err != nil {
		t.Fatal(err)
	}
	for id, s := range states {
		if s.HasChanges {
			t.Fatalf("%s: formula outside the value closure must not trigger changes", id)
		}
	}
}

func TestAnalyzeFormulaDependencies(t *testing.T) {
	alg := scaleAlgorithm()
	toks := generateFixture(t, alg)

	c := calc.NewCalculator(vars.NewRegistry())
	index, err := c.AnalyzeFormulaDependencies(alg, toks)
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]int{}
	for _, dep := range index {
		byID[dep.FormulaID] = len(dep.AffectedTokens)
	}
	if byID["f-value"] != len(toks) {
		t.Fatalf("f-value should affect all %d tokens, got %d", len(toks), byID["f-value"])
	}
	if byID["f-unused"] != 0 {
		t.Fatalf("f-unused should affect no tokens, got %d", byID["f-unused"])
	}
}

func TestResolveAliasChain(t *testing.T) {
	all := []tokens.Token{
		{ID: "t-literal", ValuesByMode: []tokens.TokenModeValue{
			{Value: tokens.TokenValue{Value: float64(16)}},
		}},
		{ID: "t-mid", ValuesByMode: []tokens.TokenModeValue{
			{Value: tokens.TokenValue{Type: tokens.AliasType, ID: "t-literal"}},
		}},
	}

	v, err := calc.ResolveAlias(tokens.TokenValue{Type: tokens.AliasType, ID: "t-mid"}, nil, all)
	if err != nil {
		t.Fatal(err)
	}
	if v != float64(16) {
		t.Fatalf("got %v", v)
	}
}

func TestResolveAliasCycle(t *testing.T) {
	all := []tokens.Token{
		{ID: "t-a", ValuesByMode: []tokens.TokenModeValue{
			{Value: tokens.TokenValue{Type: tokens.AliasType, ID: "t-b"}},
		}},
		{ID: "t-b", ValuesByMode: []tokens.TokenModeValue{
			{Value: tokens.TokenValue{Type: tokens.AliasType, ID: "t-a"}},
		}},
	}
	_, err := calc.ResolveAlias(tokens.TokenValue{Type: tokens.AliasType, ID: "t-a"}, nil, all)
	if !errors.Is(err, tokens.ErrAliasCycle) {
		t.Fatalf("want ErrAliasCycle, got %v", err)
	}

	_, err = calc.ResolveAlias(tokens.TokenValue{Type: tokens.AliasType, ID: "t-gone"}, nil, all)
	if !errors.Is(err, tokens.ErrAliasBroken) {
		t.Fatalf("want ErrAliasBroken, got %v", err)
	}
}
