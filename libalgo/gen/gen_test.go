package gen_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/gen"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/vars"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

func spacingAlgorithm() *tokens.Algorithm {
	return &tokens.Algorithm{
		ID:                  "alg-spacing",
		Name:                "spacing",
		ResolvedValueTypeID: "vt-dimension",
		Variables: []tokens.Variable{
			{ID: "var-base", Name: "base", Type: tokens.TypeNumber, DefaultValue: float64(0)},
		},
		Formulas: []tokens.Formula{
			{ID: "f-value", Name: "value", Expressions: tokens.Expressions{RawText: "base + n * 100"}, VariableIDs: []string{"var-base"}},
		},
		Steps: []tokens.AlgorithmStep{
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
			NewTaxonomyName: "Spacing Scale",
		},
	}
}

// Iterating -2..2 over base + n * 100 yields the five expected values.
func TestNumericScaleGeneration(t *testing.T) {
	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(spacingAlgorithm(), nil, nil, nil, nil, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
	if len(result.Tokens) != 5 {
		t.Fatalf("want 5 tokens, got %d", len(result.Tokens))
	}

	wantValues := []float64{-200, -100, 0, 100, 200}
	wantNames := []string{"spacing-50", "spacing-75", "spacing-100", "spacing-200", "spacing-300"}
	for i, tok := range result.Tokens {
		if tok.DisplayName != wantNames[i] {
			t.Fatalf("token %d name = %q, want %q", i, tok.DisplayName, wantNames[i])
		}
		if len(tok.ValuesByMode) != 1 {
			t.Fatalf("token %d has %d mode values", i, len(tok.ValuesByMode))
		}
		if got := tok.ValuesByMode[0].Value.Value; got != wantValues[i] {
			t.Fatalf("token %d value = %v, want %v", i, got, wantValues[i])
		}
		if !tok.GeneratedByAlgorithm || tok.AlgorithmID != "alg-spacing" {
			t.Fatalf("token %d missing provenance", i)
		}
	}

	if len(result.NewTaxonomies) != 1 {
		t.Fatalf("want 1 new taxonomy, got %v", result.NewTaxonomies)
	}
	if terms := result.NewTaxonomies[0].Terms; len(terms) != 5 || terms[0].Name != "50" {
		t.Fatalf("unexpected terms %v", terms)
	}
}

// One mode-based variable over a two-mode dimension yields a single token
// with one value per mode.
func TestModeBasedGeneration(t *testing.T) {
	dims := []tokens.Dimension{
		{ID: "dim-scheme", Name: "Color Scheme", Modes: []tokens.Mode{
			{ID: "mode-light", Name: "Light"},
			{ID: "mode-dark", Name: "Dark"},
		}},
	}
	alg := &tokens.Algorithm{
		ID:                  "alg-tint",
		Name:                "tint",
		ResolvedValueTypeID: "vt-color",
		Variables: []tokens.Variable{
			{
				ID: "var-tint", Name: "tint", Type: tokens.TypeNumber, ModeBased: true,
				DimensionID: "dim-scheme",
				ValuesByMode: []tokens.ModeValue{
					{ModeIDs: []string{"mode-light"}, Value: float64(10)},
					{ModeIDs: []string{"mode-dark"}, Value: float64(90)},
				},
			},
		},
		Formulas: []tokens.Formula{
			{ID: "f-tint", Name: "out", Expressions: tokens.Expressions{RawText: "tint"}, VariableIDs: []string{"var-tint"}},
		},
		Steps: []tokens.AlgorithmStep{{Type: tokens.StepFormula, ID: "f-tint", Name: "out"}},
		TokenGeneration: &tokens.TokenGeneration{
			IterationRange:  tokens.IterationRange{Start: 0, End: 0, Step: 1},
			LogicalMapping:  tokens.LogicalMapping{ScaleType: tokens.ScaleNumeric, DefaultValue: 100},
			NewTaxonomyName: "Tint Scale",
		},
	}

	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(alg, nil, nil, nil, dims, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors %v", result.Errors)
	}
	if len(result.Tokens) != 1 {
		t.Fatalf("want 1 token, got %d", len(result.Tokens))
	}

	mvs := result.Tokens[0].ValuesByMode
	if len(mvs) != 2 {
		t.Fatalf("want 2 mode values, got %v", mvs)
	}
	if mvs[0].ModeIDs[0] != "mode-light" || mvs[0].Value.Value != float64(10) {
		t.Fatalf("light entry wrong: %v", mvs[0])
	}
	if mvs[1].ModeIDs[0] != "mode-dark" || mvs[1].Value.Value != float64(90) {
		t.Fatalf("dark entry wrong: %v", mvs[1])
	}
}

// Identical inputs produce byte-identical output.
func TestGenerationDeterminism(t *testing.T) {
	g := gen.NewGenerator(vars.NewRegistry())

	encode := func() []byte {
		result, err := g.GenerateTokens(spacingAlgorithm(), nil, nil, nil, nil, gen.Options{})
		if err != nil {
			t.Fatal(err)
		}
		buf, err := json.Marshal(result)
		if err != nil {
			t.Fatal(err)
		}
		return buf
	}

	if !bytes.Equal(encode(), encode()) {
		t.Fatal("generation is not deterministic")
	}
}

func TestCollisionAccumulates(t *testing.T) {
	existing := []tokens.Token{{ID: "other", DisplayName: "spacing-100"}}

	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(spacingAlgorithm(), existing, nil, nil, nil, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tokens) != 4 {
		t.Fatalf("want 4 tokens after one collision, got %d", len(result.Tokens))
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "spacing-100") {
		t.Fatalf("collision should be an error entry: %v", result.Errors)
	}
}

// A degenerate logical mapping (both steps zero) lands every iteration on
// the same label; repeats within the batch must surface as error entries,
// never as duplicate tokens.
func TestDegenerateMappingAccumulates(t *testing.T) {
	alg := spacingAlgorithm()
	alg.TokenGeneration.IterationRange = tokens.IterationRange{Start: 0, End: 2, Step: 1}
	alg.TokenGeneration.LogicalMapping = tokens.LogicalMapping{
		ScaleType:    tokens.ScaleNumeric,
		DefaultValue: 100,
	}

	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(alg, nil, nil, nil, nil, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tokens) != 1 {
		t.Fatalf("want 1 token, got %d", len(result.Tokens))
	}
	if result.Tokens[0].DisplayName != "spacing-100" {
		t.Fatalf("name = %q", result.Tokens[0].DisplayName)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("want 2 duplicate errors, got %v", result.Errors)
	}
	for _, msg := range result.Errors {
		if !strings.Contains(msg, "spacing-100") {
			t.Fatalf("duplicate error should name the token: %q", msg)
		}
	}
}

func TestEvaluationErrorsSkipContext(t *testing.T) {
	alg := spacingAlgorithm()
	alg.Formulas[0].Expressions.RawText = "base + 100 / n" // n=0 at iteration 0

	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(alg, nil, nil, nil, nil, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tokens) != 4 {
		t.Fatalf("want 4 tokens, got %d", len(result.Tokens))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("division by zero at iteration 0 should be one error: %v", result.Errors)
	}
}

func TestBadRange(t *testing.T) {
	alg := spacingAlgorithm()
	alg.TokenGeneration.IterationRange.Step = 0

	g := gen.NewGenerator(vars.NewRegistry())
	if _, err := g.GenerateTokens(alg, nil, nil, nil, nil, gen.Options{}); !errors.Is(err, tokens.ErrBadRange) {
		t.Fatalf("want ErrBadRange, got %v", err)
	}
}

func TestTokenLimit(t *testing.T) {
	alg := spacingAlgorithm()
	alg.TokenGeneration.IterationRange = tokens.IterationRange{Start: 0, End: 99, Step: 1}

	g := gen.NewGenerator(vars.NewRegistry())
	if _, err := g.GenerateTokens(alg, nil, nil, nil, nil, gen.Options{MaxTokens: 10}); !errors.Is(err, tokens.ErrTokenLimit) {
		t.Fatalf("want ErrTokenLimit, got %v", err)
	}
}

func TestMissingTaxonomyTarget(t *testing.T) {
	alg := spacingAlgorithm()
	alg.TokenGeneration.NewTaxonomyName = ""

	g := gen.NewGenerator(vars.NewRegistry())
	if _, err := g.GenerateTokens(alg, nil, nil, nil, nil, gen.Options{}); !errors.Is(err, tokens.ErrNoTaxonomy) {
		t.Fatalf("want ErrNoTaxonomy, got %v", err)
	}
}

func TestExistingTaxonomyGainsTerms(t *testing.T) {
	alg := spacingAlgorithm()
	alg.TokenGeneration.NewTaxonomyName = ""
	alg.TokenGeneration.TaxonomyID = "tax-scale"
	taxonomies := []tokens.Taxonomy{
		{ID: "tax-scale", Name: "Scale", Terms: []tokens.TaxonomyTerm{{ID: "term-100", Name: "100"}}},
	}

	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(alg, nil, nil, taxonomies, nil, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.NewTaxonomies) != 0 {
		t.Fatalf("existing taxonomy must not come back as new: %v", result.NewTaxonomies)
	}
	if len(result.UpdatedTaxonomies) != 1 || len(result.UpdatedTaxonomies[0].Terms) != 5 {
		t.Fatalf("want 5 terms after update, got %v", result.UpdatedTaxonomies)
	}
	// The caller's slice is untouched.
	if len(taxonomies[0].Terms) != 1 {
		t.Fatal("input taxonomy slice was mutated")
	}
}

func TestDescendingRange(t *testing.T) {
	alg := spacingAlgorithm()
	alg.TokenGeneration.IterationRange = tokens.IterationRange{Start: 2, End: 0, Step: 1}
	alg.TokenGeneration.IncrementDirection = "descending"

	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(alg, nil, nil, nil, nil, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tokens) != 3 {
		t.Fatalf("want 3 tokens, got %d", len(result.Tokens))
	}
	if result.Tokens[0].DisplayName != "spacing-300" || result.Tokens[2].DisplayName != "spacing-100" {
		t.Fatalf("unexpected order: %s .. %s", result.Tokens[0].DisplayName, result.Tokens[2].DisplayName)
	}
}

func TestTShirtScale(t *testing.T) {
	alg := spacingAlgorithm()
	alg.Name = "sizing"
	alg.TokenGeneration.IterationRange = tokens.IterationRange{Start: 0, End: 7, Step: 1}
	alg.TokenGeneration.LogicalMapping = tokens.LogicalMapping{ScaleType: tokens.ScaleTShirt}

	g := gen.NewGenerator(vars.NewRegistry())
	result, err := g.GenerateTokens(alg, nil, nil, nil, nil, gen.Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"sizing-XS", "sizing-S", "sizing-M", "sizing-L", "sizing-XL", "sizing-XXL", "sizing-3XL", "sizing-4XL"}
	if len(result.Tokens) != len(want) {
		t.Fatalf("want %d tokens, got %d", len(want), len(result.Tokens))
	}
	for i, tok := range result.Tokens {
		if tok.DisplayName != want[i] {
			t.Fatalf("token %d = %q, want %q", i, tok.DisplayName, want[i])
		}
	}
}
