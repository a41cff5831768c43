// Package gen is the combinatorial driver: it expands an algorithm's
// iteration range and selected dimensional modes into the full set of
// evaluation contexts, runs the step pipeline per context, and emits new
// token records plus any newly required taxonomy terms.
package gen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/deps"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/expr"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/vars"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// DefaultMaxTokens caps a single generation batch when the caller does not
// supply a bound. Long ranges times large mode cross-products are the only
// scaling concern, so the generator fails fast instead of proceeding
// unbounded.
const DefaultMaxTokens = 10_000

// Options tunes one generation run.
type Options struct {
	// PersistTaxonomies asks the caller to write NewTaxonomies and
	// UpdatedTaxonomies back to the store. The generator itself never
	// mutates shared taxonomy state.
	PersistTaxonomies bool

	// SelectedModes picks one set of mode ids per dimension id. A dimension
	// absent here contributes all of its modes.
	SelectedModes map[string][]string

	// MaxTokens bounds the generated token count; 0 means DefaultMaxTokens.
	MaxTokens int
}

// Result is the outcome of one generation run. Errors accumulate per
// offending iteration or context; a failure never aborts the whole batch.
type Result struct {
	Tokens            []tokens.Token    `json:"tokens"`
	Errors            []string          `json:"errors,omitempty"`
	NewTaxonomies     []tokens.Taxonomy `json:"newTaxonomies,omitempty"`
	UpdatedTaxonomies []tokens.Taxonomy `json:"updatedTaxonomies,omitempty"`
}

// Generator expands algorithms into tokens.
type Generator struct {
	reg *vars.Registry
}

func NewGenerator(reg *vars.Registry) *Generator {
	return &Generator{reg: reg}
}

var idNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("design-token-algorithm"))

// deterministicID derives a stable id so that generating twice with the same
// inputs produces byte-identical tokens.
func deterministicID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "/"))).String()
}

// GenerateTokens runs the full generation pipeline for an algorithm.
// Precondition failures (bad range, missing taxonomy target, no formulas)
// fail the whole call; per-iteration failures accumulate into Result.Errors
// and generation continues.
func (g *Generator) GenerateTokens(
	alg *tokens.Algorithm,
	existingTokens []tokens.Token,
	collections []tokens.TokenCollection,
	taxonomies []tokens.Taxonomy,
	dims []tokens.Dimension,
	opts Options,
) (*Result, error) {

	tg := alg.TokenGeneration
	if tg == nil {
		return nil, errors.Wrap(tokens.ErrGeneration, "algorithm has no token generation config")
	}
	if err := checkRange(tg); err != nil {
		return nil, err
	}
	if len(alg.Variables) == 0 {
		return nil, errors.Wrap(tokens.ErrGeneration, "algorithm has no variables")
	}
	if finalFormula(alg) == "" {
		return nil, errors.Wrap(tokens.ErrNoFormulas, alg.Name)
	}
	if tg.TaxonomyID == "" && tg.NewTaxonomyName == "" {
		return nil, errors.Wrap(tokens.ErrNoTaxonomy, alg.Name)
	}

	iterations := iterationSequence(tg)
	combos := modeCombinations(alg, dims, opts.SelectedModes)

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if len(iterations) > maxTokens {
		return nil, errors.Wrapf(tokens.ErrTokenLimit,
			"%d iterations exceed the limit of %d", len(iterations), maxTokens)
	}

	// Seeded from the store, then extended with names emitted this batch so a
	// degenerate mapping (every iteration on one label) cannot mint duplicates.
	existingNames := make(map[string]bool, len(existingTokens))
	for _, t := range existingTokens {
		existingNames[t.DisplayName] = true
	}

	terms := newTermSink(tg, taxonomies)
	result := &Result{}
	prefix := tokens.Slug(alg.Name)

	klog.V(2).Infof("generating %q: %d iterations x %d mode combos",
		alg.Name, len(iterations), max(1, len(combos)))

	for _, iteration := range iterations {
		label := tg.LogicalMapping.Label(iteration)
		displayName := prefix + "-" + label

		if existingNames[displayName] {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"iteration %d: token %q already exists", iteration, displayName))
			continue
		}

		valuesByMode, ctxErrs := g.evaluateContexts(alg, iteration, combos)
		result.Errors = append(result.Errors, ctxErrs...)
		if len(valuesByMode) == 0 {
			continue
		}

		termRef, err := terms.ensure(label)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("iteration %d: %v", iteration, err))
			continue
		}

		tok := tokens.Token{
			ID:                   deterministicID(alg.ID, label),
			DisplayName:          displayName,
			ResolvedValueTypeID:  alg.ResolvedValueTypeID,
			CollectionID:         collectionFor(alg, collections),
			ValuesByMode:         valuesByMode,
			GeneratedByAlgorithm: true,
			AlgorithmID:          alg.ID,
			Taxonomies:           append(append([]tokens.TaxonomyRef{}, tg.Bulk.Taxonomies...), termRef),
			TokenTier:            tg.Bulk.TokenTier,
			Status:               tg.Bulk.Status,
			Private:              tg.Bulk.Private,
			Themeable:            tg.Bulk.Themeable,
		}
		result.Tokens = append(result.Tokens, tok)
		existingNames[displayName] = true
	}

	result.NewTaxonomies = terms.created()
	result.UpdatedTaxonomies = terms.updated()
	return result, nil
}

// evaluateContexts runs the step pipeline once per mode combination for one
// iteration value, accumulating context failures instead of aborting.
func (g *Generator) evaluateContexts(alg *tokens.Algorithm, iteration int, combos [][]string) ([]tokens.TokenModeValue, []string) {
	var out []tokens.TokenModeValue
	var errs []string

	runOne := func(modeIDs []string) {
		context := expr.Bindings{vars.IterationVar: expr.Num(float64(iteration))}
		deps.BindModeVariables(alg, modeIDs, context)

		trace := deps.GenerateExecutionTrace(alg, context, g.reg)
		value, ok := trace.FinalValue()
		if !ok || len(trace.Errors) > 0 {
			msg := "no formula result"
			if len(trace.Errors) > 0 {
				msg = trace.Errors[0]
			}
			errs = append(errs, fmt.Sprintf("iteration %d modes %v: %s", iteration, modeIDs, msg))
			return
		}
		out = append(out, tokens.TokenModeValue{
			ModeIDs: modeIDs,
			Value:   tokens.TokenValue{Value: value.ToAny()},
		})
	}

	if len(combos) == 0 {
		runOne(nil)
	} else {
		for _, combo := range combos {
			runOne(combo)
		}
	}
	return out, errs
}

func checkRange(tg *tokens.TokenGeneration) error {
	r := tg.IterationRange
	if r.Step <= 0 {
		return errors.Wrapf(tokens.ErrBadRange, "step %d must be > 0", r.Step)
	}
	if descending(tg) {
		if r.End > r.Start {
			return errors.Wrapf(tokens.ErrBadRange, "descending range ends at %d above start %d", r.End, r.Start)
		}
	} else if r.End < r.Start {
		return errors.Wrapf(tokens.ErrBadRange, "range ends at %d below start %d", r.End, r.Start)
	}
	return nil
}

func descending(tg *tokens.TokenGeneration) bool {
	return tg.IncrementDirection == "descending"
}

func iterationSequence(tg *tokens.TokenGeneration) []int {
	r := tg.IterationRange
	var out []int
	if descending(tg) {
		for i := r.Start; i >= r.End; i -= r.Step {
			out = append(out, i)
		}
	} else {
		for i := r.Start; i <= r.End; i += r.Step {
			out = append(out, i)
		}
	}
	return out
}

// modeCombinations builds the cross product of selected (or all) mode ids
// over every dimension referenced by a mode-based variable, in variable
// declaration order. No mode-based variables collapses the product to a
// single mode-independent context.
func modeCombinations(alg *tokens.Algorithm, dims []tokens.Dimension, selected map[string][]string) [][]string {
	dimByID := make(map[string]*tokens.Dimension, len(dims))
	for i := range dims {
		dimByID[dims[i].ID] = &dims[i]
	}

	var axes [][]string
	seen := map[string]bool{}
	for _, v := range alg.Variables {
		if !v.ModeBased || seen[v.DimensionID] {
			continue
		}
		seen[v.DimensionID] = true
		dim, ok := dimByID[v.DimensionID]
		if !ok {
			continue
		}

		wanted := selected[v.DimensionID]
		var axis []string
		if len(wanted) == 0 {
			for _, m := range dim.Modes {
				axis = append(axis, m.ID)
			}
		} else {
			// Follow the dimension's mode order for determinism.
			want := make(map[string]bool, len(wanted))
			for _, id := range wanted {
				want[id] = true
			}
			for _, m := range dim.Modes {
				if want[m.ID] {
					axis = append(axis, m.ID)
				}
			}
		}
		if len(axis) > 0 {
			axes = append(axes, axis)
		}
	}

	if len(axes) == 0 {
		return nil
	}
	combos := [][]string{nil}
	for _, axis := range axes {
		var next [][]string
		for _, combo := range combos {
			for _, modeID := range axis {
				grown := make([]string, len(combo), len(combo)+1)
				copy(grown, combo)
				next = append(next, append(grown, modeID))
			}
		}
		combos = next
	}
	return combos
}

func collectionFor(alg *tokens.Algorithm, collections []tokens.TokenCollection) string {
	for _, c := range collections {
		for _, vt := range c.ResolvedValueTypeIDs {
			if vt == alg.ResolvedValueTypeID {
				return c.ID
			}
		}
	}
	return ""
}

func finalFormula(alg *tokens.Algorithm) string {
	for i := len(alg.Steps) - 1; i >= 0; i-- {
		if alg.Steps[i].Type == tokens.StepFormula {
			return alg.Steps[i].ID
		}
	}
	return ""
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
