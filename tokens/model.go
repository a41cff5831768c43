package tokens

import (
	"encoding/json"
	"regexp"

	"github.com/pkg/errors"
)

// VariableType is the declared value type of a Variable.
type VariableType string

const (
	TypeNumber  VariableType = "number"
	TypeString  VariableType = "string"
	TypeBoolean VariableType = "boolean"
)

// ModeValue is one value of a mode-based variable, keyed by the mode ids it applies to.
type ModeValue struct {
	ModeIDs []string `json:"modeIds"`
	Value   any      `json:"value"`
}

// Variable is a named input to an algorithm's formulas.
// A mode-based variable takes its value from the active mode of DimensionID.
type Variable struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Type         VariableType `json:"type"`
	DefaultValue any          `json:"defaultValue,omitempty"`
	ModeBased    bool         `json:"modeBased,omitempty"`
	DimensionID  string       `json:"dimensionId,omitempty"`
	ValuesByMode []ModeValue  `json:"valuesByMode,omitempty"`
}

// Expressions carries both authored forms of a formula body.
// AST is the stored parse of RawText; RawText is authoritative.
type Expressions struct {
	RawText string          `json:"rawText"`
	Latex   string          `json:"latex,omitempty"`
	AST     json.RawMessage `json:"ast,omitempty"`
}

// Formula computes a value and binds it to the formula's name for later steps.
// VariableIDs is the authoritative dependency manifest, independent of AST re-parsing.
type Formula struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Expressions Expressions `json:"expressions"`
	VariableIDs []string    `json:"variableIds"`
}

// Condition is a boolean-valued step, subject to the same manifest invariant as Formula.
type Condition struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Expression  Expressions `json:"expression"`
	VariableIDs []string    `json:"variableIds"`
}

type StepType string

const (
	StepFormula   StepType = "formula"
	StepCondition StepType = "condition"
)

// AlgorithmStep is an ordered reference into an algorithm's formulas/conditions.
// Steps execute strictly in array order; dependency order is advisory only.
type AlgorithmStep struct {
	Type StepType `json:"type"`
	ID   string   `json:"id"`
	Name string   `json:"name"`
}

// IterationRange enumerates start, start±step, ... bounded by end (inclusive).
// Step must be > 0; direction comes from TokenGeneration.IncrementDirection.
type IterationRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Step  int `json:"step"`
}

type ScaleType string

const (
	ScaleNumeric ScaleType = "numeric"
	ScaleTShirt  ScaleType = "tshirt"
)

// LogicalMapping converts an integer iteration value into a human scale label
// used to name and classify generated tokens.
type LogicalMapping struct {
	ScaleType      ScaleType `json:"scaleType"`
	DefaultValue   int       `json:"defaultValue,omitempty"`
	IncreasingStep int       `json:"increasingStep,omitempty"`
	DecreasingStep int       `json:"decreasingStep,omitempty"`
	ExtraPrefix    string    `json:"extraPrefix,omitempty"`
}

// TaxonomyRef tags a token with a term of a taxonomy.
type TaxonomyRef struct {
	TaxonomyID string `json:"taxonomyId"`
	TermID     string `json:"termId,omitempty"`
}

// BulkAssignments is metadata stamped onto every generated token.
type BulkAssignments struct {
	TokenTier  string        `json:"tokenTier,omitempty"`
	Private    bool          `json:"private,omitempty"`
	Status     string        `json:"status,omitempty"`
	Themeable  bool          `json:"themeable,omitempty"`
	Taxonomies []TaxonomyRef `json:"taxonomies,omitempty"`
}

// TokenGeneration configures how an algorithm expands into tokens.
// Exactly one of TaxonomyID / NewTaxonomyName selects the scale-term taxonomy.
type TokenGeneration struct {
	IterationRange     IterationRange  `json:"iterationRange"`
	IncrementDirection string          `json:"incrementDirection,omitempty"` // "ascending" (default) or "descending"
	LogicalMapping     LogicalMapping  `json:"logicalMapping"`
	Bulk               BulkAssignments `json:"bulk,omitempty"`
	TaxonomyID         string          `json:"taxonomyId,omitempty"`
	NewTaxonomyName    string          `json:"newTaxonomyName,omitempty"`
}

// Algorithm is the aggregate root: a user-defined pipeline of variables,
// formulas, conditions and ordered steps that procedurally computes token values.
type Algorithm struct {
	ID                  string           `json:"id"`
	Name                string           `json:"name"`
	ResolvedValueTypeID string           `json:"resolvedValueTypeId"`
	Variables           []Variable       `json:"variables"`
	Formulas            []Formula        `json:"formulas"`
	Conditions          []Condition      `json:"conditions,omitempty"`
	Steps               []AlgorithmStep  `json:"steps"`
	TokenGeneration     *TokenGeneration `json:"tokenGeneration,omitempty"`
}

// TokenValue is either a literal value or an alias reference to another token.
type TokenValue struct {
	Type    string `json:"type,omitempty"` // "VARIABLE_ALIAS" when an alias
	ID      string `json:"id,omitempty"`
	TokenID string `json:"tokenId,omitempty"`
	Value   any    `json:"value,omitempty"`
}

const AliasType = "VARIABLE_ALIAS"

func (tv *TokenValue) IsAlias() bool {
	return tv.Type == AliasType || tv.TokenID != ""
}

// AliasTarget returns the id of the token an alias points at.
func (tv *TokenValue) AliasTarget() string {
	if tv.TokenID != "" {
		return tv.TokenID
	}
	return tv.ID
}

// TokenModeValue is one value of a token, keyed by mode-id combination.
type TokenModeValue struct {
	ModeIDs []string   `json:"modeIds"`
	Value   TokenValue `json:"value"`
}

// Token is a named design value with one or more values keyed by dimensional mode.
type Token struct {
	ID                   string           `json:"id"`
	DisplayName          string           `json:"displayName"`
	ResolvedValueTypeID  string           `json:"resolvedValueTypeId"`
	CollectionID         string           `json:"collectionId,omitempty"`
	ValuesByMode         []TokenModeValue `json:"valuesByMode"`
	GeneratedByAlgorithm bool             `json:"generatedByAlgorithm,omitempty"`
	AlgorithmID          string           `json:"algorithmId,omitempty"`
	Taxonomies           []TaxonomyRef    `json:"taxonomies,omitempty"`
	TokenTier            string           `json:"tokenTier,omitempty"`
	Status               string           `json:"status,omitempty"`
	Private              bool             `json:"private,omitempty"`
	Themeable            bool             `json:"themeable,omitempty"`
}

// Mode is one discrete value of a Dimension.
type Mode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Dimension is a named axis of variation, e.g. "Color Scheme" {light, dark}.
type Dimension struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Modes         []Mode `json:"modes"`
	DefaultModeID string `json:"defaultModeId,omitempty"`
}

// TaxonomyTerm is one term of a taxonomy, e.g. "100" or "XL".
type TaxonomyTerm struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Taxonomy is a classification scheme used to tag and organize tokens.
type Taxonomy struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Terms       []TaxonomyTerm `json:"terms"`
}

// TokenCollection groups tokens by the value types it accepts.
type TokenCollection struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	ResolvedValueTypeIDs []string `json:"resolvedValueTypeIds,omitempty"`
	Private              bool     `json:"private,omitempty"`
}

// ValueType describes a resolved value type (dimension, color, ...).
type ValueType struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type,omitempty"`
}

var nameRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether s is a legal variable or formula name.
func ValidName(s string) bool {
	return nameRx.MatchString(s)
}

// Validate checks the structural invariants of an Algorithm against the
// dimension catalog: legal unique names, mode-based variables referencing a
// real dimension with that dimension's mode ids, and formula/condition
// manifests carrying ids that exist.
func (a *Algorithm) Validate(dims []Dimension) []ValidationResult {
	var out []ValidationResult

	dimModes := make(map[string]map[string]bool, len(dims))
	for _, d := range dims {
		modes := make(map[string]bool, len(d.Modes))
		for _, m := range d.Modes {
			modes[m.ID] = true
		}
		dimModes[d.ID] = modes
	}

	varIDs := make(map[string]bool, len(a.Variables))
	seenNames := make(map[string]bool, len(a.Variables))
	for _, v := range a.Variables {
		varIDs[v.ID] = true
		if !ValidName(v.Name) {
			out = append(out, Errorf("variable name %q is not a valid identifier", v.Name))
		}
		if seenNames[v.Name] {
			out = append(out, Errorf("duplicate variable name %q", v.Name))
		}
		seenNames[v.Name] = true

		if !v.ModeBased {
			continue
		}
		modes, ok := dimModes[v.DimensionID]
		if !ok {
			out = append(out, Errorf("variable %q references unknown dimension %q", v.Name, v.DimensionID))
			continue
		}
		for _, mv := range v.ValuesByMode {
			for _, modeID := range mv.ModeIDs {
				if !modes[modeID] {
					out = append(out, Errorf("variable %q value references mode %q not in dimension %q", v.Name, modeID, v.DimensionID))
				}
			}
		}
	}

	for _, f := range a.Formulas {
		for _, id := range f.VariableIDs {
			if !varIDs[id] {
				r := Errorf("formula %q manifest references unknown variable id %q", f.Name, id)
				r.FormulaID = f.ID
				out = append(out, r)
			}
		}
	}
	for _, c := range a.Conditions {
		for _, id := range c.VariableIDs {
			if !varIDs[id] {
				r := Errorf("condition %q manifest references unknown variable id %q", c.Name, id)
				r.ConditionID = c.ID
				out = append(out, r)
			}
		}
	}

	for _, step := range a.Steps {
		switch step.Type {
		case StepFormula:
			if a.FormulaByID(step.ID) == nil {
				out = append(out, Errorf("step %q references unknown formula id %q", step.Name, step.ID))
			}
		case StepCondition:
			if a.ConditionByID(step.ID) == nil {
				out = append(out, Errorf("step %q references unknown condition id %q", step.Name, step.ID))
			}
		default:
			out = append(out, Errorf("step %q has unknown type %q", step.Name, step.Type))
		}
	}

	return out
}

func (a *Algorithm) FormulaByID(id string) *Formula {
	for i := range a.Formulas {
		if a.Formulas[i].ID == id {
			return &a.Formulas[i]
		}
	}
	return nil
}

func (a *Algorithm) ConditionByID(id string) *Condition {
	for i := range a.Conditions {
		if a.Conditions[i].ID == id {
			return &a.Conditions[i]
		}
	}
	return nil
}

// VariableByRef resolves a name or id to an algorithm variable.
func (a *Algorithm) VariableByRef(ref string) *Variable {
	for i := range a.Variables {
		if a.Variables[i].Name == ref || a.Variables[i].ID == ref {
			return &a.Variables[i]
		}
	}
	return nil
}

// UnmarshalAlgorithm decodes and structurally sanity-checks an Algorithm.
func UnmarshalAlgorithm(data []byte) (*Algorithm, error) {
	var a Algorithm
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.Wrap(err, "unmarshal algorithm")
	}
	if a.ID == "" {
		return nil, errors.New("algorithm has no id")
	}
	return &a, nil
}
