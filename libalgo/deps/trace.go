package deps

import (
	"time"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/expr"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/libalgo/vars"
	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// TraceStep records one executed pipeline step.
type TraceStep struct {
	StepID        string          `json:"stepId"`
	StepType      tokens.StepType `json:"stepType"`
	StepName      string          `json:"stepName"`
	ExecutionTime time.Duration   `json:"executionTime"`
	OutputValue   any             `json:"outputValue,omitempty"`
	Dependencies  []string        `json:"dependencies,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Trace is the record of one full pipeline run. FinalResult is the output of
// the last formula step that evaluated successfully.
type Trace struct {
	Steps         []TraceStep   `json:"steps"`
	Errors        []string      `json:"errors,omitempty"`
	FinalResult   any           `json:"finalResult,omitempty"`
	ExecutionTime time.Duration `json:"executionTime"`

	finalValue expr.Value
	hasFinal   bool
}

// FinalValue returns the typed result of the last successful formula step.
func (t *Trace) FinalValue() (expr.Value, bool) {
	return t.finalValue, t.hasFinal
}

// SeedBindings builds the initial variable bindings for a pipeline run:
// system variable defaults, then algorithm variable defaults, then the
// caller's context on top.
func SeedBindings(alg *tokens.Algorithm, reg *vars.Registry, context expr.Bindings) expr.Bindings {
	b := expr.Bindings{}
	for _, v := range reg.List() {
		if v.DefaultValue == nil {
			continue
		}
		if val, err := expr.FromAny(v.DefaultValue); err == nil {
			b[v.Name] = val
		}
	}
	for _, v := range alg.Variables {
		if v.DefaultValue == nil {
			continue
		}
		if val, err := expr.FromAny(v.DefaultValue); err == nil {
			b[v.Name] = val
			b[v.ID] = val
		}
	}
	for name, val := range context {
		b[name] = val
	}
	return b
}

// GenerateExecutionTrace replays algorithm.steps strictly in stored array
// order (the topological order is diagnostic only), binding each step's
// output to its name so later steps see it. A step failure is captured on
// the step's trace entry and execution continues: partial-failure
// semantics, never abort-on-first-error.
func GenerateExecutionTrace(alg *tokens.Algorithm, context expr.Bindings, reg *vars.Registry) *Trace {
	started := time.Now()
	trace := &Trace{}
	bindings := SeedBindings(alg, reg, context)

	for _, step := range alg.Steps {
		entry := TraceStep{
			StepID:   step.ID,
			StepType: step.Type,
			StepName: step.Name,
		}
		stepStart := time.Now()

		raw, varRefs, ok := stepBody(alg, step)
		if !ok {
			entry.Error = "step references a missing " + string(step.Type)
		} else {
			entry.Dependencies = varRefs
			value, err := runStep(raw, bindings)
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.OutputValue = value.ToAny()
				bindings[stepName(alg, step.ID)] = value
				if step.Type == tokens.StepFormula {
					trace.finalValue = value
					trace.hasFinal = true
					trace.FinalResult = value.ToAny()
				}
			}
		}

		entry.ExecutionTime = time.Since(stepStart)
		trace.Steps = append(trace.Steps, entry)
		if entry.Error != "" {
			trace.Errors = append(trace.Errors, step.Name+": "+entry.Error)
		}
	}

	trace.ExecutionTime = time.Since(started)
	return trace
}

func stepBody(alg *tokens.Algorithm, step tokens.AlgorithmStep) (raw string, varRefs []string, ok bool) {
	switch step.Type {
	case tokens.StepFormula:
		if f := alg.FormulaByID(step.ID); f != nil {
			return f.Expressions.RawText, f.VariableIDs, true
		}
	case tokens.StepCondition:
		if c := alg.ConditionByID(step.ID); c != nil {
			return c.Expression.RawText, c.VariableIDs, true
		}
	}
	return "", nil, false
}

// BindModeVariables resolves each mode-based variable's value for the active
// mode-id set into the evaluation context, under both name and id.
func BindModeVariables(alg *tokens.Algorithm, modeIDs []string, context expr.Bindings) {
	active := make(map[string]bool, len(modeIDs))
	for _, id := range modeIDs {
		active[id] = true
	}
	for _, v := range alg.Variables {
		if !v.ModeBased {
			continue
		}
		for _, mv := range v.ValuesByMode {
			matched := len(mv.ModeIDs) > 0
			for _, id := range mv.ModeIDs {
				if !active[id] {
					matched = false
					break
				}
			}
			if !matched {
				continue
			}
			if val, err := expr.FromAny(mv.Value); err == nil {
				context[v.Name] = val
				context[v.ID] = val
			}
			break
		}
	}
}

func runStep(raw string, bindings expr.Bindings) (expr.Value, error) {
	ast, err := expr.ParseExpression(raw)
	if err != nil {
		return expr.Value{}, err
	}
	return expr.Eval(ast, bindings)
}
