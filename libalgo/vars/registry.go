package vars

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/pkg/errors"

	"github.com/NateBaldwinDesign/design-system-foundry-sub002/tokens"
)

// IterationVar is the hardwired iteration counter available to every algorithm.
const IterationVar = "n"

// Registry holds the process-wide system variables. It is populated once
// with the built-ins and re-read from the store via Refresh before each
// evaluation batch; there is no background reload. Callers treat List
// results as copy-on-read snapshots.
type Registry struct {
	byName *treemap.Map // name -> tokens.Variable, ordered for stable List
}

func NewRegistry() *Registry {
	r := &Registry{
		byName: treemap.NewWith(utils.StringComparator),
	}
	r.byName.Put(IterationVar, tokens.Variable{
		ID:           "system-" + IterationVar,
		Name:         IterationVar,
		Type:         tokens.TypeNumber,
		DefaultValue: float64(0),
	})
	return r
}

// Register adds or replaces user-defined system variables.
func (r *Registry) Register(variables ...tokens.Variable) error {
	for _, v := range variables {
		if !tokens.ValidName(v.Name) {
			return errors.Wrapf(tokens.ErrBadVariable, "system variable name %q", v.Name)
		}
		r.byName.Put(v.Name, v)
	}
	return nil
}

// Refresh re-reads user-registered system variables from the store,
// keeping the built-ins. The host invokes this before a batch evaluation
// instead of relying on any background refresh.
func (r *Registry) Refresh(store tokens.Store) error {
	userVars, err := store.GetSystemVariables()
	if err != nil {
		return errors.Wrap(err, "refresh system variables")
	}
	fresh := NewRegistry()
	if err := fresh.Register(userVars...); err != nil {
		return err
	}
	r.byName = fresh.byName
	return nil
}

// Lookup finds a system variable by exact name.
func (r *Registry) Lookup(name string) (tokens.Variable, bool) {
	v, ok := r.byName.Get(name)
	if !ok {
		return tokens.Variable{}, false
	}
	return v.(tokens.Variable), true
}

// List returns all system variables ordered by name.
func (r *Registry) List() []tokens.Variable {
	out := make([]tokens.Variable, 0, r.byName.Size())
	it := r.byName.Iterator()
	for it.Next() {
		out = append(out, it.Value().(tokens.Variable))
	}
	return out
}

// Collisions reports algorithm variables whose names shadow a system
// variable. Duplicate names are an error condition, never silently resolved.
func (r *Registry) Collisions(algorithmVars []tokens.Variable) []string {
	var out []string
	for _, v := range algorithmVars {
		if _, ok := r.byName.Get(v.Name); ok {
			out = append(out, v.Name)
		}
	}
	return out
}
