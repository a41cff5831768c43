package tokens

import "fmt"

// Severity classifies a ValidationResult.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ValidationResult is one finding from algorithm or dependency validation.
type ValidationResult struct {
	Type        Severity `json:"type"`
	Message     string   `json:"message"`
	FormulaID   string   `json:"formulaId,omitempty"`
	ConditionID string   `json:"conditionId,omitempty"`
}

func Errorf(format string, args ...any) ValidationResult {
	return ValidationResult{Type: SeverityError, Message: fmt.Sprintf(format, args...)}
}

func Warningf(format string, args ...any) ValidationResult {
	return ValidationResult{Type: SeverityWarning, Message: fmt.Sprintf(format, args...)}
}

func Infof(format string, args ...any) ValidationResult {
	return ValidationResult{Type: SeverityInfo, Message: fmt.Sprintf(format, args...)}
}

// HasErrors reports whether any result is error-severity.
func HasErrors(results []ValidationResult) bool {
	for _, r := range results {
		if r.Type == SeverityError {
			return true
		}
	}
	return false
}

// Store is the persistence collaborator for the broader design-system store.
// The engine never mutates shared state through it during evaluation; taxonomy
// updates come back to the caller as data and are persisted explicitly.
type Store interface {
	GetTokens() ([]Token, error)
	SetTokens(toks []Token) error

	GetTaxonomies() ([]Taxonomy, error)
	SetTaxonomies(taxonomies []Taxonomy) error

	GetDimensions() ([]Dimension, error)
	SetDimensions(dims []Dimension) error

	GetCollections() ([]TokenCollection, error)
	SetCollections(collections []TokenCollection) error

	GetValueTypes() ([]ValueType, error)

	// System variables registered by the user, merged into the registry on Refresh.
	GetSystemVariables() ([]Variable, error)
	SetSystemVariables(vars []Variable) error

	GetAlgorithms() ([]Algorithm, error)
	SaveAlgorithm(a *Algorithm) error

	IsReadOnly() bool
	Close() error
}
