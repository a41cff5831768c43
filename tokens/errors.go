package tokens

import "errors"

// Errors
var (
	ErrSyntax          = errors.New("expression syntax error")
	ErrReference       = errors.New("undefined variable reference")
	ErrCycle           = errors.New("formula dependency cycle")
	ErrEvaluation      = errors.New("expression evaluation failed")
	ErrGeneration      = errors.New("token generation failed")
	ErrBadRange        = errors.New("bad iteration range")
	ErrNameCollision   = errors.New("duplicate variable name")
	ErrTokenCollision  = errors.New("generated token already exists")
	ErrAliasCycle      = errors.New("circular token alias chain")
	ErrAliasBroken     = errors.New("token alias target not found")
	ErrTokenLimit      = errors.New("generated token count exceeds limit")
	ErrNoFormulas      = errors.New("algorithm has no formula steps")
	ErrNoTaxonomy      = errors.New("no taxonomy target configured")
	ErrBadLabel        = errors.New("unrecognized scale label")
	ErrBadVariable     = errors.New("invalid variable definition")
	ErrBadCatalogParam = errors.New("bad catalog param")
	ErrReadOnly        = errors.New("catalog is read-only")
)
