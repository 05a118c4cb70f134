package ndl

import "errors"

var (
	// ErrSyntax is returned for malformed statements: missing delimiters,
	// unbalanced braces, or calls that cannot be split into name and
	// parameter list.
	ErrSyntax = errors.New("ndl: syntax error")

	// ErrSymbol is returned for undefined, ambiguous, or redefined symbols.
	ErrSymbol = errors.New("ndl: symbol error")

	// ErrArity is returned when a macro or function call supplies too few
	// or too many parameters.
	ErrArity = errors.New("ndl: arity error")

	// ErrMacroDepth is returned when macro expansion exceeds the
	// registry's configured depth limit.
	ErrMacroDepth = errors.New("ndl: macro expansion too deep")
)
