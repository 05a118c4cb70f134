package ndl

import "fmt"

// DefaultMacroDepth bounds recursive macro expansion. The language itself
// places no limit on recursion, so runaway self-referential macros are
// structurally possible; the registry cuts them off at a configurable depth.
const DefaultMacroDepth = 128

// Registry is the long-lived global scope shared by every script parsed
// against it. Macro definitions and top-level constants live here for the
// registry's lifetime, forming a reusable library of subgraph templates.
// Each registry is independent, so tests and hosts can run isolated
// instances side by side.
type Registry[E any] struct {
	global      *Script[E]
	maxDepth    int
	depth       int
	nameCounter int
}

// NewRegistry creates an empty registry with the default macro depth limit.
func NewRegistry[E any]() *Registry[E] {
	r := &Registry[E]{maxDepth: DefaultMacroDepth}
	r.global = &Script[E]{registry: r, symbols: map[string]*Node[E]{}}
	return r
}

// SetMacroDepthLimit overrides the macro expansion depth limit.
func (r *Registry[E]) SetMacroDepthLimit(limit int) {
	if limit > 0 {
		r.maxDepth = limit
	}
}

// Global returns the registry's global scope.
func (r *Registry[E]) Global() *Script[E] { return r.global }

// ClearEvalValues detaches evaluation handles from every node in the
// global scope, forcing the next evaluation to rebuild from scratch.
func (r *Registry[E]) ClearEvalValues() { r.global.ClearEvalValues() }

func (r *Registry[E]) enter() error {
	if r.depth >= r.maxDepth {
		return fmt.Errorf("%w: depth limit %d reached", ErrMacroDepth, r.maxDepth)
	}
	r.depth++
	return nil
}

func (r *Registry[E]) leave() { r.depth-- }

func (r *Registry[E]) nextName() string {
	r.nameCounter++
	return fmt.Sprintf("unnamed%d", r.nameCounter)
}
