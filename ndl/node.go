// Package ndl implements the network description language: a statement
// parser that builds a symbol graph of nodes and macros, a macro expansion
// engine, and a multi-pass evaluator that drives a host-supplied backend.
package ndl

import (
	"fmt"
	"strings"
)

// NodeType classifies a parsed NDL node.
type NodeType int

const (
	TypeConstant NodeType = iota
	TypeFunction
	TypeVariable
	TypeParameter    // macro formal, resolved to an actual value at call time
	TypeUndetermined // forward reference, resolved in a later pass
	TypeDotParameter // dotted forward reference into a macro call scope
	TypeOptionalParameter
	TypeArray
	TypeMacroCall
	TypeMacro
)

func (t NodeType) String() string {
	switch t {
	case TypeConstant:
		return "Constant"
	case TypeFunction:
		return "Function"
	case TypeVariable:
		return "Variable"
	case TypeParameter:
		return "Parameter"
	case TypeUndetermined:
		return "Undetermined"
	case TypeDotParameter:
		return "DotParameter"
	case TypeOptionalParameter:
		return "OptionalParameter"
	case TypeArray:
		return "Array"
	case TypeMacroCall:
		return "MacroCall"
	case TypeMacro:
		return "Macro"
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Node is a named entity in an NDL script: the left side of an assignment,
// a function or macro call, a literal, or a placeholder for a symbol that
// has not been defined yet. The type parameter E is the host evaluator's
// node handle, attached during evaluation.
type Node[E any] struct {
	name      string
	value     string // right side of the assignment: literal text or symbol name
	typ       NodeType
	parent    *Script[E]
	params    []*Node[E] // parameter nodes, positional and optional
	formals   []string   // formal parameter names of a macro or macro call
	script    *Script[E] // macro body
	eval      E
	hasEval   bool
	generated bool // name is a placeholder, safe to replace
}

// newNode creates a node owned by parent. An empty name gets a generated
// "unnamed<n>" placeholder so every node is addressable.
func newNode[E any](name, value string, parent *Script[E], typ NodeType) *Node[E] {
	n := &Node[E]{value: value, typ: typ, parent: parent}
	if name == "" {
		n.name = parent.registry.nextName()
		n.generated = true
	} else {
		n.name = name
	}
	parent.addChild(n)
	return n
}

func (n *Node[E]) Name() string { return n.name }

func (n *Node[E]) SetName(name string) {
	n.name = name
	n.generated = false
}
func (n *Node[E]) Value() string         { return n.value }
func (n *Node[E]) SetValue(value string) { n.value = value }
func (n *Node[E]) Type() NodeType        { return n.typ }
func (n *Node[E]) SetType(typ NodeType)  { n.typ = typ }

// Script returns the macro body for Macro and MacroCall nodes, nil otherwise.
func (n *Node[E]) Script() *Script[E] { return n.script }
func (n *Node[E]) SetScript(script *Script[E]) { n.script = script }

// Formals returns the formal parameter names of a macro definition, or the
// formal list captured by a macro call at lookup time.
func (n *Node[E]) Formals() []string { return n.formals }
func (n *Node[E]) SetFormals(formals []string) { n.formals = formals }

// ParentScript returns the script that owns this node.
func (n *Node[E]) ParentScript() *Script[E] { return n.parent }

// InsertParam appends a parameter node.
func (n *Node[E]) InsertParam(param *Node[E]) { n.params = append(n.params, param) }

// Parameters returns either the positional or the optional parameters.
func (n *Node[E]) Parameters(optional bool) []*Node[E] {
	var result []*Node[E]
	for _, p := range n.params {
		if (p.typ == TypeOptionalParameter) == optional {
			result = append(result, p)
		}
	}
	return result
}

// OptionalParameter returns the value of the named optional parameter, or
// def when the call does not carry it. The name match is case-insensitive.
func (n *Node[E]) OptionalParameter(name, def string) string {
	for _, p := range n.params {
		if p.typ == TypeOptionalParameter && strings.EqualFold(p.name, name) {
			return p.value
		}
	}
	return def
}

// EvalValue returns the host evaluation handle attached to this node.
func (n *Node[E]) EvalValue() (E, bool) { return n.eval, n.hasEval }

// SetEvalValue attaches a host evaluation handle.
func (n *Node[E]) SetEvalValue(eval E) {
	n.eval = eval
	n.hasEval = true
}

// ClearEvalValue detaches the host evaluation handle.
func (n *Node[E]) ClearEvalValue() {
	var zero E
	n.eval = zero
	n.hasEval = false
}

// FindNode resolves a name against the owning script's scope and then the
// registry's global scope. Dotted names traverse macro call scopes.
func (n *Node[E]) FindNode(name string, dotted bool) *Node[E] {
	found, err := n.parent.FindSymbol(name, dotted)
	if err != nil {
		return nil
	}
	if found == nil {
		found, _ = n.parent.registry.global.FindSymbol(name, dotted)
	}
	return found
}

// Scalar resolves this node through variable and parameter references until
// it reaches a constant, and returns the constant's literal text. A chain
// that ends anywhere else is an error: constants are terminal.
func (n *Node[E]) Scalar() (string, error) {
	node := n
	for node != nil && (node.typ == TypeVariable || node.typ == TypeParameter || node.typ == TypeDotParameter) {
		node = node.FindNode(node.value, true)
	}
	if node == nil || node.typ != TypeConstant {
		return "", fmt.Errorf("%w: scalar expected, %q must resolve to a constant", ErrSymbol, n.name)
	}
	return node.value, nil
}

// EvaluateMacro instantiates the macro behind this call: binds actual
// parameters to the formal names, evaluates the body, and returns the body
// symbol named after the macro itself, or the last node evaluated.
// Positional actuals bind in order; name=value actuals bind the matching
// formal by name and may be interleaved. Optional parameters that do not
// name a formal bind only when the body scope does not already hold the
// symbol, preserving default values.
func (n *Node[E]) EvaluateMacro(ev NodeEvaluator[E], baseName string, pass Pass) (*Node[E], error) {
	if n.typ != TypeMacroCall {
		return nil, nil
	}
	reg := n.parent.registry
	if err := reg.enter(); err != nil {
		return nil, fmt.Errorf("%w: expanding %q", err, n.value)
	}
	defer reg.leave()

	// a call parsed inside its own macro's body captured the definition
	// before the body script existed
	if n.script == nil {
		def, _ := reg.global.FindSymbol(n.value, false)
		if def == nil || def.script == nil {
			return nil, fmt.Errorf("%w: macro %q has no body", ErrSymbol, n.value)
		}
		n.script = def.script
	}

	// Macros are shared by reference, so handles cached by an earlier call
	// must not leak into this one.
	n.script.ClearEvalValues()

	bound := make(map[string]bool, len(n.formals))
	formalIndex := func(name string) int {
		for i, f := range n.formals {
			if strings.EqualFold(f, name) {
				return i
			}
		}
		return -1
	}

	pos := 0
	for _, p := range n.params {
		actual := p
		var formal string
		if p.typ == TypeOptionalParameter {
			idx := formalIndex(p.name)
			if idx < 0 {
				// A true optional parameter: keep an existing body symbol
				// (the macro's default) if one is already there.
				if !n.script.ExistsSymbol(p.name) {
					if err := n.script.AddSymbol(p.name, p); err != nil {
						return nil, err
					}
					continue
				}
				if err := n.script.AssignSymbol(p.name, p); err != nil {
					return nil, err
				}
				continue
			}
			formal = n.formals[idx]
		} else {
			if pos >= len(n.formals) {
				return nil, fmt.Errorf("%w: macro %q expects %d parameters, got %d",
					ErrArity, n.value, len(n.formals), len(n.Parameters(false)))
			}
			formal = n.formals[pos]
			pos++
			// A bare identifier refers to a symbol in the calling scope.
			if actual.typ == TypeParameter {
				if found, _ := n.parent.FindSymbol(actual.name, false); found != nil {
					actual = found
				}
			}
		}
		bound[strings.ToLower(formal)] = true
		if err := n.script.AssignSymbol(formal, actual); err != nil {
			return nil, err
		}
		// Adopt a handle the evaluator already has for this symbol.
		if h, ok := ev.FindSymbol(formal); ok {
			actual.SetEvalValue(h)
		}
	}
	if len(bound) < len(n.formals) {
		return nil, fmt.Errorf("%w: macro %q expects %d parameters, got %d",
			ErrArity, n.value, len(n.formals), len(bound))
	}

	newBase := baseName
	if newBase != "" {
		newBase += "."
	}
	newBase += n.name

	result, err := n.script.Evaluate(ev, newBase, pass, nil)
	if err != nil {
		return nil, err
	}

	// A body symbol named after the macro is its return value.
	if ret, _ := n.script.FindSymbol(n.value, false); ret != nil {
		result = ret
	}
	if result != nil {
		if h, ok := result.EvalValue(); ok {
			n.SetEvalValue(h)
		}
	}
	return result, nil
}
