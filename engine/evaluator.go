// Package engine connects the description language to the computation
// graph: a node evaluator that materializes script statements as network
// nodes across the evaluation passes, and bindings that track a script and
// the network it builds.
package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eldakms/CNTK/ndl"
	"github.com/eldakms/CNTK/network"
)

// Evaluator materializes NDL statements as nodes of a single network. It is
// the graph-building backend of the generic evaluation interface; the node
// handle type is the network's own node.
type Evaluator struct {
	net *network.Network
}

// NewEvaluator creates an evaluator that builds into net.
func NewEvaluator(net *network.Network) *Evaluator {
	return &Evaluator{net: net}
}

// Network returns the network being built.
func (e *Evaluator) Network() *network.Network { return e.net }

func qualify(baseName, name string) string {
	if baseName == "" {
		return name
	}
	return baseName + "." + name
}

// fullName returns the network name of an NDL node, preferring the base
// name of the scope the node was declared in over the caller's.
func fullName(node *ndl.Node[*network.Node], baseName string) string {
	if ps := node.ParentScript(); ps != nil && ps.BaseName() != "" {
		baseName = ps.BaseName()
	}
	return qualify(baseName, node.Name())
}

// Evaluate processes one call statement for the given pass. The initial
// pass creates the network node; the resolve pass attaches input edges,
// including ones that were forward references when the node was created;
// the final pass checks that nothing was left dangling.
func (e *Evaluator) Evaluate(node *ndl.Node[*network.Node], baseName string, pass ndl.Pass) error {
	if node.Type() != ndl.TypeFunction {
		return nil
	}
	name := qualify(baseName, node.Name())
	op := node.Value()

	switch pass {
	case ndl.PassInitial:
		if _, ok := node.EvalValue(); ok {
			return nil
		}
		nn, err := e.createNode(node, name, op, baseName)
		if err != nil {
			return err
		}
		node.SetEvalValue(nn)
		return e.ProcessOptionalParameters(node)

	case ndl.PassResolve:
		nn, err := e.handle(node, name)
		if err != nil {
			return err
		}
		if leafOp(op) {
			return nil
		}
		params := node.Parameters(false)
		inputs, err := e.EvaluateParameters(node, baseName, 0, len(params), pass)
		if err != nil {
			return err
		}
		for i, in := range inputs {
			nn.SetInput(i, in)
		}
		return nil

	case ndl.PassFinal:
		nn, err := e.handle(node, name)
		if err != nil {
			return err
		}
		for i := 0; i < nn.NumInputs(); i++ {
			if nn.Input(i) == nil {
				return fmt.Errorf("%w: input %d of %q never resolved", ndl.ErrSymbol, i, name)
			}
		}
		return nil
	}
	return nil
}

// handle returns the node's network handle, re-attaching it by qualified
// name when a macro re-expansion has cleared it since the last pass.
func (e *Evaluator) handle(node *ndl.Node[*network.Node], name string) (*network.Node, error) {
	if nn, ok := node.EvalValue(); ok {
		return nn, nil
	}
	nn := e.net.Node(name)
	if nn == nil {
		return nil, fmt.Errorf("%w: %q was never created", ndl.ErrSymbol, name)
	}
	node.SetEvalValue(nn)
	return nn, nil
}

// leafOp reports whether the operation takes its configuration from scalar
// parameters instead of input edges.
func leafOp(op string) bool {
	switch op {
	case "Constant", "LearnableParameter", "InputValue", "ImageInput":
		return true
	}
	return false
}

func (e *Evaluator) createNode(node *ndl.Node[*network.Node], name, op, baseName string) (*network.Node, error) {
	params := node.Parameters(false)
	scalar := func(i int, def float64) (float64, error) {
		if i >= len(params) {
			return def, nil
		}
		text, err := params[i].Scalar()
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q parameter %d: %v", ndl.ErrSymbol, name, i, err)
		}
		return v, nil
	}

	switch op {
	case "Constant":
		if len(params) < 1 {
			return nil, fmt.Errorf("%w: Constant needs a value: %q", ndl.ErrArity, name)
		}
		v, err := scalar(0, 0)
		if err != nil {
			return nil, err
		}
		nn, err := e.net.AddNode(name, op)
		if err != nil {
			return nil, err
		}
		nn.Value = []float64{v}
		nn.Rows, nn.Cols = 1, 1
		return nn, nil

	case "LearnableParameter":
		rows, err := scalar(0, 1)
		if err != nil {
			return nil, err
		}
		cols, err := scalar(1, 1)
		if err != nil {
			return nil, err
		}
		nn, err := e.net.AddNode(name, op)
		if err != nil {
			return nil, err
		}
		nn.Rows, nn.Cols = int(rows), int(cols)
		nn.Learnable = true
		nn.NeedGradient = parseBool(node.OptionalParameter("needGradient",
			node.OptionalParameter("computeGradient", "true")))
		if v := node.OptionalParameter("value", ""); v != "" {
			fill, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q value=%q: %v", ndl.ErrSymbol, name, v, err)
			}
			nn.Value = make([]float64, nn.Rows*nn.Cols)
			for i := range nn.Value {
				nn.Value[i] = fill
			}
		}
		return nn, nil

	case "InputValue":
		rows, err := scalar(0, 1)
		if err != nil {
			return nil, err
		}
		cols, err := scalar(1, 1)
		if err != nil {
			return nil, err
		}
		nn, err := e.net.AddNode(name, op)
		if err != nil {
			return nil, err
		}
		nn.Rows, nn.Cols = int(rows), int(cols)
		return nn, nil

	case "ImageInput":
		width, err := scalar(0, 1)
		if err != nil {
			return nil, err
		}
		height, err := scalar(1, 1)
		if err != nil {
			return nil, err
		}
		channels, err := scalar(2, 1)
		if err != nil {
			return nil, err
		}
		nn, err := e.net.AddNode(name, op)
		if err != nil {
			return nil, err
		}
		nn.Rows, nn.Cols = int(width*height*channels), 1
		return nn, nil

	default:
		nn, err := e.net.AddNode(name, op)
		if err != nil {
			return nil, err
		}
		// force creation of nested calls and literal parameters now, so
		// only true forward references are left for the resolve pass
		if _, err := e.EvaluateParameters(node, baseName, 0, len(params), ndl.PassInitial); err != nil {
			return nil, err
		}
		return nn, nil
	}
}

// EvaluateParameter resolves one parameter of a call to the NDL node that
// carries its network handle. Nested calls are evaluated in place; symbol
// references are chased through the scope chain. An unresolved reference is
// tolerated during the initial pass and an error afterwards.
func (e *Evaluator) EvaluateParameter(node, param *ndl.Node[*network.Node], baseName string, pass ndl.Pass) (*ndl.Node[*network.Node], error) {
	if _, ok := param.EvalValue(); ok {
		return param, nil
	}
	switch param.Type() {
	case ndl.TypeFunction:
		// a nested call is not a statement, so passes reach it only from here
		if err := e.Evaluate(param, baseName, ndl.PassInitial); err != nil {
			return nil, err
		}
		if pass > ndl.PassInitial {
			if err := e.Evaluate(param, baseName, pass); err != nil {
				return nil, err
			}
		}
		return param, nil

	case ndl.TypeMacroCall:
		if _, err := param.EvaluateMacro(e, baseName, pass); err != nil {
			return nil, err
		}
		if err := e.ProcessOptionalParameters(param); err != nil {
			return nil, err
		}
		return param, nil

	case ndl.TypeConstant:
		name := fullName(param, baseName)
		if nn := e.net.Node(name); nn != nil {
			param.SetEvalValue(nn)
			return param, nil
		}
		v, err := strconv.ParseFloat(param.Value(), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: constant %q is not numeric", ndl.ErrSymbol, param.Value())
		}
		nn, err := e.net.AddNode(name, "Constant")
		if err != nil {
			return nil, err
		}
		nn.Value = []float64{v}
		nn.Rows, nn.Cols = 1, 1
		param.SetEvalValue(nn)
		return param, nil

	default:
		target := param.FindNode(param.Value(), true)
		if target != nil && target != param {
			resolved, err := e.EvaluateParameter(node, target, baseName, pass)
			if err != nil {
				return nil, err
			}
			if nn, ok := resolved.EvalValue(); ok {
				param.SetEvalValue(nn)
			}
			return resolved, nil
		}
		// not in any scope; it may still be in the network by name
		if nn := e.net.Node(fullName(param, baseName)); nn != nil {
			param.SetEvalValue(nn)
			return param, nil
		}
		if pass == ndl.PassInitial {
			return param, nil
		}
		return nil, fmt.Errorf("%w: %q is not defined", ndl.ErrSymbol, param.Value())
	}
}

// EvaluateParameters resolves a run of positional parameters and returns the
// network handles gathered so far. During the initial pass unresolved
// forward references are skipped rather than reported.
func (e *Evaluator) EvaluateParameters(node *ndl.Node[*network.Node], baseName string, start, count int, pass ndl.Pass) ([]*network.Node, error) {
	params := node.Parameters(false)
	if start+count > len(params) {
		count = len(params) - start
	}
	var handles []*network.Node
	for _, param := range params[start : start+count] {
		resolved, err := e.EvaluateParameter(node, param, baseName, pass)
		if err != nil {
			return nil, err
		}
		if resolved == nil {
			continue
		}
		if nn, ok := resolved.EvalValue(); ok {
			handles = append(handles, nn)
		} else if pass > ndl.PassInitial {
			return nil, fmt.Errorf("%w: parameter %q of %q has no value",
				ndl.ErrSymbol, param.Value(), node.Name())
		}
	}
	return handles, nil
}

// FindSymbol looks a fully qualified name up in the network.
func (e *Evaluator) FindSymbol(name string) (*network.Node, bool) {
	nn := e.net.Node(name)
	return nn, nn != nil
}

// ProcessOptionalParameters applies name=value parameters to the node's
// network handle: role tags and gradient flags.
func (e *Evaluator) ProcessOptionalParameters(node *ndl.Node[*network.Node]) error {
	nn, ok := node.EvalValue()
	if !ok {
		return nil
	}
	for _, p := range node.Parameters(true) {
		switch strings.ToLower(p.Name()) {
		case "tag":
			role, err := RoleFromTag(p.Value())
			if err != nil {
				return err
			}
			e.net.SetRole(nn, role, true)
		case "needgradient", "computegradient":
			nn.NeedGradient = parseBool(p.Value())
		}
	}
	return nil
}

// RoleFromTag maps a tag value to a network role.
func RoleFromTag(tag string) (network.Role, error) {
	switch strings.ToLower(tag) {
	case "feature", "features":
		return network.RoleFeature, nil
	case "label", "labels":
		return network.RoleLabel, nil
	case "criterion", "criteria":
		return network.RoleCriterion, nil
	case "eval", "evaluation":
		return network.RoleEvaluation, nil
	case "output", "outputs":
		return network.RoleOutput, nil
	}
	return 0, fmt.Errorf("%w: unknown tag %q", ndl.ErrSymbol, tag)
}

func parseBool(text string) bool {
	v, err := strconv.ParseBool(strings.ToLower(text))
	return err == nil && v
}
