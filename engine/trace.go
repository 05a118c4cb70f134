package engine

import (
	"fmt"
	"io"

	"github.com/eldakms/CNTK/ndl"
)

// Tracer is a diagnostic evaluator that prints each statement as it is
// processed instead of building a graph. Its node handle is the qualified
// name itself, which makes it a cheap way to see what a script expands to.
type Tracer struct {
	Out io.Writer
}

var _ ndl.NodeEvaluator[string] = (*Tracer)(nil)

// Evaluate prints one statement during the initial pass.
func (t *Tracer) Evaluate(node *ndl.Node[string], baseName string, pass ndl.Pass) error {
	name := qualify(baseName, node.Name())
	node.SetEvalValue(name)
	if pass != ndl.PassInitial {
		return nil
	}
	_, err := fmt.Fprintf(t.Out, "%s = %s\n", name, node.Value())
	return err
}

// EvaluateParameter marks the parameter with its qualified name.
func (t *Tracer) EvaluateParameter(node, param *ndl.Node[string], baseName string, pass ndl.Pass) (*ndl.Node[string], error) {
	param.SetEvalValue(qualify(baseName, param.Name()))
	return param, nil
}

// EvaluateParameters resolves positional parameters to their names.
func (t *Tracer) EvaluateParameters(node *ndl.Node[string], baseName string, start, count int, pass ndl.Pass) ([]string, error) {
	params := node.Parameters(false)
	if start+count > len(params) {
		count = len(params) - start
	}
	names := make([]string, 0, count)
	for _, param := range params[start : start+count] {
		names = append(names, qualify(baseName, param.Name()))
	}
	return names, nil
}

// FindSymbol never resolves; the tracer keeps no symbol table.
func (t *Tracer) FindSymbol(name string) (string, bool) { return "", false }

// ProcessOptionalParameters prints role tags.
func (t *Tracer) ProcessOptionalParameters(node *ndl.Node[string]) error {
	name, ok := node.EvalValue()
	if !ok {
		return nil
	}
	for _, p := range node.Parameters(true) {
		if _, err := fmt.Fprintf(t.Out, "%s [%s=%s]\n", name, p.Name(), p.Value()); err != nil {
			return err
		}
	}
	return nil
}
