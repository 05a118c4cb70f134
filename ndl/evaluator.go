package ndl

// Pass is one sequential evaluation sweep over a script. The caller drives
// passes in increasing order; the evaluator does not enforce ordering.
type Pass int

const (
	// PassInitial creates host graph nodes for each statement.
	PassInitial Pass = iota
	// PassResolve binds symbols left undetermined during the initial pass,
	// such as forward references defined later in an enclosing scope.
	PassResolve
	// PassFinal runs once shapes are fully knowable, typically just before
	// serialization or a dump.
	PassFinal
)

// PassAll designates running every pass through PassFinal.
const PassAll = PassFinal

// PassCount is the number of evaluation passes.
const PassCount = int(PassFinal) + 1

func (p Pass) String() string {
	switch p {
	case PassInitial:
		return "initial"
	case PassResolve:
		return "resolve"
	case PassFinal:
		return "final"
	}
	return "unknown"
}

// NodeEvaluator is the host capability that turns NDL nodes into backend
// structures. E is the backend's node handle type. The same parser and
// evaluator drive any implementation: a graph builder, a tracer, a dumper.
type NodeEvaluator[E any] interface {
	// Evaluate processes one script statement for the given pass.
	Evaluate(node *Node[E], baseName string, pass Pass) error

	// EvaluateParameter evaluates one parameter of a call and returns the
	// node that now carries its handle.
	EvaluateParameter(node, param *Node[E], baseName string, pass Pass) (*Node[E], error)

	// EvaluateParameters evaluates a run of positional parameters and
	// returns their handles. Handles may be missing during the initial
	// pass while forward references are still open.
	EvaluateParameters(node *Node[E], baseName string, start, count int, pass Pass) ([]E, error)

	// FindSymbol looks a fully qualified name up in the host's own symbol
	// table.
	FindSymbol(name string) (E, bool)

	// ProcessOptionalParameters applies the name=value parameters attached
	// to a call, such as role tags.
	ProcessOptionalParameters(node *Node[E]) error
}
