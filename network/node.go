package network

import "github.com/google/uuid"

// Node is one vertex of a computation graph: an operation with ordered
// input edges and, for leaf operations, a value matrix. The ID is fixed at
// creation and survives renames, so identity and external name are
// independent.
type Node struct {
	id    uuid.UUID
	name  string
	Op    string
	Value []float64
	Rows  int
	Cols  int
	// Learnable marks nodes whose value is subject to training.
	Learnable    bool
	NeedGradient bool

	inputs []*Node
}

// ID returns the node's immutable identity.
func (n *Node) ID() uuid.UUID { return n.id }

// Name returns the node's external name. Renames go through the owning
// Network so its index stays consistent.
func (n *Node) Name() string { return n.name }

// NumInputs returns the number of input edges.
func (n *Node) NumInputs() int { return len(n.inputs) }

// Input returns the i-th input, or nil when the slot is out of range.
func (n *Node) Input(i int) *Node {
	if i < 0 || i >= len(n.inputs) {
		return nil
	}
	return n.inputs[i]
}

// Inputs returns a copy of the ordered input edges.
func (n *Node) Inputs() []*Node {
	out := make([]*Node, len(n.inputs))
	copy(out, n.inputs)
	return out
}

// SetInput rewires one input edge, growing the slot list when the index is
// just past the current end.
func (n *Node) SetInput(i int, input *Node) {
	for len(n.inputs) <= i {
		n.inputs = append(n.inputs, nil)
	}
	n.inputs[i] = input
}

// AttachInputs replaces all input edges.
func (n *Node) AttachInputs(inputs ...*Node) {
	n.inputs = append(n.inputs[:0:0], inputs...)
}

// detach removes every edge pointing at target.
func (n *Node) detach(target *Node) {
	kept := n.inputs[:0]
	for _, in := range n.inputs {
		if in != target {
			kept = append(kept, in)
		}
	}
	n.inputs = kept
}
