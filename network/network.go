// Package network implements the computation graph that the description
// and editing languages build and mutate: named nodes with ordered input
// edges, role sets for training and evaluation, structural edits, and a
// SQLite-backed model store.
package network

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role tags a node with a purpose in the surrounding training setup.
type Role int

const (
	RoleFeature Role = iota
	RoleLabel
	RoleCriterion
	RoleEvaluation
	RoleOutput
)

func (r Role) String() string {
	switch r {
	case RoleFeature:
		return "feature"
	case RoleLabel:
		return "label"
	case RoleCriterion:
		return "criterion"
	case RoleEvaluation:
		return "evaluation"
	case RoleOutput:
		return "output"
	}
	return "unknown"
}

// CopyFlags selects what a node copy carries over.
type CopyFlags int

const (
	// CopyValue copies the value matrix and flags.
	CopyValue CopyFlags = 1 << iota
	// CopyChildren copies the input edge structure.
	CopyChildren

	// CopyAll copies both.
	CopyAll = CopyValue | CopyChildren
)

// Network is a mutable computation graph with named nodes. Node iteration
// order is insertion order, so repeated builds from the same script produce
// structurally identical output.
type Network struct {
	nodes map[string]*Node
	order []*Node
	roles map[Role][]*Node
}

// New creates an empty network.
func New() *Network {
	return &Network{
		nodes: map[string]*Node{},
		roles: map[Role][]*Node{},
	}
}

// NumNodes returns the number of nodes.
func (n *Network) NumNodes() int { return len(n.order) }

// Nodes returns the nodes in insertion order.
func (n *Network) Nodes() []*Node {
	out := make([]*Node, len(n.order))
	copy(out, n.order)
	return out
}

// Node returns the named node, or nil.
func (n *Network) Node(name string) *Node { return n.nodes[name] }

// AddNode creates a node with a fresh identity.
func (n *Network) AddNode(name, op string) (*Node, error) {
	if _, ok := n.nodes[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	node := &Node{id: uuid.New(), name: name, Op: op}
	n.nodes[name] = node
	n.order = append(n.order, node)
	return node, nil
}

// insert registers an externally constructed node, as the model loader does.
func (n *Network) insert(node *Node) error {
	if _, ok := n.nodes[node.name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, node.name)
	}
	n.nodes[node.name] = node
	n.order = append(n.order, node)
	return nil
}

// NodesMatching returns nodes whose name matches the pattern. A single '*'
// matches any run of characters; without one the match is exact.
func (n *Network) NodesMatching(pattern string) []*Node {
	star := strings.IndexByte(pattern, '*')
	if star < 0 {
		if node, ok := n.nodes[pattern]; ok {
			return []*Node{node}
		}
		return nil
	}
	prefix, suffix := pattern[:star], pattern[star+1:]
	var out []*Node
	for _, node := range n.order {
		if len(node.name) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(node.name, prefix) && strings.HasSuffix(node.name, suffix) {
			out = append(out, node)
		}
	}
	return out
}

// RenameNode changes a node's external name. Identity, edges, and role
// membership are untouched.
func (n *Network) RenameNode(node *Node, newName string) error {
	if n.nodes[node.name] != node {
		return fmt.Errorf("%w: %q", ErrForeignNode, node.name)
	}
	if newName == node.name {
		return nil
	}
	if _, ok := n.nodes[newName]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateNode, newName)
	}
	delete(n.nodes, node.name)
	node.name = newName
	n.nodes[newName] = node
	return nil
}

// DeleteNode removes the named node, detaching every edge that points at it
// and dropping it from all role sets.
func (n *Network) DeleteNode(name string) error {
	node, ok := n.nodes[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNodeNotFound, name)
	}
	delete(n.nodes, name)
	for i, other := range n.order {
		if other == node {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	for _, other := range n.order {
		other.detach(node)
	}
	for role := range n.roles {
		n.SetRole(node, role, false)
	}
	return nil
}

// CopyNode duplicates src's node fromName into this network under toName,
// creating the destination node when missing. CopyValue carries the value
// matrix and flags; CopyChildren re-creates the input edges against
// same-named nodes already present here.
func (n *Network) CopyNode(src *Network, fromName, toName string, flags CopyFlags) (*Node, error) {
	from := src.Node(fromName)
	if from == nil {
		return nil, fmt.Errorf("%w: %q", ErrNodeNotFound, fromName)
	}
	to := n.Node(toName)
	if to == nil {
		var err error
		if to, err = n.AddNode(toName, from.Op); err != nil {
			return nil, err
		}
	}
	if flags&CopyValue != 0 {
		to.Op = from.Op
		to.Value = append([]float64(nil), from.Value...)
		to.Rows = from.Rows
		to.Cols = from.Cols
		to.Learnable = from.Learnable
		to.NeedGradient = from.NeedGradient
	}
	if flags&CopyChildren != 0 {
		inputs := make([]*Node, from.NumInputs())
		for i, in := range from.inputs {
			local := n.Node(in.Name())
			if local == nil {
				return nil, fmt.Errorf("%w: input %q of %q has no counterpart here",
					ErrNodeNotFound, in.Name(), fromName)
			}
			inputs[i] = local
		}
		to.AttachInputs(inputs...)
	}
	return to, nil
}

// CopySubTree duplicates root and its transitive input subtree from src
// into this network, prefixing every copied name. Edges between copied
// nodes are preserved; no edge refers back into the source network.
func (n *Network) CopySubTree(src *Network, root *Node, prefix string, flags CopyFlags) ([]*Node, error) {
	if src.nodes[root.name] != root {
		return nil, fmt.Errorf("%w: %q", ErrForeignNode, root.name)
	}
	var subtree []*Node
	seen := map[*Node]bool{}
	var collect func(node *Node)
	collect = func(node *Node) {
		if seen[node] {
			return
		}
		seen[node] = true
		subtree = append(subtree, node)
		for _, in := range node.inputs {
			if in != nil {
				collect(in)
			}
		}
	}
	collect(root)

	copies := make(map[*Node]*Node, len(subtree))
	out := make([]*Node, 0, len(subtree))
	for _, from := range subtree {
		to, err := n.CopyNode(src, from.name, prefix+from.name, flags&^CopyChildren)
		if err != nil {
			return nil, err
		}
		copies[from] = to
		out = append(out, to)
	}
	if flags&CopyChildren != 0 {
		for _, from := range subtree {
			inputs := make([]*Node, from.NumInputs())
			for i, in := range from.inputs {
				inputs[i] = copies[in]
			}
			copies[from].AttachInputs(inputs...)
		}
	}
	return out, nil
}

// RoleNodes returns the members of a role set in membership order.
func (n *Network) RoleNodes(role Role) []*Node {
	out := make([]*Node, len(n.roles[role]))
	copy(out, n.roles[role])
	return out
}

// FeatureNodes returns the feature inputs.
func (n *Network) FeatureNodes() []*Node { return n.RoleNodes(RoleFeature) }

// LabelNodes returns the label inputs.
func (n *Network) LabelNodes() []*Node { return n.RoleNodes(RoleLabel) }

// CriterionNodes returns the training criterion roots.
func (n *Network) CriterionNodes() []*Node { return n.RoleNodes(RoleCriterion) }

// EvaluationNodes returns the evaluation roots.
func (n *Network) EvaluationNodes() []*Node { return n.RoleNodes(RoleEvaluation) }

// OutputNodes returns the output nodes.
func (n *Network) OutputNodes() []*Node { return n.RoleNodes(RoleOutput) }

// SetRole adds the node to or removes it from a role set. Adding is
// idempotent and preserves membership order.
func (n *Network) SetRole(node *Node, role Role, on bool) {
	members := n.roles[role]
	idx := -1
	for i, m := range members {
		if m == node {
			idx = i
			break
		}
	}
	switch {
	case on && idx < 0:
		n.roles[role] = append(members, node)
	case !on && idx >= 0:
		n.roles[role] = append(members[:idx], members[idx+1:]...)
	}
}

// HasRole reports role membership.
func (n *Network) HasRole(node *Node, role Role) bool {
	for _, m := range n.roles[role] {
		if m == node {
			return true
		}
	}
	return false
}

// SetLearnablesBelowNeedGradient sets the gradient flag on every learnable
// node at or below root.
func (n *Network) SetLearnablesBelowNeedGradient(needGradient bool, root *Node) {
	seen := map[*Node]bool{}
	var walk func(node *Node)
	walk = func(node *Node) {
		if node == nil || seen[node] {
			return
		}
		seen[node] = true
		if node.Learnable {
			node.NeedGradient = needGradient
		}
		for _, in := range node.inputs {
			walk(in)
		}
	}
	walk(root)
}

// Validate checks that every input edge points at a node registered here.
func (n *Network) Validate() error {
	for _, node := range n.order {
		for i, in := range node.inputs {
			if in == nil {
				return fmt.Errorf("%w: input %d of %q is unset", ErrNodeNotFound, i, node.name)
			}
			if n.nodes[in.name] != in {
				return fmt.Errorf("%w: input %d of %q", ErrForeignNode, i, node.name)
			}
		}
	}
	return nil
}
