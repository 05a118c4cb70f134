package network

import (
	"fmt"
	"io"
	"strings"
)

// DumpOptions controls what a network dump includes.
type DumpOptions struct {
	// IncludeData also prints leaf value matrices.
	IncludeData bool
}

// Dump writes a human-readable listing of the network to w: each node with
// its operation, dimensions, flags, and input edges, followed by the role
// sets. Nodes appear in insertion order.
func (n *Network) Dump(w io.Writer, opts DumpOptions) error {
	for _, node := range n.order {
		if err := n.DumpNode(w, node, opts); err != nil {
			return err
		}
	}
	roles := []Role{RoleFeature, RoleLabel, RoleCriterion, RoleEvaluation, RoleOutput}
	for _, role := range roles {
		members := n.roles[role]
		if len(members) == 0 {
			continue
		}
		names := make([]string, len(members))
		for i, m := range members {
			names[i] = m.name
		}
		if _, err := fmt.Fprintf(w, "%s nodes: %s\n", role, strings.Join(names, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// DumpNode writes one node's listing to w.
func (n *Network) DumpNode(w io.Writer, node *Node, opts DumpOptions) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s", node.name, node.Op)
	if node.NumInputs() > 0 {
		names := make([]string, node.NumInputs())
		for i, in := range node.inputs {
			if in == nil {
				names[i] = "<unset>"
			} else {
				names[i] = in.name
			}
		}
		fmt.Fprintf(&b, "(%s)", strings.Join(names, ", "))
	}
	if node.Rows > 0 || node.Cols > 0 {
		fmt.Fprintf(&b, " [%d x %d]", node.Rows, node.Cols)
	}
	if node.Learnable {
		b.WriteString(" learnable")
		if node.NeedGradient {
			b.WriteString(" needGradient")
		}
	}
	b.WriteByte('\n')
	if opts.IncludeData && len(node.Value) > 0 {
		b.WriteString("  data:")
		for _, v := range node.Value {
			fmt.Fprintf(&b, " %g", v)
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}
