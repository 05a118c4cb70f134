package network

import "encoding/json"

type jsonNode struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Op           string    `json:"op"`
	Rows         int       `json:"rows,omitempty"`
	Cols         int       `json:"cols,omitempty"`
	Learnable    bool      `json:"learnable,omitempty"`
	NeedGradient bool      `json:"needGradient,omitempty"`
	Inputs       []string  `json:"inputs,omitempty"`
	Value        []float64 `json:"value,omitempty"`
}

type jsonNetwork struct {
	Nodes []jsonNode          `json:"nodes"`
	Roles map[string][]string `json:"roles,omitempty"`
}

// MarshalJSON exports the network structurally: nodes in insertion order
// with input edges by name, plus the role sets.
func (n *Network) MarshalJSON() ([]byte, error) {
	out := jsonNetwork{Nodes: make([]jsonNode, 0, len(n.order))}
	for _, node := range n.order {
		jn := jsonNode{
			ID:           node.id.String(),
			Name:         node.name,
			Op:           node.Op,
			Rows:         node.Rows,
			Cols:         node.Cols,
			Learnable:    node.Learnable,
			NeedGradient: node.NeedGradient,
			Value:        node.Value,
		}
		for _, in := range node.inputs {
			if in != nil {
				jn.Inputs = append(jn.Inputs, in.name)
			} else {
				jn.Inputs = append(jn.Inputs, "")
			}
		}
		out.Nodes = append(out.Nodes, jn)
	}
	for role, members := range n.roles {
		if len(members) == 0 {
			continue
		}
		if out.Roles == nil {
			out.Roles = map[string][]string{}
		}
		names := make([]string, len(members))
		for i, m := range members {
			names[i] = m.name
		}
		out.Roles[role.String()] = names
	}
	return json.Marshal(out)
}
