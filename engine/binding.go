package engine

import (
	"fmt"
	"os"

	"github.com/eldakms/CNTK/ndl"
	"github.com/eldakms/CNTK/network"
)

// Binding pairs a network with the script that builds and edits it. It
// remembers the last statement each pass has processed, so appending more
// statements and re-running the passes only evaluates the new tail.
type Binding struct {
	Net    *network.Network
	Script *ndl.Script[*network.Node]

	last [ndl.PassCount]*ndl.Node[*network.Node]
}

// NewBinding creates a binding with a fresh network and an empty script
// registered against reg.
func NewBinding(reg *ndl.Registry[*network.Node]) *Binding {
	return &Binding{
		Net:    network.New(),
		Script: ndl.NewScript(reg),
	}
}

// BindNetwork wraps an already built network, as the model loader produces,
// with an empty script for subsequent edits.
func BindNetwork(reg *ndl.Registry[*network.Node], net *network.Network) *Binding {
	return &Binding{
		Net:    net,
		Script: ndl.NewScript(reg),
	}
}

// ClearLastNodes forgets per-pass progress, so the next ProcessPasses run
// re-evaluates the whole script.
func (b *Binding) ClearLastNodes() {
	for i := range b.last {
		b.last[i] = nil
	}
}

// Clear resets the binding to a fresh network and script.
func (b *Binding) Clear() {
	reg := b.Script.Registry()
	b.Net = network.New()
	b.Script = ndl.NewScript(reg)
	b.ClearLastNodes()
}

// LoadFile parses an NDL file from disk into the binding's script.
func (b *Binding) LoadFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script %s: %w", path, err)
	}
	return b.Script.FileParse(string(text))
}

// ProcessPasses runs the evaluation passes in order through until,
// resuming each pass after the last statement it has already processed.
// With fullValidate set the network is checked for dangling edges at the
// end, as a save or a dump needs.
func (b *Binding) ProcessPasses(until ndl.Pass, fullValidate bool) error {
	ev := NewEvaluator(b.Net)
	for pass := ndl.PassInitial; pass <= until; pass++ {
		last, err := b.Script.Evaluate(ev, "", pass, b.last[pass])
		if err != nil {
			return fmt.Errorf("%s pass: %w", pass, err)
		}
		b.last[pass] = last
	}
	if fullValidate {
		return b.Net.Validate()
	}
	return nil
}
