package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/eldakms/CNTK/ndl"
	"github.com/eldakms/CNTK/network"
)

func buildNetwork(t *testing.T, script string) *Binding {
	t.Helper()
	b := NewBinding(ndl.NewRegistry[*network.Node]())
	if err := b.Script.Parse(script); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
		t.Fatalf("process: %v", err)
	}
	return b
}

func TestBuild_SimpleGraph(t *testing.T) {
	b := buildNetwork(t, `
f=InputValue(4, tag=feature)
w=LearnableParameter(3, 4)
p=Times(w, f)
`)
	p := b.Net.Node("p")
	if p == nil || p.Op != "Times" {
		t.Fatalf("p: %+v", p)
	}
	if p.NumInputs() != 2 || p.Input(0) != b.Net.Node("w") || p.Input(1) != b.Net.Node("f") {
		t.Fatalf("p inputs wrong: %v", p.Inputs())
	}
	w := b.Net.Node("w")
	if w.Rows != 3 || w.Cols != 4 || !w.Learnable || !w.NeedGradient {
		t.Errorf("w: %+v", w)
	}
	if !b.Net.HasRole(b.Net.Node("f"), network.RoleFeature) {
		t.Error("f should carry the feature role")
	}
}

func TestBuild_ForwardReference(t *testing.T) {
	// c refers to p before p is defined; the resolve pass binds it
	b := buildNetwork(t, `
c=Sigmoid(p)
p=Plus(1, 2)
`)
	c := b.Net.Node("c")
	if c == nil || c.NumInputs() != 1 || c.Input(0) != b.Net.Node("p") {
		t.Fatalf("forward reference not resolved: %+v", c)
	}
}

func TestBuild_MacroExpansion(t *testing.T) {
	b := buildNetwork(t, `
foo(x, y)={z=Plus(x, y)}
b=foo(1, 2)
`)
	z := b.Net.Node("b.z")
	if z == nil || z.Op != "Plus" {
		t.Fatalf("b.z: %+v", z)
	}
	if z.NumInputs() != 2 {
		t.Fatalf("b.z inputs: %v", z.Inputs())
	}
	for i, want := range []float64{1, 2} {
		in := z.Input(i)
		if in.Op != "Constant" || len(in.Value) != 1 || in.Value[0] != want {
			t.Errorf("input %d: %+v", i, in)
		}
	}
}

func TestBuild_NestedMacrosQualifyNames(t *testing.T) {
	b := buildNetwork(t, `
inner(x)={y=Sigmoid(x)}
outer(x)={mid=inner(x)}
top=outer(1)
`)
	if b.Net.Node("top.mid.y") == nil {
		var names []string
		for _, n := range b.Net.Nodes() {
			names = append(names, n.Name())
		}
		t.Fatalf("qualified name missing, have: %s", strings.Join(names, ", "))
	}
}

func TestBuild_DottedReferenceAcrossScopes(t *testing.T) {
	b := buildNetwork(t, `
layer(x)={z=Sigmoid(x)}
L1=layer(1)
out=Plus(L1.z, L1.z)
`)
	out := b.Net.Node("out")
	if out == nil || out.NumInputs() != 2 {
		t.Fatalf("out: %+v", out)
	}
	if out.Input(0) != b.Net.Node("L1.z") {
		t.Errorf("out input: %q", out.Input(0).Name())
	}
}

func TestBuild_Deterministic(t *testing.T) {
	script := `
m(x)={a=Plus(x, x)
b=Times(a, a)}
one=m(1)
two=m(2)
out=Plus(one, two)
`
	names := func() []string {
		b := buildNetwork(t, script)
		var out []string
		for _, n := range b.Net.Nodes() {
			out = append(out, n.Name())
		}
		return out
	}
	first, second := names(), names()
	if len(first) != len(second) {
		t.Fatalf("node counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("node order differs at %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestBuild_MacroResultFeedsCaller(t *testing.T) {
	b := buildNetwork(t, `
m(x)={m=Sigmoid(x)}
h=m(1)
out=Plus(h, h)
`)
	out := b.Net.Node("out")
	if out == nil || out.NumInputs() != 2 {
		t.Fatalf("out: %+v", out)
	}
	if out.Input(0) != b.Net.Node("h.m") {
		t.Errorf("out should consume the macro return value, got %q", out.Input(0).Name())
	}
}

func TestBuild_UnresolvedReferenceFails(t *testing.T) {
	b := NewBinding(ndl.NewRegistry[*network.Node]())
	if err := b.Script.Parse("c=Sigmoid(nothing)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	err := b.ProcessPasses(ndl.PassAll, true)
	if !errors.Is(err, ndl.ErrSymbol) {
		t.Fatalf("expected symbol error, got %v", err)
	}
}

func TestProcessPasses_IncrementalResume(t *testing.T) {
	b := NewBinding(ndl.NewRegistry[*network.Node]())
	if err := b.Script.Parse("a=Plus(1, 2)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
		t.Fatalf("process: %v", err)
	}
	count := b.Net.NumNodes()

	// appending and reprocessing must not recreate existing nodes
	if err := b.Script.Parse("b=Times(a, a)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := b.ProcessPasses(ndl.PassAll, true); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if b.Net.Node("b") == nil {
		t.Fatal("appended statement not built")
	}
	if b.Net.NumNodes() != count+1 {
		t.Errorf("expected %d nodes, got %d", count+1, b.Net.NumNodes())
	}
}

func TestTracer_PrintsStatements(t *testing.T) {
	reg := ndl.NewRegistry[string]()
	s := ndl.NewScript(reg)
	if err := s.Parse("m(x)={y=Plus(x,x)}\nout=m(2)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	var sb strings.Builder
	if _, err := s.Evaluate(&Tracer{Out: &sb}, "", ndl.PassInitial, nil); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(sb.String(), "out.y = Plus") {
		t.Fatalf("trace output: %q", sb.String())
	}
}
