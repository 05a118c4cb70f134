package mel

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eldakms/CNTK/ndl"
	"github.com/eldakms/CNTK/network"
)

func newTestInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	i := NewInterpreter()
	i.Out = &bytes.Buffer{}
	i.Logger = log.New(&bytes.Buffer{}, "", 0)
	return i
}

// seedModel creates a model holding w -> p(w, f).
func seedModel(t *testing.T, i *Interpreter, name string) {
	t.Helper()
	if err := i.Run(name + "=CreateModel()"); err != nil {
		t.Fatalf("create model: %v", err)
	}
	net := i.Model(name).Net
	w, _ := net.AddNode("w", "LearnableParameter")
	w.Learnable = true
	f, _ := net.AddNode("f", "InputValue")
	p, _ := net.AddNode("p", "Times")
	p.AttachInputs(w, f)
}

func TestRun_UnknownCommand(t *testing.T) {
	i := newTestInterpreter(t)
	err := i.Run("Frobnicate(x)")
	if !errors.Is(err, ErrState) || !strings.Contains(err.Error(), "unknown editor command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestRun_AbbreviatedCommands(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	// "remove" abbreviates RemoveNode via its alias, case-insensitively
	if err := i.Run("remove(p)"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if i.Model("m").Net.Node("p") != nil {
		t.Fatal("node not removed")
	}
	// "Del" abbreviates DeleteNode's alias Delete
	if err := i.Run("Del(f)"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if i.Model("m").Net.Node("f") != nil {
		t.Fatal("node not deleted")
	}
}

func TestRun_ArityErrors(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	cases := []string{
		"SetNodeInput(p, 0)",
		"Rename(p)",
		"CreateModel(extra)",
	}
	for _, stmt := range cases {
		if err := i.Run(stmt); !errors.Is(err, ndl.ErrArity) {
			t.Errorf("%s: expected arity error, got %v", stmt, err)
		}
	}
}

func TestSetNodeInput_MissingTargetLeavesNodeUntouched(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	before := i.Model("m").Net.Node("p").Inputs()

	err := i.Run("SetNodeInput(p, 0, B)")
	if !errors.Is(err, network.ErrNodeNotFound) || !strings.Contains(err.Error(), "B") {
		t.Fatalf("expected not-found error naming B, got %v", err)
	}
	after := i.Model("m").Net.Node("p").Inputs()
	for idx := range before {
		if before[idx] != after[idx] {
			t.Fatal("failed command must not modify the node")
		}
	}
}

func TestSetNodeInput_Rewires(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	net := i.Model("m").Net
	if err := i.Run("SetNodeInput(p, 1, w)"); err != nil {
		t.Fatalf("set input: %v", err)
	}
	if net.Node("p").Input(1) != net.Node("w") {
		t.Fatal("input not rewired")
	}
}

func TestRename_PreservesIdentity(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	id := i.Model("m").Net.Node("w").ID()
	if err := i.Run("Rename(w, weights)"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	node := i.Model("m").Net.Node("weights")
	if node == nil || node.ID() != id {
		t.Fatal("rename must keep node identity")
	}
}

func TestSetProperty_RolesAndGradient(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	net := i.Model("m").Net
	script := `
SetProperty(p, Output, true)
SetProperty(f, Feature, true)
SetProperty(w, ComputeGradient, false)
`
	if err := i.Run(script); err != nil {
		t.Fatalf("set property: %v", err)
	}
	if !net.HasRole(net.Node("p"), network.RoleOutput) {
		t.Error("output role not set")
	}
	if !net.HasRole(net.Node("f"), network.RoleFeature) {
		t.Error("feature role not set")
	}
	if net.Node("w").NeedGradient {
		t.Error("gradient flag not cleared")
	}
	if err := i.Run("SetProperty(p, Bogus, true)"); !errors.Is(err, ErrState) {
		t.Errorf("unknown property: got %v", err)
	}
}

func TestCopyNode_AcrossModels(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m1")
	seedModel(t, i, "m2")
	if err := i.Run("CopyNode(m1.w, m2.w2, copy=value)"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if i.Model("m2").Net.Node("w2") == nil {
		t.Fatal("node not copied into m2")
	}
}

func TestCopyNode_Wildcard(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	net := i.Model("m").Net
	net.AddNode("L1.a", "Plus")
	net.AddNode("L1.b", "Plus")
	if err := i.Run("CopyNode(L1.*, L9.*, copy=value)"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if net.Node("L9.a") == nil || net.Node("L9.b") == nil {
		t.Fatal("wildcard copy incomplete")
	}
}

func TestCopySubTree_IntoOtherModel(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m1")
	seedModel(t, i, "m2")
	if err := i.Run("CopySubTree(m1.p, m2.sub., copy=all)"); err != nil {
		t.Fatalf("copy subtree: %v", err)
	}
	net := i.Model("m2").Net
	p := net.Node("sub.p")
	if p == nil || p.Input(0) != net.Node("sub.w") {
		t.Fatal("subtree not copied with edges")
	}
}

func TestCopyNodeInputs_RejectsCrossModel(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m1")
	seedModel(t, i, "m2")
	err := i.Run("CopyNodeInputs(m1.p, m2.p)")
	if !errors.Is(err, ErrReferenceScope) {
		t.Fatalf("expected reference scope error, got %v", err)
	}
}

func TestSetDefaultModel_SwitchesResolution(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m1")
	seedModel(t, i, "m2")
	// m2 is the default after its creation; switch back explicitly
	if err := i.Run("SetDefaultModel(m1)"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if err := i.Run("RemoveNode(p)"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if i.Model("m1").Net.Node("p") != nil {
		t.Fatal("default model not switched")
	}
	if i.Model("m2").Net.Node("p") == nil {
		t.Fatal("wrong model edited")
	}
}

func TestUnloadModel_WarnsOnUnknown(t *testing.T) {
	i := newTestInterpreter(t)
	var logged bytes.Buffer
	i.Logger = log.New(&logged, "", 0)
	seedModel(t, i, "m")
	if err := i.Run("UnloadModel(m, ghost)"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if i.Model("m") != nil {
		t.Fatal("model not unloaded")
	}
	if !strings.Contains(logged.String(), "ghost") {
		t.Fatal("unknown model should be warned about")
	}
}

func TestSaveAndLoadModel(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	path := filepath.Join(t.TempDir(), "model.dnn")
	if err := i.Run("SaveModel(m, " + path + ")"); err != nil {
		t.Fatalf("save: %v", err)
	}
	j := newTestInterpreter(t)
	if err := j.Run("m2=LoadModel(" + path + ")"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if j.Model("m2").Net.Node("p") == nil {
		t.Fatal("loaded model incomplete")
	}
}

func TestLoadNDLSnippet_BuildsModel(t *testing.T) {
	i := newTestInterpreter(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "net.ndl")
	snippet := "f=InputValue(2, tag=feature)\nw=LearnableParameter(2, 2)\np=Times(w, f)"
	if err := os.WriteFile(path, []byte(snippet), 0644); err != nil {
		t.Fatal(err)
	}
	if err := i.Run("m=LoadNDLSnippet(" + path + ")"); err != nil {
		t.Fatalf("snippet: %v", err)
	}
	net := i.Model("m").Net
	if net.Node("p") == nil || net.Node("p").Input(0) != net.Node("w") {
		t.Fatal("snippet not built")
	}
}

func TestLoadNDLSnippet_NamedModelParameter(t *testing.T) {
	i := newTestInterpreter(t)
	path := filepath.Join(t.TempDir(), "net.ndl")
	snippet := "f=InputValue(2, tag=feature)\nw=LearnableParameter(2, 2)\np=Times(w, f)"
	if err := os.WriteFile(path, []byte(snippet), 0644); err != nil {
		t.Fatal(err)
	}
	script := "CreateModelWithName(m1)\nLoadNDLSnippet(m1, " + path + ")"
	if err := i.Run(script); err != nil {
		t.Fatalf("snippet: %v", err)
	}
	net := i.Model("m1").Net
	if net == nil || net.Node("p") == nil {
		t.Fatal("snippet not loaded into the named model")
	}
}

func TestModelFormat_Validated(t *testing.T) {
	i := newTestInterpreter(t)
	seedModel(t, i, "m")
	path := filepath.Join(t.TempDir(), "model.dnn")
	if err := i.Run("SaveModel(m, " + path + ", format=garbage)"); !errors.Is(err, ndl.ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if err := i.Run("SaveModel(m, " + path + ", format=cntk)"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := i.Run("m2=LoadModel(" + path + ", format=garbage)"); !errors.Is(err, ndl.ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestDumpModel_WritesToOut(t *testing.T) {
	i := newTestInterpreter(t)
	out := &bytes.Buffer{}
	i.Out = out
	seedModel(t, i, "m")
	if err := i.Run("DumpModel(m)"); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if !strings.Contains(out.String(), "p = Times(w, f)") {
		t.Fatalf("dump output: %q", out.String())
	}
}
