package network

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	src, w, f, p := chain(t)
	w.Value = []float64{0.5, -1.5}
	w.Rows, w.Cols = 2, 1
	w.NeedGradient = true
	src.SetRole(f, RoleFeature, true)
	src.SetRole(p, RoleOutput, true)

	path := filepath.Join(t.TempDir(), "model.dnn")
	if err := src.SaveToFile(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.NumNodes() != src.NumNodes() {
		t.Fatalf("node count: %d vs %d", got.NumNodes(), src.NumNodes())
	}
	// insertion order survives the round trip
	for i, orig := range src.Nodes() {
		node := got.Nodes()[i]
		if node.Name() != orig.Name() || node.Op != orig.Op {
			t.Errorf("node %d: %s/%s vs %s/%s", i, node.Name(), node.Op, orig.Name(), orig.Op)
		}
		if node.ID() != orig.ID() {
			t.Errorf("node %q: identity not preserved", node.Name())
		}
	}
	gw := got.Node("w")
	if len(gw.Value) != 2 || gw.Value[0] != 0.5 || !gw.Learnable || !gw.NeedGradient {
		t.Errorf("w round trip: %+v", gw)
	}
	gp := got.Node("p")
	if gp.NumInputs() != 2 || gp.Input(0) != got.Node("w") || gp.Input(1) != got.Node("f") {
		t.Errorf("edges not restored: %v", gp.Inputs())
	}
	if !got.HasRole(got.Node("f"), RoleFeature) || !got.HasRole(gp, RoleOutput) {
		t.Error("roles not restored")
	}
}

func TestSave_RejectsUnsetInput(t *testing.T) {
	n, _, _, p := chain(t)
	p.SetInput(3, nil)
	path := filepath.Join(t.TempDir(), "model.dnn")
	if err := n.SaveToFile(path); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("expected unset-input error, got %v", err)
	}
}

func TestLoad_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.dnn")
	if err := os.WriteFile(path, []byte("not a model"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); !errors.Is(err, ErrModelFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}
