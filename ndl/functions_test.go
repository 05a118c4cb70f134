package ndl

import "testing"

func TestMatchName_HalfLengthRule(t *testing.T) {
	cases := []struct {
		token     string
		candidate string
		alternate string
		match     bool
	}{
		{"DumpModel", "DumpModel", "", true},
		{"dumpmodel", "DumpModel", "", true},
		{"Dump", "DumpModel", "", true},   // 4 >= 9/2
		{"Du", "DumpModel", "", false},    // too short
		{"Du", "DumpModel", "Dump", true}, // half of the alias
		{"DumpModelX", "DumpModel", "", false},
		{"Rem", "RemoveNode", "Remove", true},
		{"Re", "RemoveNode", "Remove", false},
	}
	for _, c := range cases {
		name, ok := MatchName(c.token, c.candidate, c.alternate)
		if ok != c.match {
			t.Errorf("MatchName(%q, %q, %q) = %v, expected %v", c.token, c.candidate, c.alternate, ok, c.match)
		}
		if ok && name != c.candidate {
			t.Errorf("MatchName(%q, %q, %q): canonical name %q", c.token, c.candidate, c.alternate, name)
		}
	}
}

func TestLookupFunction_Aliases(t *testing.T) {
	cases := []struct {
		token     string
		canonical string
	}{
		{"Plus", "Plus"},
		{"plus", "Plus"},
		{"ReLU", "RectifiedLinear"},
		{"Const", "Constant"},
		{"Parameter", "LearnableParameter"},
		{"Input", "InputValue"},
		{"CEWithSM", "CrossEntropyWithSoftmax"},
	}
	for _, c := range cases {
		name, ok := LookupFunction(c.token)
		if !ok || name != c.canonical {
			t.Errorf("LookupFunction(%q) = %q, %v; expected %q", c.token, name, ok, c.canonical)
		}
	}
	if _, ok := LookupFunction("NotAFunction"); ok {
		t.Error("unknown token should not resolve")
	}
}

func TestLookupFunctionExact(t *testing.T) {
	if name, ok := LookupFunctionExact("ReLU"); !ok || name != "RectifiedLinear" {
		t.Errorf("ReLU: %q, %v", name, ok)
	}
	if name, ok := LookupFunctionExact("plus"); !ok || name != "Plus" {
		t.Errorf("plus: %q, %v", name, ok)
	}
	if _, ok := LookupFunctionExact("L1"); ok {
		t.Error("L1 abbreviates the L1Reg alias and must not resolve")
	}
	if _, ok := LookupFunctionExact("Sigm"); ok {
		t.Error("abbreviations must not resolve")
	}
}
