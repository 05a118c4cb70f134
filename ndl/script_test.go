package ndl

import (
	"errors"
	"strings"
	"testing"
)

func newTestScript() *Script[string] {
	return NewScript(NewRegistry[string]())
}

func TestParse_AssignmentsStaySymbolic(t *testing.T) {
	s := newTestScript()
	if err := s.Parse("dim=128\nw=LearnableParameter(dim, dim)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	// only the call is a statement; the assignment is a symbol table entry
	if len(s.Statements()) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(s.Statements()))
	}
	if s.Statements()[0].Name() != "w" {
		t.Errorf("statement name: got %q", s.Statements()[0].Name())
	}
	node, err := s.FindSymbol("dim", false)
	if err != nil || node == nil {
		t.Fatalf("dim not in symbol table: %v", err)
	}
	if node.Type() != TypeConstant || node.Value() != "128" {
		t.Errorf("dim: type %v value %q", node.Type(), node.Value())
	}
}

func TestParse_CaseInsensitiveSymbols(t *testing.T) {
	s := newTestScript()
	if err := s.Parse("Dim=128"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	node, err := s.FindSymbol("DIM", false)
	if err != nil || node == nil {
		t.Fatal("case-insensitive lookup failed")
	}
}

func TestParse_RedefinitionRejected(t *testing.T) {
	s := newTestScript()
	err := s.Parse("a=1\na=2")
	if !errors.Is(err, ErrSymbol) {
		t.Fatalf("expected symbol error, got %v", err)
	}
}

func TestParse_ReservedName(t *testing.T) {
	s := newTestScript()
	err := s.Parse("Plus=1")
	if !errors.Is(err, ErrSymbol) || !strings.Contains(err.Error(), "reserved") {
		t.Fatalf("expected reserved name error, got %v", err)
	}
}

func TestParse_UndefinedCall(t *testing.T) {
	s := newTestScript()
	err := s.Parse("a=NoSuchThing(1)")
	if !errors.Is(err, ErrSymbol) {
		t.Fatalf("expected symbol error, got %v", err)
	}
}

func TestParse_MacroDefinitionForms(t *testing.T) {
	// inline body, braced body on the next statement, one-liner body
	inputs := []string{
		"m1(x)={y=Plus(x,x)}",
		"m2(x)\n{\ny=Plus(x,x)\n}",
		"m3(x)=Plus(x,x)",
	}
	s := newTestScript()
	for _, input := range inputs {
		if err := s.Parse(input); err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
	}
	for _, name := range []string{"m1", "m2", "m3"} {
		macro, err := s.Registry().Global().FindSymbol(name, false)
		if err != nil || macro == nil || macro.Type() != TypeMacro {
			t.Errorf("macro %q not registered: %v", name, err)
			continue
		}
		if macro.Script() == nil {
			t.Errorf("macro %q has no body", name)
		}
		if len(macro.Formals()) != 1 || macro.Formals()[0] != "x" {
			t.Errorf("macro %q formals: %v", name, macro.Formals())
		}
	}
}

func TestParse_MacroWithoutBody(t *testing.T) {
	s := newTestScript()
	err := s.Parse("m(x)")
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
}

func TestParse_MacroAlreadyDefined(t *testing.T) {
	s := newTestScript()
	if err := s.Parse("m(x)=Plus(x,x)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := s.Parse("m(y)=Times(y,y)"); !errors.Is(err, ErrSymbol) {
		t.Fatalf("expected symbol error, got %v", err)
	}
}

func TestParse_MacroCallIsStatement(t *testing.T) {
	s := newTestScript()
	if err := s.Parse("m(x)={y=Plus(x,x)}\nout=m(3)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	stmts := s.Statements()
	if len(stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(stmts))
	}
	call := stmts[0]
	if call.Type() != TypeMacroCall || call.Name() != "out" {
		t.Errorf("call: type %v name %q", call.Type(), call.Name())
	}
	// call sites capture the macro's formals without touching the definition
	if len(call.Formals()) != 1 || call.Formals()[0] != "x" {
		t.Errorf("captured formals: %v", call.Formals())
	}
}

func TestParse_DottedLookup(t *testing.T) {
	s := newTestScript()
	input := "m(x)={y=Plus(x,x)}\nL1=m(3)\nout=Times(L1.y, L1.y)"
	if err := s.Parse(input); err != nil {
		t.Fatalf("parse: %v", err)
	}
	node, err := s.FindSymbol("L1.y", true)
	if err != nil {
		t.Fatalf("dotted lookup: %v", err)
	}
	if node == nil || node.Value() != "Plus" {
		t.Fatalf("L1.y should reach the body call, got %+v", node)
	}
	// a dotted path through a non-call is an error
	s2 := newTestScript()
	if err := s2.Parse("m(x)={y=Plus(x,x)}\nL1=m(3)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := s2.FindSymbol("out.y", true); err != nil {
		t.Fatalf("missing head should not error, got %v", err)
	}
}

func TestParse_IdentifiersMatchBuiltinsExactly(t *testing.T) {
	// "L1" abbreviates MatrixL1Reg's alias, but identifiers only collide
	// with full builtin names
	s := newTestScript()
	if err := s.Parse("L1=128\nw=LearnableParameter(L1, L1)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	node, err := s.FindSymbol("L1", false)
	if err != nil || node == nil || node.Value() != "128" {
		t.Fatalf("L1: %+v (%v)", node, err)
	}

	s2 := newTestScript()
	if err := s2.Parse("c=Sigmoid(L1)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := s2.Statements()[0].Parameters(false)[0]
	if p.Type() != TypeUndetermined {
		t.Fatalf("bare L1 should stay a placeholder, got %v", p.Type())
	}

	// full aliases are still reserved
	s3 := newTestScript()
	if err := s3.Parse("Input=1"); !errors.Is(err, ErrSymbol) {
		t.Fatalf("expected reserved name error, got %v", err)
	}
}

func TestParse_CallsMayAbbreviate(t *testing.T) {
	s := newTestScript()
	if err := s.Parse("a=Sigm(1)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Statements()[0].Value() != "Sigmoid" {
		t.Fatalf("op: %q", s.Statements()[0].Value())
	}
}

func TestParse_UnnamedNodesGetPlaceholders(t *testing.T) {
	s := newTestScript()
	if err := s.Parse("a=Plus(1, 2)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	params := s.Statements()[0].Parameters(false)
	if len(params) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(params))
	}
	for _, p := range params {
		if !strings.HasPrefix(p.Name(), "unnamed") {
			t.Errorf("constant parameter name: %q", p.Name())
		}
	}
}

func TestParse_OptionalParameters(t *testing.T) {
	s := newTestScript()
	if err := s.Parse("f=InputValue(784, tag=feature)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	call := s.Statements()[0]
	if got := call.OptionalParameter("tag", ""); got != "feature" {
		t.Errorf("tag: got %q", got)
	}
	if got := call.OptionalParameter("TAG", ""); got != "feature" {
		t.Errorf("tag lookup should be case-insensitive, got %q", got)
	}
	if got := call.OptionalParameter("missing", "def"); got != "def" {
		t.Errorf("default: got %q", got)
	}
	if n := len(call.Parameters(false)); n != 1 {
		t.Errorf("positional count: got %d", n)
	}
}

func TestScalar_ResolvesThroughReferences(t *testing.T) {
	s := newTestScript()
	if err := s.Parse("dim=256\nalias=dim\nw=LearnableParameter(alias, dim)"); err != nil {
		t.Fatalf("parse: %v", err)
	}
	param := s.Statements()[0].Parameters(false)[0]
	text, err := param.Scalar()
	if err != nil {
		t.Fatalf("scalar: %v", err)
	}
	if text != "256" {
		t.Errorf("scalar: got %q", text)
	}
}

func TestFileParse_LoadRunSections(t *testing.T) {
	s := newTestScript()
	input := `load=macros
run=net
macros=[m(x)={y=Plus(x,x)}]
net=[out=m(2)]`
	if err := s.FileParse(input); err != nil {
		t.Fatalf("file parse: %v", err)
	}
	if len(s.Statements()) != 1 || s.Statements()[0].Name() != "out" {
		t.Fatalf("run section not parsed: %v", s.Statements())
	}

	s2 := newTestScript()
	if err := s2.FileParse("run=missing"); !errors.Is(err, ErrSyntax) {
		t.Fatalf("missing section: expected syntax error, got %v", err)
	}
}
