// Package mel implements the model editing language: a command interpreter
// that loads, edits, and saves computation graphs. Commands are matched
// case-insensitively and may be abbreviated down to half their length.
package mel

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/eldakms/CNTK/engine"
	"github.com/eldakms/CNTK/ndl"
	"github.com/eldakms/CNTK/network"
)

// DefaultModelName is used when a model-creating command is not assigned
// to a name.
const DefaultModelName = "default"

// Interpreter executes editing scripts against a set of named models. One
// model is the default; node references without a model prefix resolve
// against it.
type Interpreter struct {
	reg     *ndl.Registry[*network.Node]
	models  map[string]*engine.Binding
	defName string

	// Out receives dump output when a command names no file.
	Out io.Writer
	// Logger receives warnings. Defaults to the standard logger.
	Logger *log.Logger
}

// NewInterpreter creates an interpreter with no models loaded.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		reg:    ndl.NewRegistry[*network.Node](),
		models: map[string]*engine.Binding{},
		Out:    os.Stdout,
		Logger: log.Default(),
	}
}

// Registry returns the NDL registry shared by every model this interpreter
// manages.
func (i *Interpreter) Registry() *ndl.Registry[*network.Node] { return i.reg }

// Model returns the named model's binding, or nil.
func (i *Interpreter) Model(name string) *engine.Binding {
	return i.models[strings.ToLower(name)]
}

// DefaultModel returns the current default model.
func (i *Interpreter) DefaultModel() (*engine.Binding, error) {
	if i.defName == "" {
		return nil, fmt.Errorf("%w: no default model set", ErrState)
	}
	return i.models[i.defName], nil
}

// setModel registers a binding under name and makes it the default.
func (i *Interpreter) setModel(name string, b *engine.Binding) {
	if name == "" {
		name = DefaultModelName
	}
	key := strings.ToLower(name)
	i.models[key] = b
	i.defName = key
}

// RunFile reads and executes an editing script from disk.
func (i *Interpreter) RunFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read editing script %s: %w", path, err)
	}
	return i.Run(string(text))
}

// Run executes an editing script: one command per statement, separated by
// semicolons or newlines.
func (i *Interpreter) Run(text string) error {
	stmts, err := ndl.SplitStatements(text, ndl.DefaultDelimiter)
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if err := i.execute(stmt); err != nil {
			return fmt.Errorf("%q: %w", stmt, err)
		}
	}
	return nil
}

// execute runs one statement. A statement is a command call, optionally
// assigned to a model name: name = LoadModel("file").
func (i *Interpreter) execute(stmt string) error {
	target := ""
	call := stmt
	if eq := indexAssignment(stmt); eq >= 0 {
		target = strings.TrimSpace(stmt[:eq])
		call = strings.TrimSpace(stmt[eq+1:])
	}
	name, params, err := ndl.ParseCallString(call)
	if err != nil {
		return err
	}
	for _, c := range commands {
		if _, ok := ndl.MatchName(name, c.name, c.alt); ok {
			return c.run(i, target, params)
		}
	}
	return fmt.Errorf("%w: unknown editor command %q", ErrState, name)
}

// indexAssignment finds the '=' of a model assignment, ignoring '=' inside
// the parameter list.
func indexAssignment(stmt string) int {
	open := strings.IndexByte(stmt, '(')
	eq := strings.IndexByte(stmt, '=')
	if eq < 0 || (open >= 0 && open < eq) {
		return -1
	}
	return eq
}
